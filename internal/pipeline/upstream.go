package pipeline

import (
	"context"

	"github.com/Norgate-AV/gqlpipe/internal/config"
)

// Upstream is a server module consumed by a client phase
type Upstream struct {
	// Ref is the module reference as configured in client.modules
	Ref string

	Config *config.Config
}

// UpstreamBuilder makes sure the server phase of an upstream module has
// produced launchers and metadata before the client phase reads them
type UpstreamBuilder interface {
	EnsureBuilt(ctx context.Context, cfg *config.Config) error
}

// UpstreamBuilderFunc adapts a function to UpstreamBuilder
type UpstreamBuilderFunc func(ctx context.Context, cfg *config.Config) error

// EnsureBuilt implements UpstreamBuilder
func (f UpstreamBuilderFunc) EnsureBuilt(ctx context.Context, cfg *config.Config) error {
	return f(ctx, cfg)
}

// ServerBuilder runs a forced server phase. Launchers are deleted once the
// client consumed them, so a cached server phase would leave nothing to run.
type ServerBuilder struct {
	Pipeline *Pipeline
}

// EnsureBuilt implements UpstreamBuilder
func (b ServerBuilder) EnsureBuilt(ctx context.Context, cfg *config.Config) error {
	_, err := b.Pipeline.Server(ctx, cfg, true)
	return err
}

// ModuleLoader loads the configuration of an upstream module directory
type ModuleLoader func(moduleDir string) (*config.Config, error)
