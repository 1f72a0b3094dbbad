// Package pipeline orchestrates the two generation phases.
//
// The server phase turns the configured targets of a module into launcher
// artifacts and a metadata file. The client phase reads the metadata of every
// upstream module, runs the launchers into its own output directory, collects
// the generated files and consumes what it ran. Both phases run through the
// settings fingerprint cache.
package pipeline

import (
	"github.com/Norgate-AV/gqlpipe/internal/cache"
	"github.com/Norgate-AV/gqlpipe/internal/config"
	"github.com/Norgate-AV/gqlpipe/internal/fileset"
	"github.com/Norgate-AV/gqlpipe/internal/launcher"
	"github.com/Norgate-AV/gqlpipe/internal/logging"
)

// MetadataNamespace names the metadata file written by the server phase
const MetadataNamespace = "generators"

var log = logging.WithSubsys("pipeline")

// Pipeline runs server and client phases
type Pipeline struct {
	Cache    *cache.Cache
	Launcher *launcher.Launcher
	Differ   *fileset.Differ

	// Upstream is asked to build every upstream module before its metadata
	// is read. Nil skips the step.
	Upstream UpstreamBuilder

	// LoadModule loads upstream module configurations
	LoadModule ModuleLoader
}

// New creates a pipeline whose client phase builds upstream modules with a
// forced server phase
func New(c *cache.Cache, l *launcher.Launcher) *Pipeline {
	p := &Pipeline{
		Cache:      c,
		Launcher:   l,
		Differ:     fileset.NewDiffer(),
		LoadModule: config.LoadModule,
	}
	p.Upstream = ServerBuilder{Pipeline: p}

	return p
}
