package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Norgate-AV/gqlpipe/internal/cache"
	"github.com/Norgate-AV/gqlpipe/internal/config"
	"github.com/Norgate-AV/gqlpipe/internal/version"
)

// ServerSettings returns the tracked settings of a module's server phase.
// Targets keep their declaration order because it decides launcher names.
func ServerSettings(cfg *config.Config) cache.Settings {
	s := cache.Settings{
		"tool=" + version.Version,
		"generator=" + cfg.Generator.Version,
		"command=" + cfg.Generator.Command,
		"args=" + strconv.Quote(strings.Join(cfg.Generator.Args, "\x00")),
		"ext=" + cfg.Extension,
		"launchers=" + cfg.Server.LauncherDir,
	}

	for i, target := range cfg.Server.APIs {
		s = append(s, fmt.Sprintf("target[%d]=%s", i, target))
	}

	return s
}

// ClientSettings returns the tracked settings of a module's client phase.
// Every upstream module contributes its full server settings, so a change
// in any of them invalidates the consumer.
func ClientSettings(cfg *config.Config, upstreams []Upstream) cache.Settings {
	s := cache.Settings{
		"tool=" + version.Version,
		"generator=" + cfg.Generator.Version,
		"versioned=" + strconv.FormatBool(cfg.Client.VersionedCode),
		"out=" + relativeTo(cfg.ModuleDir, cfg.OutputPath()),
		"ext=" + cfg.Extension,
		"modules=" + strings.Join(cfg.Client.Modules, ","),
	}

	for _, up := range upstreams {
		s = s.With("upstream=" + up.Ref).With(ServerSettings(up.Config)...)
	}

	return s
}

func relativeTo(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}

	return filepath.ToSlash(rel)
}
