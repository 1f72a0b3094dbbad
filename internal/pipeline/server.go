package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Norgate-AV/gqlpipe/internal/cache"
	"github.com/Norgate-AV/gqlpipe/internal/config"
	"github.com/Norgate-AV/gqlpipe/internal/fileset"
	"github.com/Norgate-AV/gqlpipe/internal/launcher"
	"github.com/Norgate-AV/gqlpipe/internal/logging/logfields"
	"github.com/Norgate-AV/gqlpipe/internal/metadata"
	"github.com/Norgate-AV/gqlpipe/internal/utils"
)

// Server runs the server phase of cfg and returns the launcher artifacts and
// the metadata file it wrote. force bypasses the cache decision.
func (p *Pipeline) Server(ctx context.Context, cfg *config.Config, force bool) ([]string, error) {
	scoped := log.WithFields(logrus.Fields{
		logfields.Module: cfg.Name,
		logfields.Phase:  cache.PhaseServer,
	})

	if len(cfg.Server.APIs) == 0 {
		scoped.WithError(&ConfigurationError{
			Module: cfg.ModuleDir,
			Phase:  string(cache.PhaseServer),
			Reason: "no server.apis configured",
		}).Error("Nothing to generate")
		return []string{}, nil
	}

	req := cache.Request{
		Namespace: cache.NewNamespace(cfg.Name, cfg.ModuleDir, cache.PhaseServer),
		Settings:  ServerSettings(cfg),
		Dir:       cfg.LauncherPath(),
		Match:     fileset.MatchExtension(launcher.JobExtension),
		Force:     force,
	}

	res, err := p.Cache.Run(ctx, req, func(ctx context.Context, _ []string) ([]string, error) {
		return writeLaunchers(cfg)
	})
	if err != nil {
		return res.Files, err
	}

	scoped.WithFields(logrus.Fields{
		logfields.Count:       len(cfg.Server.APIs),
		logfields.Fingerprint: res.Fingerprint[:12],
	}).Debugf("Server phase done (regenerated: %t)", res.Regenerated)

	return res.Files, nil
}

// ServerRecords returns one record per target, in declaration order
func ServerRecords(cfg *config.Config) []metadata.Record {
	records := make([]metadata.Record, 0, len(cfg.Server.APIs))
	for i, target := range cfg.Server.APIs {
		name := utils.LauncherName(i)
		records = append(records, metadata.Record{
			LauncherPath: filepath.Join(cfg.LauncherPath(), name+launcher.JobExtension),
			EntryPoint:   cfg.Name + "." + name,
			PackageName:  target.PackageName,
		})
	}

	return records
}

func writeLaunchers(cfg *config.Config) ([]string, error) {
	records := ServerRecords(cfg)

	// nothing is written when a record cannot be serialized
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, err
		}
	}

	if err := removeLaunchers(cfg.LauncherPath()); err != nil {
		return nil, err
	}

	files := make([]string, 0, len(records)+1)
	for i, rec := range records {
		job := launcher.NewJob(rec.EntryPoint, cfg, cfg.Server.APIs[i])
		if err := launcher.WriteJob(rec.LauncherPath, job); err != nil {
			return files, err
		}

		files = append(files, rec.LauncherPath)
	}

	registry := metadata.NewRegistry(cfg.WorkPath())
	if err := registry.Write(MetadataNamespace, records); err != nil {
		return files, err
	}

	files = append(files, registry.Path(MetadataNamespace))

	if err := touch(cfg.SentinelPath()); err != nil {
		return files, err
	}

	return files, nil
}

// removeLaunchers drops launchers left over from a previous run with more
// targets
func removeLaunchers(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, utils.LauncherPrefix+"*"+launcher.JobExtension))
	if err != nil {
		return err
	}

	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove old launcher: %w", err)
		}
	}

	return nil
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to touch %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return err
	}

	now := time.Now()
	return os.Chtimes(path, now, now)
}
