package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/Norgate-AV/gqlpipe/internal/cache"
	"github.com/Norgate-AV/gqlpipe/internal/config"
	"github.com/Norgate-AV/gqlpipe/internal/fileset"
	"github.com/Norgate-AV/gqlpipe/internal/logging/logfields"
	"github.com/Norgate-AV/gqlpipe/internal/metadata"
	"github.com/Norgate-AV/gqlpipe/internal/utils"
)

// Client runs the client phase of cfg: every launcher of every upstream
// module is invoked into the output directory and the generated files are
// returned, sorted. Failures of single launchers do not stop their siblings;
// all of them are returned combined and the result is not cached.
func (p *Pipeline) Client(ctx context.Context, cfg *config.Config) ([]string, error) {
	scoped := log.WithFields(logrus.Fields{
		logfields.Module: cfg.Name,
		logfields.Phase:  cache.PhaseClient,
	})

	if len(cfg.Client.Modules) == 0 {
		scoped.WithError(&ConfigurationError{
			Module: cfg.ModuleDir,
			Phase:  string(cache.PhaseClient),
			Reason: "no client.modules configured",
		}).Error("Nothing to generate")
		return []string{}, nil
	}

	upstreams, err := p.loadUpstreams(cfg)
	if err != nil {
		return nil, err
	}

	req := cache.Request{
		Namespace: cache.NewNamespace(cfg.Name, cfg.ModuleDir, cache.PhaseClient),
		Settings:  ClientSettings(cfg, upstreams),
		Dir:       cfg.OutputPath(),
		Match:     fileset.MatchExtension(cfg.Extension),
	}

	res, err := p.Cache.Run(ctx, req, func(ctx context.Context, prev []string) ([]string, error) {
		return p.generate(ctx, cfg, upstreams, prev)
	})
	if err != nil {
		return res.Files, err
	}

	scoped.WithFields(logrus.Fields{
		logfields.Count:     len(res.Files),
		logfields.Directory: cfg.OutputPath(),
	}).Infof("Client phase done (regenerated: %t)", res.Regenerated)

	return res.Files, nil
}

func (p *Pipeline) loadUpstreams(cfg *config.Config) ([]Upstream, error) {
	paths := cfg.ModulePaths()
	upstreams := make([]Upstream, 0, len(paths))

	for i, dir := range paths {
		upCfg, err := p.LoadModule(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load upstream module %s: %w", cfg.Client.Modules[i], err)
		}

		upstreams = append(upstreams, Upstream{Ref: cfg.Client.Modules[i], Config: upCfg})
	}

	return upstreams, nil
}

// invocation is one launcher run into one destination directory
type invocation struct {
	record metadata.Record
	dest   string
}

// group is a set of invocations whose destinations overlap. They run one
// after the other; distinct groups may run concurrently.
type group struct {
	root  string
	items []invocation
}

func (p *Pipeline) generate(ctx context.Context, cfg *config.Config, upstreams []Upstream, prev []string) ([]string, error) {
	var (
		errs       error
		items      []invocation
		registries []*metadata.Registry
	)

	outDir := cfg.OutputPath()

	for _, up := range upstreams {
		scoped := log.WithField(logfields.Upstream, up.Ref)

		if p.Upstream != nil {
			if err := p.Upstream.EnsureBuilt(ctx, up.Config); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("upstream %s: %w", up.Ref, err))
				continue
			}
		}

		registry := metadata.NewRegistry(up.Config.WorkPath())
		records, found, err := registry.Read(MetadataNamespace)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("upstream %s: %w", up.Ref, err))
			continue
		}

		if !found {
			scoped.Debug("No metadata, skipping")
			continue
		}

		scoped.WithField(logfields.Count, len(records)).Debug("Read metadata")

		for _, rec := range records {
			items = append(items, invocation{
				record: rec,
				dest:   filepath.Join(outDir, utils.PackagePath(rec.PackageName)),
			})
		}

		registries = append(registries, registry)
	}

	files, runErr := p.runGroups(ctx, cfg, groupByDestination(items), prev)
	errs = multierr.Append(errs, runErr)

	for _, registry := range registries {
		if err := registry.Consume(MetadataNamespace); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return files, errs
}

// runGroups invokes every group. The previous outputs lying under a group's
// destinations are removed first so that each generator writes its files
// afresh and every one of them is reported again.
func (p *Pipeline) runGroups(ctx context.Context, cfg *config.Config, groups []group, prev []string) ([]string, error) {
	var (
		mu    sync.Mutex
		errs  error
		found []string
	)

	match := fileset.MatchExtension(cfg.Extension)

	var g errgroup.Group
	g.SetLimit(max(cfg.Client.Parallelism, 1))

	for _, grp := range groups {
		g.Go(func() error {
			removeOutputs(grp, prev)

			for _, it := range grp.items {
				written, err := p.invoke(ctx, it, match)

				mu.Lock()
				found = append(found, written...)
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}

			// errors are collected, never returned, so siblings keep running
			return nil
		})
	}

	_ = g.Wait()

	return fileset.NewSet(found...), errs
}

func (p *Pipeline) invoke(ctx context.Context, it invocation, match fileset.MatchFunc) (fileset.Set, error) {
	scoped := log.WithFields(logrus.Fields{
		logfields.EntryPoint: it.record.EntryPoint,
		logfields.Package:    it.record.PackageName,
	})

	written, err := p.Differ.Diff(it.dest, match, func() error {
		return p.Launcher.Invoke(ctx, it.record, it.dest)
	})
	if err != nil {
		scoped.WithError(err).Error("Generation failed")
		return written, err
	}

	scoped.WithField(logfields.Count, len(written)).Info("Generated")

	if err := os.Remove(it.record.LauncherPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		scoped.WithError(err).Warn("Failed to delete consumed launcher")
	}

	return written, nil
}

func removeOutputs(grp group, prev []string) {
	for _, path := range prev {
		if !grp.covers(path) {
			continue
		}

		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.WithError(err).WithField(logfields.Path, path).Warn("Failed to remove previous output")
		}
	}
}

// covers reports whether path lies under the destination of any item
func (g group) covers(path string) bool {
	for _, it := range g.items {
		if isWithin(it.dest, path) {
			return true
		}
	}

	return false
}

// groupByDestination groups invocations whose destination directories are
// equal or nested, since a snapshot of a parent sees files written into a
// child. Declaration order is kept inside a group.
func groupByDestination(items []invocation) []group {
	dirs := make([]string, 0, len(items))
	seen := make(map[string]bool)
	for _, it := range items {
		if !seen[it.dest] {
			seen[it.dest] = true
			dirs = append(dirs, it.dest)
		}
	}

	sort.Strings(dirs)

	// parents sort before their children
	rootOf := make(map[string]string, len(dirs))
	var roots []string
	for _, dir := range dirs {
		root := dir
		for _, r := range roots {
			if isWithin(r, dir) {
				root = r
				break
			}
		}

		if root == dir {
			roots = append(roots, dir)
		}

		rootOf[dir] = root
	}

	index := make(map[string]int, len(roots))
	groups := make([]group, 0, len(roots))
	for _, it := range items {
		root := rootOf[it.dest]
		i, ok := index[root]
		if !ok {
			i = len(groups)
			index[root] = i
			groups = append(groups, group{root: root})
		}

		groups[i].items = append(groups[i].items, it)
	}

	return groups
}

func isWithin(parent, dir string) bool {
	return dir == parent || strings.HasPrefix(dir, parent+string(filepath.Separator))
}
