// Package cache decides whether a pipeline phase has to run again.
//
// Each phase is identified by a Namespace and described by its tracked
// Settings. The last completed run of a namespace is stored as two artifacts:
// the settings it ran with ("inputs") and the files it returned together with
// a snapshot of its output directory ("outputs").
//
// Regeneration is triggered by a change of settings only. A change of the
// output directory alone is detected and logged, but the stored file list is
// returned as is.
package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Norgate-AV/gqlpipe/internal/fileset"
	"github.com/Norgate-AV/gqlpipe/internal/logging"
	"github.com/Norgate-AV/gqlpipe/internal/logging/logfields"
)

var log = logging.WithSubsys("cache")

// ProduceFunc regenerates the outputs of a namespace and returns the files
// it produced. prev holds the files of the last completed run, nil when
// there is none.
type ProduceFunc func(ctx context.Context, prev []string) ([]string, error)

// Request describes one cached unit of work
type Request struct {
	Namespace Namespace
	Settings  Settings

	// Dir is the output directory whose matching files are snapshotted
	Dir   string
	Match fileset.MatchFunc

	// Force runs produce regardless of the stored settings
	Force bool
}

// Result is the outcome of Run
type Result struct {
	Files []string

	// Regenerated is set when produce was called
	Regenerated bool

	// OutputChanged is set when the output directory differs from the
	// snapshot taken after the previous run
	OutputChanged bool

	// Fingerprint is the hash of the request settings
	Fingerprint string
}

// Cache runs work through a Store
type Cache struct {
	store Store

	// Disabled makes every request behave as forced
	Disabled bool

	now func() time.Time
}

// New creates a cache on top of store
func New(store Store) *Cache {
	return &Cache{store: store, now: time.Now}
}

// Store returns the underlying store
func (c *Cache) Store() Store {
	return c.store
}

// Run calls produce when the settings of req differ from the last completed
// run, and returns the stored file list otherwise. Nothing is persisted when
// produce fails; its partial files are returned with the error and the
// previous record is dropped.
func (c *Cache) Run(ctx context.Context, req Request, produce ProduceFunc) (Result, error) {
	res := Result{Fingerprint: req.Settings.Hash()}

	scoped := log.WithFields(logrus.Fields{
		logfields.Namespace:   req.Namespace.Key(),
		logfields.Fingerprint: shortHash(res.Fingerprint),
	})

	dir, err := filepath.Abs(req.Dir)
	if err != nil {
		return res, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	req.Dir = dir

	prev, err := c.store.Load(ctx, req.Namespace)
	if err != nil {
		return res, fmt.Errorf("failed to read cache: %w", err)
	}

	if prev != nil {
		prev = &Record{Inputs: prev.Inputs, Outputs: prev.Outputs.resolve(dir)}
	}

	snapshot, err := fileset.Snapshot(req.Dir, req.Match)
	if err != nil {
		return res, err
	}

	settingsChanged := prev == nil || !prev.Inputs.Settings.Equal(req.Settings)
	res.OutputChanged = prev == nil || !prev.Outputs.Snapshot.Equal(snapshot)

	if !settingsChanged && !req.Force && !c.Disabled {
		if res.OutputChanged {
			scoped.Warn("Output directory changed since the last run but settings did not; keeping cached outputs")
		}

		scoped.Debug("Cache hit")
		res.Files = prev.Outputs.Files

		// refresh the snapshot so the warning is only emitted once per change
		if res.OutputChanged {
			c.save(ctx, scoped, req, prev.Outputs.Files, snapshot)
		}

		return res, nil
	}

	scoped.WithField("settingsChanged", settingsChanged).Debug("Regenerating")

	var prevFiles []string
	if prev != nil {
		prevFiles = prev.Outputs.Files
	}

	res.Regenerated = true
	files, err := produce(ctx, prevFiles)
	res.Files = files
	if err != nil {
		// the outputs of the last completed run may have been overwritten
		if prev != nil {
			c.invalidate(ctx, scoped, req)
		}

		return res, err
	}

	after, err := fileset.Snapshot(req.Dir, req.Match)
	if err != nil {
		return res, err
	}

	if err := c.persist(ctx, req, files, after); err != nil {
		return res, err
	}

	return res, nil
}

func (c *Cache) persist(ctx context.Context, req Request, files []string, snapshot fileset.Set) error {
	rec := &Record{
		Inputs: Inputs{
			Settings:  req.Settings,
			Hash:      req.Settings.Hash(),
			Timestamp: c.now(),
		},
		Outputs: Outputs{
			Files:    files,
			Snapshot: snapshot,
		}.relativeTo(req.Dir),
	}

	if err := c.store.Save(ctx, req.Namespace, rec); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}

	return nil
}

// save persists on the cache hit path, where a failure is not worth failing
// the build for
func (c *Cache) save(ctx context.Context, scoped *logrus.Entry, req Request, files []string, snapshot fileset.Set) {
	if err := c.persist(ctx, req, files, snapshot); err != nil {
		scoped.WithError(err).Warn("Failed to refresh output snapshot")
	}
}

// invalidate drops the record of a namespace whose regeneration failed, so
// the next run regenerates even when its settings match the old record
func (c *Cache) invalidate(ctx context.Context, scoped *logrus.Entry, req Request) {
	if err := c.store.Delete(ctx, req.Namespace); err != nil {
		scoped.WithError(err).Warn("Failed to invalidate cache record")
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}

	return h
}
