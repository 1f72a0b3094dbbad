package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	inputsFile  = "inputs.json"
	outputsFile = "outputs.json"
)

// FSStore keeps records as plain files: <root>/<key>/{inputs,outputs}.json.
// It has no locking of its own; writes are atomic renames.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at cacheDir
func NewFSStore(cacheDir string) (*FSStore, error) {
	if cacheDir == "" {
		return nil, fmt.Errorf("cache directory not specified")
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &FSStore{root: cacheDir}, nil
}

func (s *FSStore) dir(ns Namespace) string {
	return filepath.Join(s.root, filepath.FromSlash(ns.Key()))
}

// Load implements Store
func (s *FSStore) Load(_ context.Context, ns Namespace) (*Record, error) {
	inputs, err := readOptional(filepath.Join(s.dir(ns), inputsFile))
	if err != nil {
		return nil, err
	}

	outputs, err := readOptional(filepath.Join(s.dir(ns), outputsFile))
	if err != nil {
		return nil, err
	}

	rec, err := decodeArtifacts(inputs, outputs)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", ns, err)
	}

	return rec, nil
}

// Save implements Store. Outputs are written first so a reader never sees
// fresh inputs next to stale outputs.
func (s *FSStore) Save(_ context.Context, ns Namespace, rec *Record) error {
	inputs, outputs, err := encodeArtifacts(rec)
	if err != nil {
		return err
	}

	dir := s.dir(ns)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	if err := writeAtomic(filepath.Join(dir, outputsFile), outputs); err != nil {
		return err
	}

	return writeAtomic(filepath.Join(dir, inputsFile), inputs)
}

// Delete implements Store. inputs.json goes first so an interrupted delete
// still reads as a miss.
func (s *FSStore) Delete(_ context.Context, ns Namespace) error {
	dir := s.dir(ns)
	if err := os.Remove(filepath.Join(dir, inputsFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", ns, err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", ns, err)
	}

	return nil
}

// Clear implements Store
func (s *FSStore) Clear(_ context.Context) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
	}

	return nil
}

// Stats implements Store
func (s *FSStore) Stats(_ context.Context) (Stats, error) {
	var stats Stats
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.Name() == inputsFile {
			stats.Entries++
		}

		stats.Size += info.Size()
		return nil
	})

	return stats, err
}

// Close implements Store
func (s *FSStore) Close() error {
	return nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	return data, err
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
