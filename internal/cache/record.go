package cache

import (
	"path/filepath"
	"time"

	"github.com/Norgate-AV/gqlpipe/internal/fileset"
)

// Inputs is the persisted "inputs" artifact of a namespace
type Inputs struct {
	// Settings are the tracked settings of the last completed run
	Settings Settings `json:"settings"`

	// Hash is Settings.Hash(), kept for inspection only
	Hash string `json:"hash"`

	// Timestamp when the record was written
	Timestamp time.Time `json:"timestamp"`
}

// Outputs is the persisted "outputs" artifact of a namespace. Paths are
// stored relative to the output directory of the request, with forward
// slashes, so a record stays valid when the checkout moves.
type Outputs struct {
	// Files is the list returned by the last run
	Files []string `json:"files"`

	// Snapshot is the matching file set of the output directory after the
	// last run
	Snapshot fileset.Set `json:"snapshot"`
}

// relativeTo returns a copy of o with every path made relative to dir
func (o Outputs) relativeTo(dir string) Outputs {
	return Outputs{
		Files:    mapPaths(o.Files, func(p string) string { return relPath(dir, p) }),
		Snapshot: fileset.NewSet(mapPaths(o.Snapshot, func(p string) string { return relPath(dir, p) })...),
	}
}

// resolve returns a copy of o with every relative path joined to dir. The
// slices of o are never modified, since stores may share them.
func (o Outputs) resolve(dir string) Outputs {
	return Outputs{
		Files:    mapPaths(o.Files, func(p string) string { return absPath(dir, p) }),
		Snapshot: fileset.NewSet(mapPaths(o.Snapshot, func(p string) string { return absPath(dir, p) })...),
	}
}

func mapPaths(paths []string, fn func(string) string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, fn(p))
	}

	return out
}

func relPath(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		// another volume
		return path
	}

	return filepath.ToSlash(rel)
}

func absPath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(dir, filepath.FromSlash(path))
}

// Record is everything persisted for a namespace
type Record struct {
	Inputs  Inputs
	Outputs Outputs
}
