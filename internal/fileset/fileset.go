// Package fileset snapshots the generated files under a directory and
// computes what an opaque generator wrote into it.
//
// Generators do not report the files they write. The only way to find out is
// to list the destination directory before and after the generator runs and
// compare. A file counts as written when it is new or its modification time
// or size changed. Files the generator deletes are never reported; this is a
// documented precondition of Differ.Diff and is not checked.
package fileset

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// MatchFunc reports whether a file path belongs to the set
type MatchFunc func(path string) bool

// MatchExtension matches files with the given extension (".go" or "go")
func MatchExtension(ext string) MatchFunc {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return func(path string) bool {
		return ext == "" || filepath.Ext(path) == ext
	}
}

// MatchAll matches every regular file
func MatchAll(string) bool { return true }

// Set is a sorted, duplicate free list of absolute file paths
type Set []string

// NewSet builds a Set from arbitrary paths
func NewSet(paths ...string) Set {
	seen := make(map[string]struct{}, len(paths))
	s := make(Set, 0, len(paths))

	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}

		seen[p] = struct{}{}
		s = append(s, p)
	}

	sort.Strings(s)
	return s
}

// Contains reports whether path is in the set
func (s Set) Contains(path string) bool {
	i := sort.SearchStrings(s, path)
	return i < len(s) && s[i] == path
}

// Equal reports whether both sets hold exactly the same paths
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}

	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}

	return true
}

// Snapshot walks dir and returns every regular file accepted by match.
// A missing directory yields an empty set.
func Snapshot(dir string, match MatchFunc) (Set, error) {
	var paths []string
	err := walk(dir, match, func(path string, _ fs.DirEntry) error {
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return NewSet(paths...), nil
}

// walk calls fn with the absolute path of every regular file under dir
// accepted by match
func walk(dir string, match MatchFunc, fn func(path string, d fs.DirEntry) error) error {
	if match == nil {
		match = MatchAll
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if !match(path) {
			return nil
		}

		return fn(path, d)
	})
	if err != nil {
		return fmt.Errorf("failed to snapshot %s: %w", dir, err)
	}

	return nil
}
