package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/Norgate-AV/gqlpipe/internal/version"
)

// Phase is the pipeline phase a cache record belongs to
type Phase string

const (
	PhaseServer Phase = "server"
	PhaseClient Phase = "client"
)

// Namespace scopes a cache record to one module and one phase
type Namespace struct {
	Module string
	Phase  Phase
}

// NewNamespace builds the namespace of a module directory
func NewNamespace(name, moduleDir string, phase Phase) Namespace {
	return Namespace{Module: ModuleID(name, moduleDir), Phase: phase}
}

// ModuleID identifies a module by name and by its location, so two modules
// with the same name never share a record. Inside a git checkout the
// location is the path relative to the repository root, which keeps the ID
// stable across checkouts at different paths. Outside one it is the absolute
// directory.
func ModuleID(name, moduleDir string) string {
	sum := sha256.Sum256([]byte(moduleLocation(moduleDir)))
	return name + "-" + hex.EncodeToString(sum[:])[:12]
}

func moduleLocation(moduleDir string) string {
	dir := filepath.Clean(moduleDir)

	root, ok := repositoryRoot(dir)
	if !ok {
		return dir
	}

	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return dir
	}

	return "repo:" + filepath.ToSlash(rel)
}

// repositoryRoot searches dir and its parents for a .git entry. A file
// counts too, since worktrees and submodules use one.
func repositoryRoot(dir string) (string, bool) {
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}

		dir = parent
	}
}

// Key is the storage key: <tool version>/<module>/<phase>
func (ns Namespace) Key() string {
	return version.Version + "/" + ns.Module + "/" + string(ns.Phase)
}

func (ns Namespace) String() string {
	return ns.Key()
}
