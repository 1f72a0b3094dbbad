package fileset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/Norgate-AV/gqlpipe/internal/logging"
	"github.com/Norgate-AV/gqlpipe/internal/logging/logfields"
)

var log = logging.WithSubsys("fileset")

// Differ discovers the files an action writes to a directory
type Differ struct {
	// DisableLock skips the directory lock around snapshot, action, snapshot.
	// Only safe when nothing else can write to the directory.
	DisableLock bool
}

// NewDiffer creates a differ that locks the destination directory
func NewDiffer() *Differ {
	return &Differ{}
}

// LockPath returns the lock file guarding dir. It lives next to dir, never
// inside it, so it cannot show up in a snapshot.
func LockPath(dir string) string {
	clean := filepath.Clean(dir)
	return filepath.Join(filepath.Dir(clean), "."+filepath.Base(clean)+".lock")
}

// Diff runs action and returns the regular files matching match that it
// wrote under dir: files that did not exist before, and files whose
// modification time or size changed. dir is created if absent.
//
// Precondition: action does not delete files it did not write. Deleted
// files are not reported. When action fails, the files discovered so far
// are returned together with the error.
func (d *Differ) Diff(dir string, match MatchFunc, action func() error) (Set, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if !d.DisableLock {
		lock := flock.New(LockPath(dir))
		if err := lock.Lock(); err != nil {
			return nil, fmt.Errorf("failed to lock %s: %w", dir, err)
		}

		defer func() {
			if err := lock.Unlock(); err != nil {
				log.WithError(err).WithField(logfields.Directory, dir).Warn("Failed to release directory lock")
			}
		}()
	}

	before, err := stamps(dir, match)
	if err != nil {
		return nil, err
	}

	actionErr := action()

	after, err := stamps(dir, match)
	if err != nil {
		if actionErr != nil {
			return nil, actionErr
		}

		return nil, err
	}

	var written []string
	for path, st := range after {
		if old, ok := before[path]; !ok || old != st {
			written = append(written, path)
		}
	}

	log.WithFields(logrus.Fields{
		logfields.Directory: dir,
		logfields.Count:     len(written),
	}).Debug("Computed file set difference")

	return NewSet(written...), actionErr
}

// stamp identifies one version of a file's content
type stamp struct {
	modTime int64
	size    int64
}

func stamps(dir string, match MatchFunc) (map[string]stamp, error) {
	out := make(map[string]stamp)

	err := walk(dir, match, func(path string, d fs.DirEntry) error {
		info, err := d.Info()
		if err != nil {
			// removed between listing and stat
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		out[path] = stamp{modTime: info.ModTime().UnixNano(), size: info.Size()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
