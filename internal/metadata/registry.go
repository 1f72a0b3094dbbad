// Package metadata implements the hand-off file between the server and the
// client phase.
//
// The server phase writes one line per generator launcher:
//
//	<absoluteLauncherPath>#<entryPointReference>#<destinationPackageName>
//
// The client phase reads the file, runs every launcher and then deletes it.
// There is no escaping: a '#' in any field is a fatal error.
package metadata

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Norgate-AV/gqlpipe/internal/logging"
	"github.com/Norgate-AV/gqlpipe/internal/logging/logfields"
)

const (
	// Delimiter separates the fields of a record line
	Delimiter = "#"

	// Extension is the file extension of a metadata file
	Extension = ".metadata"

	fieldCount = 3
)

var log = logging.WithSubsys("metadata")

// Record links a launcher artifact to the package it generates
type Record struct {
	// LauncherPath is the absolute path of the launcher artifact
	LauncherPath string

	// EntryPoint is the fully qualified reference the launcher answers to
	EntryPoint string

	// PackageName is the destination package of the generated code
	PackageName string
}

func (r Record) fields() []string {
	return []string{r.LauncherPath, r.EntryPoint, r.PackageName}
}

// String returns the serialized line, without validation
func (r Record) String() string {
	return strings.Join(r.fields(), Delimiter)
}

// Validate rejects records that cannot be serialized unambiguously
func (r Record) Validate() error {
	names := []string{"launcher path", "entry point", "package name"}

	for i, f := range r.fields() {
		if f == "" {
			return fmt.Errorf("metadata record has an empty %s", names[i])
		}

		if strings.ContainsAny(f, Delimiter+"\r\n") {
			return &DelimiterError{Field: names[i], Value: f}
		}
	}

	return nil
}

// ParseRecord parses a single line. Lines with empty fields are rejected,
// the same as on write.
func ParseRecord(line string) (Record, bool) {
	parts := strings.Split(line, Delimiter)
	if len(parts) != fieldCount {
		return Record{}, false
	}

	for _, p := range parts {
		if p == "" {
			return Record{}, false
		}
	}

	return Record{
		LauncherPath: parts[0],
		EntryPoint:   parts[1],
		PackageName:  parts[2],
	}, true
}

// Registry stores metadata files in a single directory, one per namespace
type Registry struct {
	dir string
}

// NewRegistry creates a registry rooted at dir
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

// Path returns the metadata file location for a namespace
func (r *Registry) Path(ns string) string {
	return filepath.Join(r.dir, ns+Extension)
}

// Write serializes records in order, replacing any previous file atomically
func (r *Registry) Write(ns string, records []Record) error {
	var buf bytes.Buffer

	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return err
		}

		buf.WriteString(rec.String())
		buf.WriteByte('\n')
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	path := r.Path(ns)
	tmp, err := os.CreateTemp(r.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create metadata file: %w", err)
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace metadata file: %w", err)
	}

	log.WithField(logfields.Path, path).WithField(logfields.Count, len(records)).Debug("Wrote metadata")
	return nil
}

// Read loads the records of a namespace. found is false when no file exists,
// which is the normal case when nothing was configured upstream or a previous
// client run already consumed it.
func (r *Registry) Read(ns string) (records []Record, found bool, err error) {
	path := r.Path(ns)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to open metadata file: %w", err)
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec, ok := ParseRecord(line)
		if !ok {
			return nil, true, &ParseError{Path: path, Line: lineNo, Text: line}
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, true, fmt.Errorf("failed to read metadata file: %w", err)
	}

	return records, true, nil
}

// Consume deletes the metadata file of a namespace. A missing file is fine.
func (r *Registry) Consume(ns string) error {
	path := r.Path(ns)

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete metadata file: %w", err)
	}

	log.WithField(logfields.Path, path).Debug("Consumed metadata")
	return nil
}
