package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Norgate-AV/gqlpipe/internal/config"
	"github.com/Norgate-AV/gqlpipe/internal/logging/logfields"
)

// Store persists the inputs and outputs artifacts of every namespace.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the record of ns, or nil when none was stored
	Load(ctx context.Context, ns Namespace) (*Record, error)

	// Save replaces the record of ns
	Save(ctx context.Context, ns Namespace, rec *Record) error

	// Delete removes the record of ns. Deleting a missing record is not an
	// error.
	Delete(ctx context.Context, ns Namespace) error

	// Clear removes every record
	Clear(ctx context.Context) error

	// Stats reports the number of records and their encoded size
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// Stats describes the content of a store
type Stats struct {
	Entries int
	Size    int64
}

// Open creates the store selected by cfg.Backend
func Open(cfg *config.Config) (Store, error) {
	log.WithField(logfields.Backend, cfg.Backend).Debug("Opening cache store")

	switch cfg.Backend {
	case config.BackendBolt, "":
		return NewBoltStore(cfg.CacheDir)
	case config.BackendFS:
		return NewFSStore(cfg.CacheDir)
	case config.BackendS3:
		remote, err := NewS3Store(cfg.S3)
		if err != nil {
			return nil, err
		}

		return NewMemoStore(remote, DefaultMemoSize)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

func encodeArtifacts(rec *Record) (inputs, outputs []byte, err error) {
	inputs, err = json.Marshal(rec.Inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode inputs: %w", err)
	}

	outputs, err = json.Marshal(rec.Outputs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode outputs: %w", err)
	}

	return inputs, outputs, nil
}

// decodeArtifacts rebuilds a record. A record missing either artifact is a
// miss: both are written on every completed run.
func decodeArtifacts(inputs, outputs []byte) (*Record, error) {
	if inputs == nil || outputs == nil {
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal(inputs, &rec.Inputs); err != nil {
		return nil, fmt.Errorf("failed to decode inputs: %w", err)
	}

	if err := json.Unmarshal(outputs, &rec.Outputs); err != nil {
		return nil, fmt.Errorf("failed to decode outputs: %w", err)
	}

	return &rec, nil
}
