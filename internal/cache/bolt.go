package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DatabaseFile is the bbolt database name inside the cache directory
	DatabaseFile = "cache.db"

	inputsBucket  = "inputs"
	outputsBucket = "outputs"
)

// BoltStore keeps records in a local bbolt database, one bucket per artifact
type BoltStore struct {
	db   *bbolt.DB
	root string
}

// NewBoltStore opens (or creates) the database in cacheDir
func NewBoltStore(cacheDir string) (*BoltStore, error) {
	if cacheDir == "" {
		return nil, fmt.Errorf("cache directory not specified")
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(cacheDir, DatabaseFile)
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.Update(createBuckets); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache buckets: %w", err)
	}

	return &BoltStore{db: db, root: cacheDir}, nil
}

func createBuckets(tx *bbolt.Tx) error {
	for _, name := range []string{inputsBucket, outputsBucket} {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return err
		}
	}

	return nil
}

// Load implements Store
func (s *BoltStore) Load(_ context.Context, ns Namespace) (*Record, error) {
	var rec *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := []byte(ns.Key())

		var err error
		rec, err = decodeArtifacts(
			copyBytes(tx.Bucket([]byte(inputsBucket)).Get(key)),
			copyBytes(tx.Bucket([]byte(outputsBucket)).Get(key)),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", ns, err)
	}

	return rec, nil
}

// Save implements Store. Both artifacts are written in one transaction.
func (s *BoltStore) Save(_ context.Context, ns Namespace, rec *Record) error {
	inputs, outputs, err := encodeArtifacts(rec)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		key := []byte(ns.Key())
		if err := tx.Bucket([]byte(inputsBucket)).Put(key, inputs); err != nil {
			return err
		}

		return tx.Bucket([]byte(outputsBucket)).Put(key, outputs)
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", ns, err)
	}

	return nil
}

// Delete implements Store
func (s *BoltStore) Delete(_ context.Context, ns Namespace) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		key := []byte(ns.Key())
		if err := tx.Bucket([]byte(inputsBucket)).Delete(key); err != nil {
			return err
		}

		return tx.Bucket([]byte(outputsBucket)).Delete(key)
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", ns, err)
	}

	return nil
}

// Clear implements Store
func (s *BoltStore) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{inputsBucket, outputsBucket} {
			if err := tx.DeleteBucket([]byte(name)); err != nil {
				return err
			}
		}

		return createBuckets(tx)
	})
}

// Stats implements Store
func (s *BoltStore) Stats(_ context.Context) (Stats, error) {
	var stats Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(inputsBucket)).ForEach(func(k, v []byte) error {
			stats.Entries++
			stats.Size += int64(len(v))
			return nil
		}); err != nil {
			return err
		}

		return tx.Bucket([]byte(outputsBucket)).ForEach(func(k, v []byte) error {
			stats.Size += int64(len(v))
			return nil
		})
	})

	return stats, err
}

// Close implements Store
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}

	return nil
}

// bbolt values are only valid inside the transaction
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	return append([]byte(nil), b...)
}
