package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoSize is the number of records kept in memory by a MemoStore
const DefaultMemoSize = 256

// MemoStore is a read-through in-memory layer over a slower store. One build
// loads the same upstream namespaces several times; only the first load
// reaches the backing store.
type MemoStore struct {
	backend Store
	records *lru.Cache[string, Record]
}

// NewMemoStore wraps backend with an LRU of the given size
func NewMemoStore(backend Store, size int) (*MemoStore, error) {
	records, err := lru.New[string, Record](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create memo cache: %w", err)
	}

	return &MemoStore{backend: backend, records: records}, nil
}

// Load implements Store. Misses are not memoized.
func (s *MemoStore) Load(ctx context.Context, ns Namespace) (*Record, error) {
	if rec, ok := s.records.Get(ns.Key()); ok {
		return &rec, nil
	}

	rec, err := s.backend.Load(ctx, ns)
	if err != nil || rec == nil {
		return rec, err
	}

	s.records.Add(ns.Key(), *rec)
	return rec, nil
}

// Save implements Store. The memo is only updated once the backend accepted
// the record.
func (s *MemoStore) Save(ctx context.Context, ns Namespace, rec *Record) error {
	if err := s.backend.Save(ctx, ns, rec); err != nil {
		s.records.Remove(ns.Key())
		return err
	}

	s.records.Add(ns.Key(), *rec)
	return nil
}

// Delete implements Store
func (s *MemoStore) Delete(ctx context.Context, ns Namespace) error {
	s.records.Remove(ns.Key())
	return s.backend.Delete(ctx, ns)
}

// Clear implements Store
func (s *MemoStore) Clear(ctx context.Context) error {
	s.records.Purge()
	return s.backend.Clear(ctx)
}

// Stats implements Store
func (s *MemoStore) Stats(ctx context.Context) (Stats, error) {
	return s.backend.Stats(ctx)
}

// Close implements Store
func (s *MemoStore) Close() error {
	s.records.Purge()
	return s.backend.Close()
}
