package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryStore keeps cached records in process memory. It backs tests and
// deployments that run without a data directory.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]json.RawMessage),
	}
}

// Get retrieves the record stored under key, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, collection, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.collections[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), value...), nil
}

// Put upserts a single record.
func (s *MemoryStore) Put(ctx context.Context, collection, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertLocked(collection, key, value)
	return nil
}

// PutAll upserts a batch of records.
func (s *MemoryStore) PutAll(ctx context.Context, collection string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.upsertLocked(collection, e.Key, e.Value)
	}
	return nil
}

// List returns every record in the collection in key order, matching the
// iteration order of the on-disk store.
func (s *MemoryStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.collections[collection]
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]json.RawMessage, 0, len(keys))
	for _, k := range keys {
		out = append(out, append(json.RawMessage(nil), records[k]...))
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) upsertLocked(collection, key string, value json.RawMessage) {
	records, ok := s.collections[collection]
	if !ok {
		records = make(map[string]json.RawMessage)
		s.collections[collection] = records
	}
	records[key] = append(json.RawMessage(nil), value...)
}
