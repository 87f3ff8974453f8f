package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists cached records in BadgerDB. Collections share one
// database; records live under "<collection>/<key>" so a collection scan
// is a prefix iteration.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the store at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func recordKey(collection, key string) []byte {
	return []byte(collection + "/" + key)
}

// Get retrieves the record stored under key, or ErrNotFound.
func (s *BadgerStore) Get(ctx context.Context, collection, key string) (json.RawMessage, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(collection, key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			value = append([]byte(nil), v...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put upserts a single record.
func (s *BadgerStore) Put(ctx context.Context, collection, key string, value json.RawMessage) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(collection, key), value)
	})
}

// PutAll upserts a batch of records in one transaction.
func (s *BadgerStore) PutAll(ctx context.Context, collection string, entries []Entry) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, e := range entries {
			if err := txn.Set(recordKey(collection, e.Key), e.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// List returns every record in the collection in key order.
func (s *BadgerStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	prefix := []byte(collection + "/")
	var records []json.RawMessage
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(v []byte) error {
				records = append(records, append([]byte(nil), v...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Close flushes and closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
