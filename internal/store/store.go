// Package store provides the local cache behind the gateway: a small set
// of named collections of JSON records keyed by natural identifiers
// (usernames, URLs, numeric ids). Records are stored verbatim as returned
// by the upstream API. A record is always the most recent successfully
// fetched version for its key; there is no versioning and no conflict
// resolution beyond last write wins.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get when a collection has no record for a key.
var ErrNotFound = errors.New("store: record not found")

// Entry pairs a record with its natural key for batch upserts.
type Entry struct {
	Key   string
	Value json.RawMessage
}

// Store is the persistence port for cached records. Individual operations
// are atomic; there are no transactional guarantees across collections or
// across calls.
type Store interface {
	// Get retrieves the record stored under key, or ErrNotFound.
	Get(ctx context.Context, collection, key string) (json.RawMessage, error)

	// Put upserts a single record.
	Put(ctx context.Context, collection, key string, value json.RawMessage) error

	// PutAll upserts a batch of records in one operation.
	PutAll(ctx context.Context, collection string, entries []Entry) error

	// List returns every record in the collection in key order.
	List(ctx context.Context, collection string) ([]json.RawMessage, error)

	// Close releases any resources held by the store.
	Close() error
}
