// Package kv defines the key-value store contract shared by every storage
// engine. Values are opaque bytes; single-key operations are atomic, prefix
// scans observe no cross-key snapshot.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value exists for the key.
var ErrNotFound = errors.New("kv: key not found")

// Entry is one key/value pair returned by a prefix scan.
type Entry struct {
	Key   string
	Value []byte
}

// Store is the storage primitive: exact-key get/set/delete, prefix scan and a
// bytes-level compare-and-swap used for optimistic read-modify-write.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key, creating or replacing it.
	Set(ctx context.Context, key string, value []byte) error

	// SetIfMatch writes next under key only if the current value is
	// byte-identical to expected. It returns false (and no error) when the
	// current value differs or the key is gone.
	SetIfMatch(ctx context.Context, key string, expected, next []byte) (bool, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ScanPrefix returns every entry whose key starts with prefix, ordered
	// by key. Concurrent writes may or may not be observed.
	ScanPrefix(ctx context.Context, prefix string) ([]Entry, error)

	// Close releases the engine's resources.
	Close() error
}
