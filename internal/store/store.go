// Package store provides the key-value collaborator behind the relay: point
// lookup, point write, point delete and prefix scan over opaque JSON values.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// Store is a string-keyed map of JSON documents. Writes overwrite; every
// operation is atomic per key and nothing more is promised.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// ScanPrefix returns the values of every key starting with prefix.
	// Callers must not rely on the order.
	ScanPrefix(ctx context.Context, prefix string) ([][]byte, error)
	Ping(ctx context.Context) error
	Close() error
}
