// Package blob provides durable byte storage keyed by name. Each backend
// stores whole objects; there are no partial writes or appends.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("blob: object not found")

// Store provides an interface for durable key/value byte storage.
// This interface enables mocking and testing of storage functionality.
type Store interface {
	// Get returns the full object stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the object stored under key.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any client held by the backend.
	Close() error
}
