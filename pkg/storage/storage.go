// Package storage persists rendered export artifacts on the local filesystem
// or an S3-compatible bucket and issues signed download grants for them.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when an object does not exist in the backing store.
var ErrNotFound = errors.New("storage object not found")

// Store is implemented by every export storage backend.
type Store interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	CleanupOlderThan(ctx context.Context, ttl time.Duration) ([]string, error)
}
