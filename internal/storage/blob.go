// Package storage holds the physical side of stored files: generated
// names, the on-disk layout under the upload root, and the blob backends
// (local filesystem or MinIO) that hold the bytes.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key has no stored bytes.
var ErrNotFound = errors.New("blob not found")

// ErrExists is returned by Put when key already holds bytes.
var ErrExists = errors.New("blob already exists")

// Blob stores file contents by key. Keys are slash separated and relative
// to the upload root, e.g. "2024-05-01/1714550400000-<hash>.png".
type Blob interface {
	// Put writes r under key. size may be -1 when unknown. Existing
	// keys are never overwritten; Put returns ErrExists instead.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open returns the contents of key. The caller must close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Remove deletes key, returning ErrNotFound when it does not exist.
	Remove(ctx context.Context, key string) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
