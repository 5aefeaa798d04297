// Package blob abstracts the audio artifact store behind a small interface
// backed by the local filesystem.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested artifact does not exist in the store.
var ErrNotFound = errors.New("blob not found")

// Store persists audio artifacts under logical storage paths. Uploads are
// idempotent: writing the same path twice replaces the artifact atomically.
type Store interface {
	Upload(ctx context.Context, storagePath string, payload []byte) error
	Download(ctx context.Context, storagePath string) ([]byte, error)
	Exists(ctx context.Context, storagePath string) (bool, error)
}
