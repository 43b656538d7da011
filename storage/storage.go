// Package storage holds report images in an external object store.
package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no object store credentials are available
var ErrNotConfigured = errors.New("object store is not configured")

// ObjectStore uploads and removes binary objects addressed by path
type ObjectStore interface {
	// Upload stores data at path and returns its public URL
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
}
