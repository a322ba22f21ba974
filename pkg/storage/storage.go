// Package storage keeps uploaded product images on the local filesystem or in
// an S3 compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidKey is returned for keys that would escape the store.
var ErrInvalidKey = errors.New("invalid storage key")

// ImageStore saves and removes image files addressed by a slash separated key.
type ImageStore interface {
	// Save writes body under key and returns the public URL of the file.
	Save(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	// Delete removes the file under key. Missing files are not an error.
	Delete(ctx context.Context, key string) error
}
