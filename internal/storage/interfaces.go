// Package storage defines the content store for promoted documents.
// The store is content-addressed: each file is persisted at a location
// derived from the SHA-256 of its bytes, so identical uploads dedupe.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrContentNotFound is returned when no content exists for an address.
var ErrContentNotFound = errors.New("content not found")

// Backend defines the interface for content store backends.
// Implementations include the local filesystem and S3-compatible stores.
type Backend interface {
	// Store persists content from a reader and returns its content address,
	// the SHA-256 hash of the bytes as 64 hex characters. Storing content
	// that already exists is a no-op returning the same address.
	Store(ctx context.Context, reader io.Reader) (contentAddress string, err error)

	// Retrieve opens the content at the given address.
	// Returns ErrContentNotFound if nothing is stored there.
	Retrieve(ctx context.Context, contentAddress string) (io.ReadCloser, error)

	// Delete removes the content at the given address.
	Delete(ctx context.Context, contentAddress string) error

	// Exists reports whether content is stored at the given address.
	Exists(ctx context.Context, contentAddress string) (bool, error)

	// URL returns a stable URL for the content, used as the document's
	// contentUrl after promotion.
	URL(contentAddress string) string
}
