// Package blobstore provides opaque binary storage for page source blobs
// and rendered PDFs, keyed by application-chosen paths.
package blobstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no blob exists under the requested key.
var ErrNotFound = errors.New("blob not found")

// Store is the object store adapter. Put is idempotent by key; no lifecycle
// is assumed beyond read-after-write consistency for new keys.
type Store interface {
	// Put stores data under key, replacing any existing blob.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the blob under key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob under key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}

// Key conventions. Retention is an external concern; the adapter has no
// opinion beyond the path layout.

// SourceKey returns the object key for a page's raw device blob.
func SourceKey(userID, pageUUID string) string {
	return fmt.Sprintf("users/%s/pages/%s/source", userID, pageUUID)
}

// PDFKey returns the object key for a page's rendered PDF.
func PDFKey(userID, pageUUID string) string {
	return fmt.Sprintf("users/%s/pages/%s/pdf", userID, pageUUID)
}
