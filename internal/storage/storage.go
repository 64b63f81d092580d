// Package storage defines the object-storage collaborator boundary.
package storage

import "context"

// ObjectStorage stores uploaded media and returns durable public URLs.
type ObjectStorage interface {
	// Store writes the object and returns its public URL.
	Store(ctx context.Context, data []byte, path string, contentType string) (string, error)

	// Delete removes the object; used by the record-deletion flow.
	Delete(ctx context.Context, path string) error
}
