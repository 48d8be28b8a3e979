package storage

import (
	"context"
	"time"
)

// StorageAdapter defines the interface for storage operations: raw PDF
// bytes in, parsed-text and derived artifacts out. Papers are
// content-addressed (spec §3), so paths are caller-chosen rather than
// directory-listed.
type StorageAdapter interface {
	// Delete removes a file.
	Delete(ctx context.Context, path string) error

	// Exists checks if a file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// GenerateUploadURL generates a presigned URL for uploads.
	GenerateUploadURL(ctx context.Context, path string, expiry time.Duration) (string, error)

	// GenerateDownloadURL generates a presigned URL for downloads.
	GenerateDownloadURL(ctx context.Context, path string, expiry time.Duration) (string, error)

	// GetContent retrieves raw file content from storage.
	GetContent(ctx context.Context, path string) ([]byte, error)

	// PutContent stores raw content to storage.
	PutContent(ctx context.Context, path string, content []byte, contentType string) error
}
