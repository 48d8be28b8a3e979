package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// LocalStorage implements StorageAdapter using the local filesystem.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage adapter.
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

// Delete removes a file.
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	fullPath := filepath.Join(s.basePath, path)
	return os.Remove(fullPath)
}

// Exists checks if a file exists.
func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	fullPath := filepath.Join(s.basePath, path)
	_, err := os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// GenerateUploadURL is not supported for local storage.
func (s *LocalStorage) GenerateUploadURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	return "", errors.New("presigned URLs not supported for local storage")
}

// GenerateDownloadURL is not supported for local storage.
func (s *LocalStorage) GenerateDownloadURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	return "", errors.New("presigned URLs not supported for local storage")
}

// GetContent retrieves raw file content from local storage.
func (s *LocalStorage) GetContent(ctx context.Context, path string) ([]byte, error) {
	fullPath := filepath.Join(s.basePath, path)
	return os.ReadFile(fullPath)
}

// PutContent stores raw content to local storage.
func (s *LocalStorage) PutContent(ctx context.Context, path string, content []byte, contentType string) error {
	fullPath := filepath.Join(s.basePath, path)

	// Ensure parent directory exists
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(fullPath, content, 0644)
}
