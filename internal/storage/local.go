package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore writes result files to the local filesystem.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a new local filesystem store.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	// Ensure base directory exists
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}

	return &LocalStore{baseDir: baseDir}, nil
}

// Write stores data atomically using temp file + rename.
func (s *LocalStore) Write(ctx context.Context, key string, data []byte) error {
	tempKey, err := s.WriteTemp(ctx, key, data)
	if err != nil {
		return err
	}
	return s.Finalize(ctx, map[string]string{tempKey: key})
}

// Exists checks if key is already present.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// URI returns the canonical URI for the given key.
func (s *LocalStore) URI(key string) string {
	return "file://" + s.path(key)
}

// Close is a no-op for local storage.
func (s *LocalStore) Close() error {
	return nil
}

// WriteTemp writes data to a uniquely named sibling of key.
func (s *LocalStore) WriteTemp(ctx context.Context, key string, data []byte) (string, error) {
	tempKey := key + ".tmp." + uuid.New().String()
	path := s.path(tempKey)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write temp file %s: %w", path, err)
	}
	return tempKey, nil
}

// Finalize renames temp files onto their final keys.
func (s *LocalStore) Finalize(ctx context.Context, moves map[string]string) error {
	for tempKey, key := range moves {
		src, dst := s.path(tempKey), s.path(key)
		if err := os.Rename(src, dst); err != nil {
			// Clean up temp file on rename failure
			os.Remove(src)
			return fmt.Errorf("rename %s to %s: %w", src, dst, err)
		}
	}
	return nil
}

// Abort removes temporary files without publishing.
func (s *LocalStore) Abort(ctx context.Context, tempKeys []string) error {
	var lastErr error
	for _, key := range tempKeys {
		if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
			lastErr = err
		}
	}
	return lastErr
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.baseDir, key)
}

// Verify LocalStore implements AtomicStore.
var _ AtomicStore = (*LocalStore)(nil)
