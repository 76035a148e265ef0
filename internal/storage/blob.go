package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // GCS driver
	_ "gocloud.dev/blob/s3blob"   // S3 driver
)

// BlobStore writes result files to any gocloud blob bucket.
type BlobStore struct {
	bucket    *blob.Bucket
	bucketURL string
}

// NewBlobStore opens the bucket at bucketURL (gs://, s3:// or file://).
func NewBlobStore(ctx context.Context, bucketURL string) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return &BlobStore{bucket: bucket, bucketURL: bucketURL}, nil
}

// Write stores data under key.
func (s *BlobStore) Write(ctx context.Context, key string, data []byte) error {
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write data to %s: %w", key, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}

	return nil
}

// Exists checks if key is already present.
func (s *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.bucket.Exists(ctx, key)
}

// URI returns the canonical URI for the given key.
func (s *BlobStore) URI(key string) string {
	base := s.bucketURL
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}

// Close releases the bucket connection.
func (s *BlobStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

// --- AtomicStore implementation ---

// WriteTemp writes data to a temporary key.
func (s *BlobStore) WriteTemp(ctx context.Context, key string, data []byte) (string, error) {
	tempKey := key + ".tmp." + uuid.New().String()
	if err := s.Write(ctx, tempKey, data); err != nil {
		return "", err
	}
	return tempKey, nil
}

// Finalize copies every temp object onto its final key, then deletes the
// temp objects.
func (s *BlobStore) Finalize(ctx context.Context, moves map[string]string) error {
	for tempKey, key := range moves {
		if err := s.copyObject(ctx, tempKey, key); err != nil {
			temps := make([]string, 0, len(moves))
			for k := range moves {
				temps = append(temps, k)
			}
			s.Abort(ctx, temps)
			return fmt.Errorf("finalize %s -> %s: %w", tempKey, key, err)
		}
	}

	// Delete all temp files after successful copy
	for tempKey := range moves {
		s.bucket.Delete(ctx, tempKey) // ignore errors
	}
	return nil
}

// copyObject copies an object within the bucket.
func (s *BlobStore) copyObject(ctx context.Context, srcKey, dstKey string) error {
	r, err := s.bucket.NewReader(ctx, srcKey, nil)
	if err != nil {
		return fmt.Errorf("open source %s: %w", srcKey, err)
	}
	defer r.Close()

	w, err := s.bucket.NewWriter(ctx, dstKey, nil)
	if err != nil {
		return fmt.Errorf("create destination %s: %w", dstKey, err)
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("copy to %s: %w", dstKey, err)
	}

	return w.Close()
}

// Abort removes temporary files without publishing.
func (s *BlobStore) Abort(ctx context.Context, tempKeys []string) error {
	var lastErr error
	for _, key := range tempKeys {
		if err := s.bucket.Delete(ctx, key); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Verify BlobStore implements AtomicStore.
var _ AtomicStore = (*BlobStore)(nil)
