package storage

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Store abstracts writing result files to storage.
type Store interface {
	// Write stores data under key.
	Write(ctx context.Context, key string, data []byte) error

	// Exists checks if key is already present.
	Exists(ctx context.Context, key string) (bool, error)

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// AtomicStore extends Store with two-phase publish.
type AtomicStore interface {
	Store

	// WriteTemp writes data next to key and returns the temp key that can be
	// passed to Finalize.
	WriteTemp(ctx context.Context, key string, data []byte) (tempKey string, err error)

	// Finalize moves each temp key onto its final key. On failure nothing
	// already finalized is rolled back.
	Finalize(ctx context.Context, moves map[string]string) error

	// Abort removes temporary files without publishing.
	Abort(ctx context.Context, tempKeys []string) error
}

// AsAtomic attempts to cast a Store to AtomicStore.
// Returns nil if the store doesn't support atomic operations.
func AsAtomic(store Store) AtomicStore {
	if atomic, ok := store.(AtomicStore); ok {
		return atomic
	}
	return nil
}

// Location is a parsed input or output address.
type Location struct {
	// Scheme is "" for plain filesystem paths, else gs, s3 or file.
	Scheme string
	// BucketURL opens the containing bucket (blob schemes only).
	BucketURL string
	// Dir is the containing directory for plain paths.
	Dir string
	// Key is the object key within the bucket or the base name within Dir.
	Key string
}

// IsBlob reports whether the location goes through gocloud blob.
func (l Location) IsBlob() bool {
	return l.Scheme != ""
}

// S3Options tune s3:// bucket URLs. Works with AWS S3, Backblaze B2,
// Cloudflare R2, and MinIO.
type S3Options struct {
	Endpoint string
	Region   string
}

// ParseLocation splits a path or gs://, s3://, file:// URL into the bucket
// and key it refers to.
func ParseLocation(raw string, s3 S3Options) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	if !strings.Contains(raw, "://") {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return Location{}, fmt.Errorf("resolve %s: %w", raw, err)
		}
		return Location{Dir: filepath.Dir(abs), Key: filepath.Base(abs)}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse %s: %w", raw, err)
	}

	switch u.Scheme {
	case "gs":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("gs location needs bucket and object: %s", raw)
		}
		return Location{Scheme: "gs", BucketURL: "gs://" + u.Host, Key: key}, nil

	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, fmt.Errorf("s3 location needs bucket and object: %s", raw)
		}
		bucketURL := "s3://" + u.Host
		params := u.Query()
		if s3.Region != "" {
			params.Set("region", s3.Region)
		}
		if s3.Endpoint != "" {
			params.Set("endpoint", s3.Endpoint)
			params.Set("s3ForcePathStyle", "true")
		}
		if len(params) > 0 {
			bucketURL = bucketURL + "?" + params.Encode()
		}
		return Location{Scheme: "s3", BucketURL: bucketURL, Key: key}, nil

	case "file":
		p := u.Path
		if p == "" || strings.HasSuffix(p, "/") {
			return Location{}, fmt.Errorf("file location needs a file name: %s", raw)
		}
		dir, base := filepath.Split(p)
		return Location{Scheme: "file", BucketURL: "file://" + filepath.Clean(dir), Key: base}, nil

	default:
		return Location{}, fmt.Errorf("unsupported location scheme %q", u.Scheme)
	}
}

// Open returns a store rooted at the bucket or directory holding output, and
// the key output maps to inside it.
func Open(ctx context.Context, output string, s3 S3Options) (Store, string, error) {
	loc, err := ParseLocation(output, s3)
	if err != nil {
		return nil, "", err
	}
	if !loc.IsBlob() {
		store, err := NewLocalStore(loc.Dir)
		if err != nil {
			return nil, "", err
		}
		return store, loc.Key, nil
	}
	store, err := NewBlobStore(ctx, loc.BucketURL)
	if err != nil {
		return nil, "", err
	}
	return store, loc.Key, nil
}
