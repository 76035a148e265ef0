package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Corezcy/record-latency/internal/tables"
)

func TestLocalStoreAtomicOperations(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewLocalStore(tmpDir)
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	ctx := context.Background()
	data := []byte("fake workbook data for testing")

	tempKey, err := store.WriteTemp(ctx, "latency.xlsx", data)
	if err != nil {
		t.Fatalf("WriteTemp failed: %v", err)
	}

	// Verify temp file exists
	if _, err := os.Stat(filepath.Join(tmpDir, tempKey)); os.IsNotExist(err) {
		t.Error("temp file should exist")
	}

	// Final path shouldn't exist yet
	final := filepath.Join(tmpDir, "latency.xlsx")
	if _, err := os.Stat(final); !os.IsNotExist(err) {
		t.Error("final file should not exist before Finalize")
	}

	if err := store.Finalize(ctx, map[string]string{tempKey: "latency.xlsx"}); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	got, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("failed to read final file: %v", err)
	}
	if string(got) != string(data) {
		t.Error("data mismatch")
	}
	if _, err := os.Stat(filepath.Join(tmpDir, tempKey)); !os.IsNotExist(err) {
		t.Error("temp file should be removed after Finalize")
	}

	exists, err := store.Exists(ctx, "latency.xlsx")
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v; want true", exists, err)
	}
	if uri := store.URI("latency.xlsx"); uri != "file://"+final {
		t.Errorf("URI = %s", uri)
	}
}

func TestLocalStoreAbort(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewLocalStore(tmpDir)
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	ctx := context.Background()
	tempKey, _ := store.WriteTemp(ctx, "out.db", []byte("test data"))

	if err := store.Abort(ctx, []string{tempKey, "never-written"}); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 0 {
		t.Errorf("expected empty dir after Abort, got %d entries", len(entries))
	}
}

func TestPublishWithManifest(t *testing.T) {
	tmpDir := t.TempDir()

	store, key, err := Open(context.Background(), filepath.Join(tmpDir, "nested", "run.xlsx"), S3Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if key != "run.xlsx" {
		t.Fatalf("key = %q, want run.xlsx", key)
	}

	manifest := &Manifest{
		RunID: "run-1",
		Mode:  "latency",
		Input: "/data/a.record",
		Output: OutputInfo{
			URI:      store.URI(key),
			Format:   "xlsx",
			Checksum: tables.ComputeChecksum([]byte("data")),
			RowCount: 10,
			ByteSize: 4,
		},
		Producer:  ProducerInfo{Name: "record-latency", Version: "test"},
		CreatedAt: time.Now().UTC(),
	}

	if err := Publish(context.Background(), store, key, []byte("data"), manifest); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(tmpDir, "nested", "run.xlsx"+ManifestSuffix))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var got Manifest
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if got.RunID != "run-1" || got.Output.RowCount != 10 {
		t.Errorf("manifest round trip mismatch: %+v", got)
	}

	entries, _ := os.ReadDir(filepath.Join(tmpDir, "nested"))
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestPublishChecksumMismatch(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewLocalStore(tmpDir)
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	defer store.Close()

	manifest := &Manifest{RunID: "run-1", Output: OutputInfo{Checksum: tables.ComputeChecksum([]byte("other"))}}
	err = Publish(context.Background(), store, "run.xlsx", []byte("data"), manifest)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Publish error = %v, want ErrChecksumMismatch", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "run.xlsx")); !os.IsNotExist(err) {
		t.Errorf("output written despite mismatch: %v", err)
	}
}

func TestBlobStoreFileBucket(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	store, key, err := Open(ctx, "file://"+filepath.ToSlash(tmpDir)+"/out.parquet", S3Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*BlobStore); !ok {
		t.Fatalf("expected *BlobStore, got %T", store)
	}
	if err := Publish(ctx, store, key, []byte("PAR1"), nil); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	exists, err := store.Exists(ctx, key)
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v; want true", exists, err)
	}
	got, err := os.ReadFile(filepath.Join(tmpDir, "out.parquet"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != "PAR1" {
		t.Errorf("data = %q", got)
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		raw    string
		s3     S3Options
		want   Location
		hasErr bool
	}{
		{
			raw:  "gs://bucket/runs/a.xlsx",
			want: Location{Scheme: "gs", BucketURL: "gs://bucket", Key: "runs/a.xlsx"},
		},
		{
			raw:  "s3://bucket/a.parquet",
			s3:   S3Options{Endpoint: "http://minio:9000", Region: "us-east-1"},
			want: Location{Scheme: "s3", BucketURL: "s3://bucket?endpoint=http%3A%2F%2Fminio%3A9000&region=us-east-1&s3ForcePathStyle=true", Key: "a.parquet"},
		},
		{
			raw:  "file:///tmp/out/a.db",
			want: Location{Scheme: "file", BucketURL: "file:///tmp/out", Key: "a.db"},
		},
		{raw: "gs://bucket", hasErr: true},
		{raw: "ftp://host/x", hasErr: true},
		{raw: "", hasErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLocation(tt.raw, tt.s3)
		if tt.hasErr {
			if err == nil {
				t.Errorf("ParseLocation(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLocation(%q) error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLocation(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}

	loc, err := ParseLocation("out/latency.xlsx", S3Options{})
	if err != nil {
		t.Fatalf("ParseLocation relative: %v", err)
	}
	if loc.IsBlob() || loc.Key != "latency.xlsx" || !filepath.IsAbs(loc.Dir) {
		t.Errorf("unexpected relative location %+v", loc)
	}
}

func TestLocalStoreImplementsAtomicStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	if AsAtomic(store) == nil {
		t.Error("AsAtomic should return non-nil for LocalStore")
	}
}
