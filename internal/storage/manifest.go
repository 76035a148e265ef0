package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Corezcy/record-latency/internal/latency"
	"github.com/Corezcy/record-latency/internal/logging"
	"github.com/Corezcy/record-latency/internal/tables"
)

// ErrChecksumMismatch is returned when a manifest does not describe the data
// it is published with.
var ErrChecksumMismatch = errors.New("manifest checksum does not match output")

// ManifestSuffix is appended to an output key to name its manifest.
const ManifestSuffix = ".manifest.json"

// Manifest describes one published result file.
type Manifest struct {
	RunID     string                 `json:"run_id"`
	Mode      string                 `json:"mode"`
	Input     string                 `json:"input"`
	Output    OutputInfo             `json:"output"`
	Schema    string                 `json:"schema_version,omitempty"` // parquet only
	Stages    []latency.StageSummary `json:"stages,omitempty"`
	Producer  ProducerInfo           `json:"producer"`
	CreatedAt time.Time              `json:"created_at"`
}

// OutputInfo describes the result file itself.
type OutputInfo struct {
	URI      string `json:"uri"`
	Format   string `json:"format"`
	Checksum string `json:"checksum"`
	RowCount int64  `json:"row_count"`
	ByteSize int64  `json:"byte_size"`
}

// ProducerInfo describes the software that produced the output.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
}

// MarshalJSON returns the manifest as JSON bytes.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type Alias Manifest
	return json.MarshalIndent((*Alias)(m), "", "  ")
}

// ManifestKey returns the manifest key for an output key.
func ManifestKey(key string) string {
	return key + ManifestSuffix
}

// Publish writes data under key and, when manifest is non-nil, the manifest
// beside it. Atomic stores stage both files first so a failed write leaves
// neither behind.
func Publish(ctx context.Context, store Store, key string, data []byte, manifest *Manifest) error {
	files := map[string][]byte{key: data}
	if manifest != nil {
		if sum := manifest.Output.Checksum; sum != "" && !tables.VerifyChecksum(data, sum) {
			return fmt.Errorf("%w: %s", ErrChecksumMismatch, key)
		}
		m, err := manifest.MarshalJSON()
		if err != nil {
			return fmt.Errorf("marshal manifest: %w", err)
		}
		files[ManifestKey(key)] = m
	}

	logging.Component("storage").Debug("publishing",
		"run_id", logging.RunID(ctx),
		"uri", store.URI(key),
		"files", len(files),
	)

	atomic := AsAtomic(store)
	if atomic == nil {
		for k, b := range files {
			if err := store.Write(ctx, k, b); err != nil {
				return fmt.Errorf("write %s: %w", k, err)
			}
		}
		return nil
	}

	moves := make(map[string]string, len(files))
	var temps []string
	for k, b := range files {
		tempKey, err := atomic.WriteTemp(ctx, k, b)
		if err != nil {
			atomic.Abort(ctx, temps)
			return fmt.Errorf("write %s: %w", k, err)
		}
		moves[tempKey] = k
		temps = append(temps, tempKey)
	}
	if err := atomic.Finalize(ctx, moves); err != nil {
		atomic.Abort(ctx, temps)
		return err
	}
	return nil
}
