package metadata

import (
	"context"
	"time"

	"github.com/Corezcy/record-latency/internal/latency"
)

type CatalogConfig struct {
	PostgresDSN string
	Namespace   string
}

// Writer records analyzer runs in a catalog.
type Writer interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	Close() error
}

// RunRecord is the catalog entry for one analyzer run.
type RunRecord struct {
	RunID           string
	Namespace       string
	Mode            string
	Input           string
	OutputURI       string
	Format          string
	Checksum        string
	RowCount        int64
	ByteSize        int64
	Passed          bool
	ErrorMessage    string
	ProducerVersion string
	Channels        []ChannelStat
	Stages          []latency.StageSummary
	StartedAt       time.Time
	FinishedAt      time.Time
}

// NewWriter returns a PostgreSQL writer when a DSN is configured and a no-op
// writer otherwise.
func NewWriter(ctx context.Context, cfg CatalogConfig) (Writer, error) {
	if cfg.PostgresDSN == "" {
		return noopWriter{cfg: cfg}, nil
	}
	w, err := NewPostgresWriter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return w, nil
}

type noopWriter struct {
	cfg CatalogConfig
}

func (n noopWriter) RecordRun(_ context.Context, _ RunRecord) error { return nil }

func (n noopWriter) Close() error { return nil }
