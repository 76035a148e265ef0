package metadata

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corezcy/record-latency/internal/latency"
	"github.com/Corezcy/record-latency/internal/record"
)

func TestNewWriterWithoutDSNIsNoop(t *testing.T) {
	w, err := NewWriter(context.Background(), CatalogConfig{Namespace: "default"})
	require.NoError(t, err)
	defer w.Close()

	assert.IsType(t, noopWriter{}, w)
	assert.NoError(t, w.RecordRun(context.Background(), RunRecord{RunID: "r1"}))
}

func TestNewWriterBadDSN(t *testing.T) {
	_, err := NewWriter(context.Background(), CatalogConfig{PostgresDSN: "://not a dsn"})
	assert.Error(t, err)
}

func TestChannelStats(t *testing.T) {
	stats := ChannelStats([]record.ChannelInfo{
		{Name: "/apollo/planning", MessageType: "apollo.planning.ADCTrajectory", Read: 3, FirstTime: 10, LastTime: 30},
		{Name: "/apollo/prediction", MessageType: "apollo.prediction.PredictionObstacles", Read: 1, Indexed: 7},
	})
	require.Len(t, stats, 2)
	assert.Equal(t, ChannelStat{
		Name:        "/apollo/planning",
		MessageType: "apollo.planning.ADCTrajectory",
		Messages:    3,
		FirstTime:   10,
		LastTime:    30,
	}, stats[0])
	assert.Equal(t, int64(7), stats[1].Messages)
}

func TestNewRunRecord(t *testing.T) {
	started := time.Date(2021, 5, 1, 15, 59, 9, 0, time.FixedZone("CST", 8*3600))
	rec := NewRunRecord("r1", "default", "latency", "in.record", started)
	assert.Equal(t, time.UTC, rec.StartedAt.Location())
	assert.True(t, rec.StartedAt.Equal(started))
	assert.False(t, rec.FinishedAt.Before(rec.StartedAt))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, "a; b", ErrorMessage([]string{"a", "b"}))
}

// TestPostgresRecordRun needs a live database and runs only when
// CATALOG_TEST_DSN is set.
func TestPostgresRecordRun(t *testing.T) {
	dsn := os.Getenv("CATALOG_TEST_DSN")
	if dsn == "" {
		t.Skip("CATALOG_TEST_DSN not set")
	}

	ctx := context.Background()
	w, err := NewPostgresWriter(ctx, CatalogConfig{PostgresDSN: dsn, Namespace: "test"})
	require.NoError(t, err)
	defer w.Close()

	rec := NewRunRecord("test-run", "", "latency", "in.record", time.Now())
	rec.OutputURI = "file:///tmp/out.xlsx"
	rec.Format = "xlsx"
	rec.Passed = true
	rec.Channels = []ChannelStat{{Name: "/apollo/planning", MessageType: "apollo.planning.ADCTrajectory", Messages: 1}}
	rec.Stages = []latency.StageSummary{{Stage: "planning", Count: 1, Mean: 50}}

	require.NoError(t, w.RecordRun(ctx, rec))
	// Recording the same run twice replaces it.
	require.NoError(t, w.RecordRun(ctx, rec))
}
