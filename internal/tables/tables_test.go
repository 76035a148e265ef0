package tables

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corezcy/record-latency/internal/intervals"
	"github.com/Corezcy/record-latency/internal/latency"
)

func TestLatencyParquetRoundTrip(t *testing.T) {
	rows := LatencyRows([]latency.Row{
		{Key: 42, Compensator: 42_010_000, DeltaCompensator: 42, Perception: 42_000, DeltaPerception: 0,
			Prediction: latency.Missing, DeltaPrediction: latency.Missing, PredictionSpan: latency.Missing,
			Planning: latency.Missing, DeltaPlanning: latency.Missing},
		{Key: 43, Compensator: 50_000_000, DeltaCompensator: 49, Perception: latency.Missing, DeltaPerception: latency.Missing,
			Prediction: 60_000_000, DeltaPrediction: 59, PredictionSpan: 50,
			Planning: 70_000_000, DeltaPlanning: 69},
	}, "run-1")

	for _, codec := range []string{"snappy", "zstd", "none"} {
		t.Run(codec, func(t *testing.T) {
			data, err := EncodeParquet(rows, ParquetConfig{Compression: codec})
			require.NoError(t, err)
			assert.Equal(t, "PAR1", string(data[:4]))

			got, err := DecodeParquet[LatencyRow](data)
			require.NoError(t, err)
			if diff := cmp.Diff(rows, got); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIntervalRows(t *testing.T) {
	tr := intervals.NewTracker()
	tr.Observe("/apollo/planning", "apollo.planning.ADCTrajectory", 1_000_000)
	tr.Observe("/apollo/planning", "apollo.planning.ADCTrajectory", 3_500_000)

	rows := IntervalRows(tr.Sheets())
	require.Len(t, rows, 2)
	assert.Equal(t, "-planning", rows[1].Sheet)
	assert.Equal(t, 2.5, rows[1].IntervalMs)

	data, err := EncodeParquet(rows, DefaultParquetConfig())
	require.NoError(t, err)
	got, err := DecodeParquet[IntervalRow](data)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestUnknownCompression(t *testing.T) {
	_, err := EncodeParquet([]LatencyRow{}, ParquetConfig{Compression: "lzo"})
	assert.Error(t, err)
}

func TestChecksum(t *testing.T) {
	sum := ComputeChecksum([]byte("abc"))
	assert.True(t, strings.HasPrefix(sum, "sha256:"))
	assert.Equal(t, "sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)
	assert.True(t, VerifyChecksum([]byte("abc"), sum))
	assert.False(t, VerifyChecksum([]byte("abd"), sum))
}
