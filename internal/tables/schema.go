package tables

import (
	"github.com/Corezcy/record-latency/internal/intervals"
	"github.com/Corezcy/record-latency/internal/latency"
)

// LatencyRow is one joined key of the latency table. Absent stages keep the
// -1 sentinel so the columns stay non-nullable.
type LatencyRow struct {
	LidarTimestamp   int64 `parquet:"lidar_timestamp"`
	Compensator      int64 `parquet:"compensator_timestamp"`
	DeltaCompensator int64 `parquet:"delta_compensator_ms"`
	Perception       int64 `parquet:"perception_timestamp"`
	DeltaPerception  int64 `parquet:"delta_perception_ms"`
	Prediction       int64 `parquet:"prediction_timestamp"`
	DeltaPrediction  int64 `parquet:"delta_prediction_ms"`
	PredictionSpan   int64 `parquet:"prediction_span_ms"`
	Planning         int64 `parquet:"planning_timestamp"`
	DeltaPlanning    int64 `parquet:"delta_planning_ms"`

	// Run metadata
	RunID string `parquet:"run_id"`
}

// TableName returns the canonical table name.
func (LatencyRow) TableName() string {
	return "latency"
}

// IntervalRow is one message arrival of the intervals report.
type IntervalRow struct {
	Sheet       string  `parquet:"sheet"`
	Channel     string  `parquet:"channel"`
	MessageType string  `parquet:"message_type"`
	Timestamp   int64   `parquet:"timestamp"`
	IntervalMs  float64 `parquet:"interval_ms"`
}

// TableName returns the canonical table name.
func (IntervalRow) TableName() string {
	return "intervals"
}

// LatencyRows converts joined rows, stamping each with runID.
func LatencyRows(rows []latency.Row, runID string) []LatencyRow {
	out := make([]LatencyRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, LatencyRow{
			LidarTimestamp:   int64(r.Key),
			Compensator:      r.Compensator,
			DeltaCompensator: r.DeltaCompensator,
			Perception:       r.Perception,
			DeltaPerception:  r.DeltaPerception,
			Prediction:       r.Prediction,
			DeltaPrediction:  r.DeltaPrediction,
			PredictionSpan:   r.PredictionSpan,
			Planning:         r.Planning,
			DeltaPlanning:    r.DeltaPlanning,
			RunID:            runID,
		})
	}
	return out
}

// IntervalRows flattens interval sheets in sheet order.
func IntervalRows(sheets []*intervals.Sheet) []IntervalRow {
	var out []IntervalRow
	for _, s := range sheets {
		for _, e := range s.Entries {
			out = append(out, IntervalRow{
				Sheet:       s.Name,
				Channel:     s.Channel,
				MessageType: s.Type,
				Timestamp:   int64(e.Timestamp),
				IntervalMs:  e.IntervalMs,
			})
		}
	}
	return out
}

// ParquetConfig configures parquet output generation.
type ParquetConfig struct {
	Compression string // "snappy" | "zstd" | "none"
}

// DefaultParquetConfig returns sensible defaults.
func DefaultParquetConfig() ParquetConfig {
	return ParquetConfig{
		Compression: "snappy",
	}
}

// SchemaVersion returns the version of the schema.
// Increment this when making breaking changes.
const SchemaVersion = "1.0.0"
