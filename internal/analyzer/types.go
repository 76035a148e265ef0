package analyzer

import (
	"errors"

	"github.com/Corezcy/record-latency/internal/intervals"
	"github.com/Corezcy/record-latency/internal/latency"
	"github.com/Corezcy/record-latency/internal/record"
	"github.com/Corezcy/record-latency/internal/storage"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// ErrValidationFailed is returned when the built table fails ValidateTable.
var ErrValidationFailed = errors.New("table validation failed")

// Skip reasons reported to metrics.
const (
	skipUnknownType = "unknown_type"
	skipChannel     = "channel_mismatch"
	skipDecode      = "decode_error"
)

// Stats counts what happened to the messages of one run.
type Stats struct {
	Read         int64
	Accepted     int64
	Skipped      int64
	DecodeErrors int64
	// Truncated is set when the record ended inside a section.
	Truncated bool
}

// Result is the outcome of one run.
type Result struct {
	RunID    string
	Mode     string
	Stats    Stats
	Channels []record.ChannelInfo

	// Rows and Stages are set in latency mode, Sheets in intervals mode.
	Rows   []latency.Row
	Stages []latency.StageSummary
	Sheets []*intervals.Sheet

	Validation ValidationResult
	Output     storage.OutputInfo
}
