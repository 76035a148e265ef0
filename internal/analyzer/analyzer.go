// Package analyzer runs one pass over a record: it reads every message,
// builds the table for the configured mode and publishes it.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Corezcy/record-latency/internal/apollo"
	"github.com/Corezcy/record-latency/internal/config"
	"github.com/Corezcy/record-latency/internal/intervals"
	"github.com/Corezcy/record-latency/internal/latency"
	"github.com/Corezcy/record-latency/internal/logging"
	"github.com/Corezcy/record-latency/internal/metadata"
	"github.com/Corezcy/record-latency/internal/metrics"
	"github.com/Corezcy/record-latency/internal/record"
	"github.com/Corezcy/record-latency/internal/source"
	"github.com/Corezcy/record-latency/internal/storage"
)

// progressEvery is how many messages pass between progress log lines.
const progressEvery = 100_000

// Analyzer orchestrates one run.
type Analyzer struct {
	cfg     config.Config
	src     source.MessageSource
	store   storage.Store
	key     string
	meta    metadata.Writer
	metrics *metrics.Metrics
	runID   string
	log     *slog.Logger
}

// New creates an Analyzer reading src and publishing to key in store.
// A nil meta disables the run catalog.
func New(cfg config.Config, src source.MessageSource, store storage.Store, key string, meta metadata.Writer) *Analyzer {
	if meta == nil {
		meta, _ = metadata.NewWriter(context.Background(), metadata.CatalogConfig{})
	}
	runID := uuid.NewString()
	return &Analyzer{
		cfg:     cfg,
		src:     src,
		store:   store,
		key:     key,
		meta:    meta,
		metrics: metrics.Get(),
		runID:   runID,
		log:     logging.RunLogger(runID, cfg.Mode, cfg.Input.Path, store.URI(key)),
	}
}

// RunID returns the identifier of this run.
func (a *Analyzer) RunID() string {
	return a.runID
}

// Run reads the whole source, builds the output for the configured mode and
// publishes it. Decode failures are logged and skipped; a table that fails
// validation is not published and Run returns ErrValidationFailed.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	ctx = logging.WithRunID(ctx, a.runID)
	startTime := time.Now()

	a.log.Info("starting run", "format", a.cfg.OutputFormat())

	res := &Result{RunID: a.runID, Mode: a.cfg.Mode}

	var (
		corr    *latency.Correlator
		tracker *intervals.Tracker
	)
	switch a.cfg.Mode {
	case config.ModeLatency:
		corr = latency.NewCorrelator(a.cfg.Channels)
	case config.ModeIntervals:
		tracker = intervals.NewTracker()
	}

	err := a.scan(&res.Stats, func(m record.Message) {
		switch {
		case corr != nil:
			a.observeLatency(corr, m, &res.Stats)
		case tracker != nil:
			tracker.Observe(m.Channel, m.Type, m.Time)
			res.Stats.Accepted++
		}
	})
	if err != nil {
		return nil, err
	}
	res.Channels = a.src.Channels()

	a.log.Info("scan complete",
		"messages", res.Stats.Read,
		"accepted", res.Stats.Accepted,
		"skipped", res.Stats.Skipped,
		"decode_errors", res.Stats.DecodeErrors,
		"channels", len(res.Channels),
		"truncated", res.Stats.Truncated,
	)

	if corr != nil {
		res.Rows = corr.Table()
		res.Stages = latency.Summarize(res.Rows)
		res.Validation = ValidateTable(res.Rows)
		for _, w := range res.Validation.Warnings {
			a.log.Warn("validation warning", "warning", w)
		}
		if !res.Validation.Passed {
			for _, e := range res.Validation.Errors {
				a.log.Error("validation error", "error", e)
			}
			a.recordRun(ctx, res, startTime)
			return res, fmt.Errorf("%w: %d errors", ErrValidationFailed, len(res.Validation.Errors))
		}
		a.observeRows(res.Rows)
	} else {
		res.Validation = ValidationResult{Passed: true}
	}
	if tracker != nil {
		res.Sheets = tracker.Sheets()
	}

	if err := a.publish(ctx, res); err != nil {
		return res, err
	}

	if corr != nil && a.cfg.Output.PlotPath != "" {
		// The table is already published, so a failed plot only warns.
		if err := a.writePlot(ctx, res.Rows); err != nil {
			a.log.Warn("failed to write plot", "path", a.cfg.Output.PlotPath, "error", err)
		}
	}

	a.recordRun(ctx, res, startTime)

	elapsed := time.Since(startTime)
	a.metrics.ObserveRunDuration(elapsed.Seconds())
	a.log.Info("run complete",
		"rows", res.Output.RowCount,
		"bytes", res.Output.ByteSize,
		"uri", res.Output.URI,
		"duration", elapsed.String(),
	)
	return res, nil
}

// scan feeds every message of the source to fn in stream order. A record
// that ends inside a section is treated as ending there; a cut segment before
// the last one is skipped by the source and only marks the stats.
func (a *Analyzer) scan(stats *Stats, fn func(record.Message)) error {
	for {
		m, err := a.src.Next()
		if errors.Is(err, io.EOF) {
			if source.Truncated(a.src) {
				stats.Truncated = true
			}
			return nil
		}
		if errors.Is(err, record.ErrTruncated) {
			a.log.Warn("record truncated, using messages read so far", "messages", stats.Read)
			stats.Truncated = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("read record: %w", err)
		}

		stats.Read++
		a.metrics.IncMessagesRead(m.Channel)
		if stats.Read%progressEvery == 0 {
			a.log.Info("progress", "messages", stats.Read)
		}

		fn(m)
	}
}

// observeLatency decodes m when its type and channel belong to a stage and
// applies it to corr.
func (a *Analyzer) observeLatency(corr *latency.Correlator, m record.Message, stats *Stats) {
	kind := apollo.KindOf(m.Type)
	if kind == apollo.KindUnknown {
		a.skip(stats, skipUnknownType)
		return
	}
	if !a.cfg.Channels.Accepts(kind, m.Channel) {
		a.log.Debug("type on unexpected channel", "channel", m.Channel, "type", m.Type)
		a.skip(stats, skipChannel)
		return
	}

	msg, err := apollo.Decode(m.Type, m.Content)
	if err != nil {
		a.log.Warn("failed to decode message",
			"channel", m.Channel,
			"type", m.Type,
			"time", m.Time,
			"error", err,
		)
		stats.DecodeErrors++
		a.metrics.IncDecodeErrors(kind.String())
		a.skip(stats, skipDecode)
		return
	}

	if got := corr.Observe(m.Channel, msg, m.Time); got != apollo.KindUnknown {
		stats.Accepted++
		a.metrics.IncMessagesDecoded(got.String())
		if h, ok := apollo.HeaderOf(msg); ok {
			a.log.Debug("observed", "stage", got.String(), "lidar_timestamp", h.LidarTimestamp)
		}
		return
	}
	a.skip(stats, skipUnknownType)
}

func (a *Analyzer) skip(stats *Stats, reason string) {
	stats.Skipped++
	a.metrics.IncMessagesSkipped(reason)
}

func (a *Analyzer) observeRows(rows []latency.Row) {
	if a.metrics == nil {
		return
	}
	for _, r := range rows {
		for _, k := range apollo.Kinds {
			if ts, d := r.Stage(k); ts != latency.Missing {
				a.metrics.ObserveStageLatency(k.String(), float64(d))
			}
		}
	}
}

// recordRun writes the catalog entry. The catalog is optional, so failures
// only warn.
func (a *Analyzer) recordRun(ctx context.Context, res *Result, started time.Time) {
	rec := metadata.NewRunRecord(a.runID, a.cfg.Catalog.Namespace, a.cfg.Mode, a.cfg.Input.Path, started)
	rec.OutputURI = res.Output.URI
	rec.Format = res.Output.Format
	rec.Checksum = res.Output.Checksum
	rec.RowCount = res.Output.RowCount
	rec.ByteSize = res.Output.ByteSize
	rec.Passed = res.Validation.Passed
	rec.ErrorMessage = metadata.ErrorMessage(res.Validation.Errors)
	rec.ProducerVersion = fmt.Sprintf("record-latency@%s", Version)
	rec.Channels = metadata.ChannelStats(res.Channels)
	rec.Stages = res.Stages

	if err := a.meta.RecordRun(ctx, rec); err != nil {
		a.log.Warn("failed to record run in catalog", "error", err)
		a.metrics.IncCatalogErrors()
	}
}
