package analyzer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Corezcy/record-latency/internal/chart"
	"github.com/Corezcy/record-latency/internal/config"
	"github.com/Corezcy/record-latency/internal/export"
	"github.com/Corezcy/record-latency/internal/intervals"
	"github.com/Corezcy/record-latency/internal/latency"
	"github.com/Corezcy/record-latency/internal/record"
	"github.com/Corezcy/record-latency/internal/storage"
	"github.com/Corezcy/record-latency/internal/tables"
)

// InfoSheetName is the sheet written in info mode.
const InfoSheetName = "Channels"

// InfoColumns is the header row of the info sheet.
var InfoColumns = []string{"channel", "type", "messages", "first_timestamp(ns)", "last_timestamp(ns)"}

// publish is the lifecycle for writing a result.
//
// The order of operations is:
//  1. Encode the output in memory
//  2. Compute the checksum
//  3. Write output and manifest (temp -> finalize if supported)
func (a *Analyzer) publish(ctx context.Context, res *Result) error {
	format := a.cfg.OutputFormat()

	data, rowCount, err := a.encode(ctx, res, format)
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}

	res.Output = storage.OutputInfo{
		URI:      a.store.URI(a.key),
		Format:   format,
		Checksum: tables.ComputeChecksum(data),
		RowCount: rowCount,
		ByteSize: int64(len(data)),
	}

	var manifest *storage.Manifest
	if a.cfg.Output.Manifest {
		manifest = a.buildManifest(res)
	}

	if exists, err := a.store.Exists(ctx, a.key); err == nil && exists {
		a.log.Info("replacing existing output", "uri", res.Output.URI)
	}

	start := time.Now()
	if err := storage.Publish(ctx, a.store, a.key, data, manifest); err != nil {
		a.metrics.IncStorageErrors(backendOf(res.Output.URI))
		return fmt.Errorf("publish %s: %w", res.Output.URI, err)
	}
	a.metrics.ObservePublishDuration(time.Since(start).Seconds())
	a.metrics.SetOutputBytes(float64(res.Output.ByteSize))

	a.log.Info("published output",
		"uri", res.Output.URI,
		"checksum", res.Output.Checksum,
		"manifest", manifest != nil,
	)
	return nil
}

// encode renders the result in format and returns the bytes with the number
// of data rows.
func (a *Analyzer) encode(ctx context.Context, res *Result, format string) ([]byte, int64, error) {
	if format == export.FormatParquet {
		return a.encodeParquet(res)
	}

	var wb *export.Workbook
	switch a.cfg.Mode {
	case config.ModeLatency:
		wb = LatencyWorkbook(res.Rows)
	case config.ModeIntervals:
		wb = IntervalsWorkbook(res.Sheets)
	case config.ModeInfo:
		wb = InfoWorkbook(res.Channels)
	default:
		return nil, 0, fmt.Errorf("unknown mode: %q", a.cfg.Mode)
	}
	for _, s := range wb.Sheets {
		a.metrics.SetTableRows(s.Name, float64(len(s.Rows)))
	}

	data, err := export.Encode(ctx, wb, format)
	if err != nil {
		return nil, 0, err
	}
	return data, wb.RowCount(), nil
}

func (a *Analyzer) encodeParquet(res *Result) ([]byte, int64, error) {
	cfg := tables.DefaultParquetConfig()
	if a.cfg.Output.Compression != "" {
		cfg.Compression = a.cfg.Output.Compression
	}

	switch a.cfg.Mode {
	case config.ModeLatency:
		rows := tables.LatencyRows(res.Rows, a.runID)
		a.metrics.SetTableRows(tables.LatencyRow{}.TableName(), float64(len(rows)))
		data, err := tables.EncodeParquet(rows, cfg)
		return data, int64(len(rows)), err
	case config.ModeIntervals:
		rows := tables.IntervalRows(res.Sheets)
		a.metrics.SetTableRows(tables.IntervalRow{}.TableName(), float64(len(rows)))
		data, err := tables.EncodeParquet(rows, cfg)
		return data, int64(len(rows)), err
	default:
		return nil, 0, fmt.Errorf("%s mode has no parquet output", a.cfg.Mode)
	}
}

// LatencyWorkbook lays the joined table out as the Total sheet, every cell
// as text.
func LatencyWorkbook(rows []latency.Row) *export.Workbook {
	wb := &export.Workbook{}
	sheet := wb.AddSheet(latency.SheetName, latency.Columns)
	for _, r := range rows {
		sheet.AppendStrings(r.Strings())
	}
	return wb
}

// IntervalsWorkbook writes one sheet per channel sheet.
func IntervalsWorkbook(sheets []*intervals.Sheet) *export.Workbook {
	wb := &export.Workbook{}
	for _, s := range sheets {
		sheet := wb.AddSheet(s.Name, intervals.Columns)
		sheet.Rows = s.Rows()
	}
	return wb
}

// InfoWorkbook lists the channels of the record.
func InfoWorkbook(channels []record.ChannelInfo) *export.Workbook {
	wb := &export.Workbook{}
	sheet := wb.AddSheet(InfoSheetName, InfoColumns)
	for _, c := range channels {
		sheet.AppendStrings([]string{
			c.Name,
			c.MessageType,
			strconv.FormatUint(c.Count(), 10),
			strconv.FormatUint(c.FirstTime, 10),
			strconv.FormatUint(c.LastTime, 10),
		})
	}
	return wb
}

// buildManifest creates the manifest for a published result.
func (a *Analyzer) buildManifest(res *Result) *storage.Manifest {
	m := &storage.Manifest{
		RunID:  a.runID,
		Mode:   a.cfg.Mode,
		Input:  a.cfg.Input.Path,
		Output: res.Output,
		Stages: res.Stages,
		Producer: storage.ProducerInfo{
			Name:    "record-latency",
			Version: Version,
			GitSHA:  GitSHA,
		},
		CreatedAt: time.Now().UTC(),
	}
	if res.Output.Format == export.FormatParquet {
		m.Schema = tables.SchemaVersion
	}
	return m
}

// writePlot renders the latency chart and stores it at the plot path, which
// may be a local path or a bucket URL like the output.
func (a *Analyzer) writePlot(ctx context.Context, rows []latency.Row) error {
	png, err := chart.LatencyPNG("Latency behind lidar timestamp", rows)
	if err != nil {
		return err
	}

	store, key, err := storage.Open(ctx, a.cfg.Output.PlotPath, storage.S3Options{
		Endpoint: a.cfg.S3.Endpoint,
		Region:   a.cfg.S3.Region,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Write(ctx, key, png); err != nil {
		a.metrics.IncStorageErrors(backendOf(store.URI(key)))
		return err
	}
	a.log.Info("wrote plot", "uri", store.URI(key), "bytes", len(png))
	return nil
}

// backendOf returns the scheme of a storage URI.
func backendOf(uri string) string {
	if i := strings.Index(uri, "://"); i > 0 {
		return uri[:i]
	}
	return "local"
}
