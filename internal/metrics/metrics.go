// Package metrics provides Prometheus metrics for the latency analyzer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for one analyzer process.
type Metrics struct {
	Registry *prometheus.Registry

	// Message metrics
	MessagesRead    *prometheus.CounterVec
	MessagesDecoded *prometheus.CounterVec
	MessagesSkipped *prometheus.CounterVec
	DecodeErrors    *prometheus.CounterVec

	// Table metrics
	TableRows    *prometheus.GaugeVec
	StageLatency *prometheus.HistogramVec

	// Timing metrics
	RunDuration     prometheus.Histogram
	PublishDuration prometheus.Histogram

	// Output metrics
	OutputBytes   prometheus.Gauge
	StorageErrors *prometheus.CounterVec
	CatalogErrors prometheus.Counter
}

var defaultMetrics *Metrics

// Init creates the metrics on a fresh registry and makes them the global
// instance. Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "record_latency"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		Registry: reg,
		MessagesRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_read_total",
				Help:      "Total number of record messages read",
			},
			[]string{"channel"},
		),
		MessagesDecoded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_decoded_total",
				Help:      "Total number of messages accepted into a stage",
			},
			[]string{"kind"},
		),
		MessagesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_skipped_total",
				Help:      "Total number of messages not routed to any stage",
			},
			[]string{"reason"},
		),
		DecodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decode_errors_total",
				Help:      "Total number of malformed payloads",
			},
			[]string{"kind"},
		),
		TableRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "table_rows",
				Help:      "Number of data rows written per sheet",
			},
			[]string{"sheet"},
		),
		StageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_latency_ms",
				Help:      "Per-frame delay of each stage behind the lidar timestamp",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1ms to ~2s
			},
			[]string{"stage"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time of one analyzer run",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
			},
		),
		PublishDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "publish_duration_seconds",
				Help:      "Time to write the output and its manifest",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
		),
		OutputBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "output_bytes",
				Help:      "Size of the published output file",
			},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of output write errors",
			},
			[]string{"backend"},
		),
		CatalogErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_errors_total",
				Help:      "Total number of run catalog errors",
			},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// WriteTextfile writes the current values in the text exposition format, for
// node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// All recorders below are no-ops on a nil receiver so callers need not check
// whether metrics were initialized.

// IncMessagesRead increments the messages read counter.
func (m *Metrics) IncMessagesRead(channel string) {
	if m == nil {
		return
	}
	m.MessagesRead.WithLabelValues(channel).Inc()
}

// IncMessagesDecoded increments the accepted message counter.
func (m *Metrics) IncMessagesDecoded(kind string) {
	if m == nil {
		return
	}
	m.MessagesDecoded.WithLabelValues(kind).Inc()
}

// IncMessagesSkipped increments the skipped message counter.
func (m *Metrics) IncMessagesSkipped(reason string) {
	if m == nil {
		return
	}
	m.MessagesSkipped.WithLabelValues(reason).Inc()
}

// IncDecodeErrors increments the decode errors counter.
func (m *Metrics) IncDecodeErrors(kind string) {
	if m == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(kind).Inc()
}

// SetTableRows sets the row count of a sheet.
func (m *Metrics) SetTableRows(sheet string, rows float64) {
	if m == nil {
		return
	}
	m.TableRows.WithLabelValues(sheet).Set(rows)
}

// ObserveStageLatency records one frame's delay for a stage.
func (m *Metrics) ObserveStageLatency(stage string, ms float64) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(ms)
}

// ObserveRunDuration records the run wall time.
func (m *Metrics) ObserveRunDuration(seconds float64) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(seconds)
}

// ObservePublishDuration records the output write time.
func (m *Metrics) ObservePublishDuration(seconds float64) {
	if m == nil {
		return
	}
	m.PublishDuration.Observe(seconds)
}

// SetOutputBytes sets the published output size.
func (m *Metrics) SetOutputBytes(n float64) {
	if m == nil {
		return
	}
	m.OutputBytes.Set(n)
}

// IncStorageErrors increments the storage errors counter.
func (m *Metrics) IncStorageErrors(backend string) {
	if m == nil {
		return
	}
	m.StorageErrors.WithLabelValues(backend).Inc()
}

// IncCatalogErrors increments the catalog errors counter.
func (m *Metrics) IncCatalogErrors() {
	if m == nil {
		return
	}
	m.CatalogErrors.Inc()
}
