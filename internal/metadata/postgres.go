package metadata

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresWriter implements Writer using PostgreSQL.
type PostgresWriter struct {
	pool *pgxpool.Pool
	cfg  CatalogConfig
	log  *slog.Logger
}

// NewPostgresWriter connects to the catalog and creates its tables.
func NewPostgresWriter(ctx context.Context, cfg CatalogConfig) (*PostgresWriter, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	// A single run writes a handful of rows.
	poolCfg.MaxConns = 2
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	w := &PostgresWriter{
		pool: pool,
		cfg:  cfg,
		log:  slog.With("component", "metadata"),
	}

	if err := w.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	w.log.Info("connected to PostgreSQL catalog")
	return w, nil
}

// initSchema creates the _meta_* tables if they don't exist.
func (w *PostgresWriter) initSchema(ctx context.Context) error {
	_, err := w.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// RecordRun writes the run with its channel and stage rows in one
// transaction. Re-recording a run ID replaces the earlier entry.
func (w *PostgresWriter) RecordRun(ctx context.Context, rec RunRecord) error {
	namespace := rec.Namespace
	if namespace == "" {
		namespace = w.cfg.Namespace
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var errMsg *string
	if rec.ErrorMessage != "" {
		errMsg = &rec.ErrorMessage
	}
	var checksum *string
	if rec.Checksum != "" {
		checksum = &rec.Checksum
	}

	query := `
		INSERT INTO _meta_runs (
			run_id, namespace, mode, input, output_uri, format, checksum,
			row_count, byte_size, passed, error_message, producer_version,
			started_at, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (run_id)
		DO UPDATE SET
			output_uri = EXCLUDED.output_uri,
			checksum = EXCLUDED.checksum,
			row_count = EXCLUDED.row_count,
			byte_size = EXCLUDED.byte_size,
			passed = EXCLUDED.passed,
			error_message = EXCLUDED.error_message,
			finished_at = EXCLUDED.finished_at,
			created_at = NOW()
	`
	_, err = tx.Exec(ctx, query,
		rec.RunID,
		namespace,
		rec.Mode,
		rec.Input,
		rec.OutputURI,
		rec.Format,
		checksum,
		rec.RowCount,
		rec.ByteSize,
		rec.Passed,
		errMsg,
		rec.ProducerVersion,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM _meta_run_channels WHERE run_id = $1`, rec.RunID)
	batch.Queue(`DELETE FROM _meta_run_stages WHERE run_id = $1`, rec.RunID)
	for _, c := range rec.Channels {
		batch.Queue(`
			INSERT INTO _meta_run_channels (run_id, channel, message_type, messages, first_time, last_time)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.RunID, c.Name, c.MessageType, c.Messages, c.FirstTime, c.LastTime)
	}
	for _, s := range rec.Stages {
		batch.Queue(`
			INSERT INTO _meta_run_stages (run_id, stage, count, mean, stddev, min_ms, p50_ms, p95_ms, max_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rec.RunID, s.Stage, int64(s.Count), s.Mean, s.StdDev, s.Min, s.P50, s.P95, s.Max)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert run details: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	w.log.Info("recorded run",
		"run_id", rec.RunID,
		"channels", len(rec.Channels),
		"stages", len(rec.Stages),
	)
	return nil
}

// Close releases database connections.
func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}

// ErrorMessage joins validation errors into one catalog column.
func ErrorMessage(errs []string) string {
	return strings.Join(errs, "; ")
}
