package sink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jittakal/kafeventexport/internal/errors"
	"github.com/jittakal/kafeventexport/pkg/message"
	"github.com/jittakal/kafeventexport/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Writer = (*PostgresWriter)(nil)

// MetricsCollector defines metrics operations for sink writers.
type MetricsCollector interface {
	IncBatchesFlushed(backend, topic string, partition int32, status string)
	ObserveFlushDuration(backend string, duration float64)
	ObserveBatchBytes(topic string, partition int32, size float64)
	IncSinkErrors(backend string, operation string)
}

// PostgresConfig contains PostgreSQL sink configuration.
type PostgresConfig struct {
	DSN            string
	Table          string
	Columns        []string
	PoolMaxConns   int
	ConnectTimeout time.Duration
}

// PostgresWriter implements sink.Writer for PostgreSQL bulk loading.
// Each Write opens one connection, streams the batch as a single
// COPY ... FROM STDIN (FORMAT binary) statement and closes the
// connection, so a failed flush never leaves a half-loaded segment
// behind: COPY is atomic per statement. A semaphore bounds the number
// of connections held concurrently.
type PostgresWriter struct {
	config  PostgresConfig
	copySQL string
	sem     chan struct{}
	logger  *slog.Logger
	metrics MetricsCollector
	mu      sync.RWMutex
	closed  bool
}

// NewPostgresWriter creates a new PostgreSQL sink writer.
//
// frameFields is the number of fields each frame carries, as reported by
// the hook that produces them; it must equal the configured column count
// or the COPY would fail on every batch, so the mismatch is rejected at
// startup instead.
func NewPostgresWriter(
	config PostgresConfig,
	frameFields int,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*PostgresWriter, error) {
	if err := validatePostgresConfig(config); err != nil {
		return nil, err
	}

	if frameFields > 0 && len(config.Columns) != frameFields {
		return nil, fmt.Errorf("postgres sink: %d columns configured but frames carry %d fields",
			len(config.Columns), frameFields)
	}

	maxConns := config.PoolMaxConns
	if maxConns < 1 {
		maxConns = 1
	}

	logger.Info("postgres writer created",
		"table", config.Table,
		"columns", len(config.Columns),
		"max_conns", maxConns,
	)

	return &PostgresWriter{
		config:  config,
		copySQL: buildCopySQL(config.Table, config.Columns),
		sem:     make(chan struct{}, maxConns),
		logger:  logger,
		metrics: metrics,
	}, nil
}

func validatePostgresConfig(config PostgresConfig) error {
	if config.DSN == "" {
		return fmt.Errorf("postgres DSN is required")
	}
	if config.Table == "" {
		return fmt.Errorf("postgres table is required")
	}
	if len(config.Columns) == 0 {
		return fmt.Errorf("postgres columns are required")
	}
	return nil
}

// buildCopySQL quotes the table and column identifiers and assembles the
// COPY statement. A dotted table name is treated as schema-qualified.
func buildCopySQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}

	target := pgx.Identifier(strings.Split(table, ".")).Sanitize()

	return fmt.Sprintf("COPY %s (%s) FROM STDIN (FORMAT binary)",
		target, strings.Join(quoted, ", "))
}

// Write loads the frames into the configured table as one COPY segment.
func (w *PostgresWriter) Write(ctx context.Context, frames []message.Frame, path string) (int64, error) {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return 0, errors.ErrWriterClosed
	}
	w.mu.RUnlock()

	partition, firstOffset, lastOffset, err := batchBounds(frames)
	if err != nil {
		return 0, err
	}

	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-w.sem }()

	startTime := time.Now()
	segment := BuildSegment(frames)

	connectCtx := ctx
	if w.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, w.config.ConnectTimeout)
		defer cancel()
	}

	conn, err := pgconn.Connect(connectCtx, w.config.DSN)
	if err != nil {
		if w.metrics != nil {
			w.metrics.IncSinkErrors("postgres", "connect")
		}
		return 0, &errors.SinkError{
			Operation: "connect",
			Target:    w.config.Table,
			Err:       err,
		}
	}
	defer conn.Close(context.Background())

	tag, err := conn.CopyFrom(ctx, bytes.NewReader(segment), w.copySQL)
	if err != nil {
		if w.metrics != nil {
			w.metrics.IncSinkErrors("postgres", "copy")
			w.metrics.IncBatchesFlushed("postgres", partition.Topic, partition.Partition, "error")
		}
		return 0, &errors.SinkError{
			Operation: "copy",
			Target:    w.config.Table,
			Err:       err,
		}
	}

	duration := time.Since(startTime)

	if tag.RowsAffected() != int64(len(frames)) {
		w.logger.Warn("copy row count mismatch",
			"table", w.config.Table,
			"rows", tag.RowsAffected(),
			"frames", len(frames),
		)
	}

	w.logger.Info("copied batch to postgres",
		"table", w.config.Table,
		"segment", path,
		"topic", partition.Topic,
		"partition", partition.Partition,
		"offsets", fmt.Sprintf("%d-%d", firstOffset, lastOffset),
		"frame_count", len(frames),
		"segment_bytes", len(segment),
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncBatchesFlushed("postgres", partition.Topic, partition.Partition, "success")
		w.metrics.ObserveFlushDuration("postgres", duration.Seconds())
		w.metrics.ObserveBatchBytes(partition.Topic, partition.Partition, float64(len(segment)))
	}

	return int64(len(segment)), nil
}

// Close marks the writer closed. In-flight copies finish on their own
// connections.
func (w *PostgresWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.logger.Info("closing postgres writer")
	return nil
}
