package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jittakal/kafeventexport/internal/errors"
	"github.com/jittakal/kafeventexport/pkg/message"
	"github.com/jittakal/kafeventexport/pkg/sink"
)

// segmentExtension is the file extension for COPY BINARY segments.
const segmentExtension = ".copy"

// Ensure implementation satisfies interface at compile time.
var _ sink.Writer = (*FileWriter)(nil)

// FileConfig contains local filesystem sink configuration.
type FileConfig struct {
	BasePath string
}

// FileWriter implements sink.Writer for local filesystem staging.
// Segments are written to a temporary file and renamed into place, so a
// crashed flush never leaves a readable partial segment behind.
type FileWriter struct {
	basePath string
	logger   *slog.Logger
	metrics  MetricsCollector
	mu       sync.RWMutex
	closed   bool
}

// NewFileWriter creates a new filesystem sink writer.
func NewFileWriter(config FileConfig, logger *slog.Logger, metrics MetricsCollector) (*FileWriter, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("file base path is required")
	}

	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("filesystem writer created", "base_path", config.BasePath)

	return &FileWriter{
		basePath: config.BasePath,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Write writes the frames as one COPY segment file under the base path.
func (w *FileWriter) Write(ctx context.Context, frames []message.Frame, path string) (int64, error) {
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

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	startTime := time.Now()
	segment := BuildSegment(frames)

	fullPath := filepath.Join(w.basePath, filepath.FromSlash(path)) + segmentExtension

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		if w.metrics != nil {
			w.metrics.IncSinkErrors("file", "mkdir")
		}
		return 0, &errors.SinkError{Operation: "mkdir", Target: fullPath, Err: err}
	}

	tmpPath := fullPath + ".tmp"
	if err := os.WriteFile(tmpPath, segment, 0o644); err != nil {
		if w.metrics != nil {
			w.metrics.IncSinkErrors("file", "write")
		}
		return 0, &errors.SinkError{Operation: "write", Target: fullPath, Err: err}
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		if w.metrics != nil {
			w.metrics.IncSinkErrors("file", "rename")
		}
		return 0, &errors.SinkError{Operation: "rename", Target: fullPath, Err: err}
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote segment to file",
		"path", fullPath,
		"topic", partition.Topic,
		"partition", partition.Partition,
		"offsets", fmt.Sprintf("%d-%d", firstOffset, lastOffset),
		"frame_count", len(frames),
		"segment_bytes", len(segment),
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncBatchesFlushed("file", partition.Topic, partition.Partition, "success")
		w.metrics.ObserveFlushDuration("file", duration.Seconds())
		w.metrics.ObserveBatchBytes(partition.Topic, partition.Partition, float64(len(segment)))
	}

	return int64(len(segment)), nil
}

// Close closes the writer.
func (w *FileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.logger.Info("closing filesystem writer")
	return nil
}
