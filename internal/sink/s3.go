package sink

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/kafeventexport/internal/errors"
	"github.com/jittakal/kafeventexport/pkg/message"
	"github.com/jittakal/kafeventexport/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.Writer = (*S3Writer)(nil)

// S3Config contains AWS S3 sink configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// S3Writer implements sink.Writer for S3 segment staging.
// It provides multipart upload support, server-side encryption (SSE),
// and automatic retry handling for S3 operations. Uploaded segments are
// picked up by an external loader that runs the COPY against the
// database.
type S3Writer struct {
	client      *s3.Client
	uploader    *manager.Uploader
	bucket      string
	region      string
	sseEnabled  bool
	sseKMSKeyID string
	logger      *slog.Logger
	metrics     MetricsCollector
	mu          sync.RWMutex
	closed      bool
}

// NewS3Writer creates a new S3 sink writer.
func NewS3Writer(cfg S3Config, logger *slog.Logger, metrics MetricsCollector) (*S3Writer, error) {
	if err := validateS3Config(cfg); err != nil {
		return nil, err
	}

	// Load AWS config
	ctx := context.Background()
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client
	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	// Create uploader with multipart upload support
	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB parts
		u.Concurrency = 5             // 5 concurrent uploads
	})

	logger.Info("S3 writer created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"sse_enabled", cfg.SSEEnabled,
	)

	return &S3Writer{
		client:      s3Client,
		uploader:    uploader,
		bucket:      cfg.Bucket,
		region:      cfg.Region,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

func validateS3Config(cfg S3Config) error {
	if cfg.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Write uploads the frames as one COPY segment object.
func (w *S3Writer) Write(ctx context.Context, frames []message.Frame, path string) (int64, error) {
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

	startTime := time.Now()
	segment := BuildSegment(frames)

	key := strings.TrimPrefix(path, "/") + segmentExtension

	uploadInput := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(segment),
	}

	// Add SSE if enabled
	if w.sseEnabled {
		if w.sseKMSKeyID != "" {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			uploadInput.SSEKMSKeyId = aws.String(w.sseKMSKeyID)
		} else {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	result, err := w.uploader.Upload(ctx, uploadInput)
	if err != nil {
		if w.metrics != nil {
			w.metrics.IncSinkErrors("s3", "upload")
			w.metrics.IncBatchesFlushed("s3", partition.Topic, partition.Partition, "error")
		}
		return 0, &errors.SinkError{Operation: "upload", Target: key, Err: err}
	}

	duration := time.Since(startTime)

	w.logger.Info("uploaded segment to S3",
		"bucket", w.bucket,
		"key", key,
		"topic", partition.Topic,
		"partition", partition.Partition,
		"offsets", fmt.Sprintf("%d-%d", firstOffset, lastOffset),
		"frame_count", len(frames),
		"segment_bytes", len(segment),
		"location", result.Location,
		"total_duration_ms", duration.Milliseconds(),
	)

	if w.metrics != nil {
		w.metrics.IncBatchesFlushed("s3", partition.Topic, partition.Partition, "success")
		w.metrics.ObserveFlushDuration("s3", duration.Seconds())
		w.metrics.ObserveBatchBytes(partition.Topic, partition.Partition, float64(len(segment)))
	}

	return int64(len(segment)), nil
}

// Close closes the S3 writer.
func (w *S3Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.logger.Info("closing S3 writer")
	return nil
}
