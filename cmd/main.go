package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/kafeventexport/internal/buffer"
	"github.com/jittakal/kafeventexport/internal/config"
	"github.com/jittakal/kafeventexport/internal/config/dto"
	"github.com/jittakal/kafeventexport/internal/hook"
	"github.com/jittakal/kafeventexport/internal/kafka"
	"github.com/jittakal/kafeventexport/internal/observability"
	"github.com/jittakal/kafeventexport/internal/server"
	"github.com/jittakal/kafeventexport/internal/sink"
	"github.com/jittakal/kafeventexport/internal/validator"
	hookapi "github.com/jittakal/kafeventexport/pkg/hook"
	"github.com/jittakal/kafeventexport/pkg/message"
	pkgsink "github.com/jittakal/kafeventexport/pkg/sink"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Load configuration
	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize observability
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	logger.Info("starting kafka event export",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Track cleanup functions
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, fn)
		logger.Debug("registered cleanup", "component", name)
	}
	runCleanups := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			if err := cleanupFuncs[i](); err != nil {
				logger.Error("cleanup failed", "error", err)
			}
		}
	}
	defer runCleanups()

	// Compile the hook chain; invalid rules refuse startup here, never
	// at message time
	hooks, frameFields, err := buildHooks(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build hooks: %w", err)
	}
	chain := hook.NewChain(hooks, observability.NewComponentLogger(logger, "hook-chain"))
	addCleanup("hook-chain", chain.Close)

	envelope := validator.NewEnvelopeValidator()

	// Initialize Kafka consumer
	consumerConfig := kafka.ConsumerConfig{
		BootstrapServers:    cfg.Kafka.BootstrapServers,
		GroupID:             cfg.Kafka.Consumer.GroupID,
		SecurityProtocol:    cfg.Kafka.SecurityProtocol,
		SASLMechanism:       cfg.Kafka.SASLMechanism,
		SASLUsername:        cfg.Kafka.SASLUsername,
		SASLPassword:        cfg.Kafka.SASLPassword,
		AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
		EnableAutoCommit:    cfg.Kafka.Consumer.EnableAutoCommit,
		MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
	}
	consumer, err := kafka.NewSaramaConsumer(consumerConfig,
		observability.NewComponentLogger(logger, "consumer"), metrics)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	addCleanup("kafka-consumer", consumer.Close)

	dlqConfig := kafka.DLQConfig{
		Enabled:     cfg.Kafka.DLQ.Enabled,
		TopicSuffix: cfg.Kafka.DLQ.TopicSuffix,
		MaxRetries:  cfg.Kafka.DLQ.MaxRetries,
	}
	dlqPublisher, err := kafka.NewDLQPublisher(cfg.Kafka.BootstrapServers, consumerConfig, dlqConfig,
		observability.NewComponentLogger(logger, "dlq"), cfg.Application.Name)
	if err != nil {
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	addCleanup("dlq-publisher", dlqPublisher.Close)

	// Sink writer, router and rotation policy
	writer, err := buildWriter(cfg, frameFields, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create sink writer: %w", err)
	}
	addCleanup("sink-writer", writer.Close)

	router := sink.NewRouter(sinkBasePath(cfg))
	policy := sink.NewPolicy(sink.PolicyConfig{
		MaxBatchSizeMB:     cfg.Rotation.MaxBatchSizeMB,
		MaxFramesPerBatch:  cfg.Rotation.MaxFramesPerBatch,
		MaxBatchAgeSeconds: cfg.Rotation.MaxBatchAgeSeconds,
		Strategy:           cfg.Rotation.Strategy,
	})
	retrier := sink.NewRetrier(sink.RetryConfig{
		Enabled:           cfg.Retry.Enabled,
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoffMS:  cfg.Retry.InitialBackoffMS,
		MaxBackoffMS:      cfg.Retry.MaxBackoffMS,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		Jitter:            cfg.Retry.Jitter,
	}, observability.NewComponentLogger(logger, "retry"))

	// Buffer manager: per-batch caps mirror the rotation limits so a
	// batch can always grow until the policy flushes it
	bufferMgr := buffer.NewManager(
		cfg.Rotation.MaxBatchSizeMB*1024*1024,
		cfg.Rotation.MaxFramesPerBatch,
	)

	// Start observability server
	healthChecker := &pipelineHealthChecker{}
	healthChecker.ready.Store(true)
	httpServer := server.NewServer(server.Config{
		Port:           cfg.Observability.Server.Port,
		MetricsEnabled: cfg.Observability.Server.MetricsEnabled,
		MetricsPath:    cfg.Observability.Server.MetricsPath,
		LivenessPath:   cfg.Observability.Server.LivenessPath,
		ReadinessPath:  cfg.Observability.Server.ReadinessPath,
	}, healthChecker, registry, observability.NewComponentLogger(logger, "server"))

	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	logger.Info("application started successfully")

	// Subscribe to topics
	if err := consumer.Subscribe(context.Background(), cfg.Kafka.Consumer.Topics); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messageChan, errorChan, err := consumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	p := &pipeline{
		envelope:  envelope,
		chain:     chain,
		dlq:       dlqPublisher,
		bufferMgr: bufferMgr,
		policy:    policy,
		router:    router,
		writer:    writer,
		retrier:   retrier,
		logger:    logger,
		metrics:   metrics,
	}

	// Start process loop in background
	processErrChan := make(chan error, 1)
	go func() {
		processErrChan <- p.processMessages(ctx, messageChan, errorChan, cfg.Processing.FlushInterval())
	}()

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("received termination signal")
	case err := <-processErrChan:
		if err != nil {
			logger.Error("process error", "error", err)
			healthChecker.ready.Store(false)
			return err
		}
	}

	// Graceful shutdown: stop intake, then flush what is buffered
	logger.Info("initiating graceful shutdown")
	healthChecker.ready.Store(false)
	cancel()

	select {
	case <-processErrChan:
	case <-time.After(cfg.Shutdown.GracePeriod()):
		logger.Warn("process loop did not stop within grace period")
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.Shutdown.ForceTimeout())
	defer flushCancel()
	p.flushAll(flushCtx)

	logger.Info("application stopped successfully")
	return nil
}

// buildHooks compiles every configured hook and reports the frame field
// count of the exporter so the sink can cross-check its column list.
func buildHooks(cfg *dto.ApplicationConfig, logger *slog.Logger) ([]hookapi.Hook, int, error) {
	hooks := make([]hookapi.Hook, 0, len(cfg.Hooks))
	frameFields := 0

	for _, hc := range cfg.Hooks {
		h, err := hook.New(hc.Type, hc.Jpointers, observability.NewComponentLogger(logger, hc.Type))
		if err != nil {
			return nil, 0, err
		}
		hooks = append(hooks, h)

		if exporter, ok := h.(*hook.JSONExporter); ok {
			_, frameFields = exporter.Rules()
		}
	}

	return hooks, frameFields, nil
}

// buildWriter creates the configured sink backend.
func buildWriter(cfg *dto.ApplicationConfig, frameFields int, logger *slog.Logger, metrics *observability.Metrics) (pkgsink.Writer, error) {
	sinkLogger := observability.NewComponentLogger(logger, "sink")

	switch cfg.Sink.Backend {
	case "postgres":
		return sink.NewPostgresWriter(sink.PostgresConfig{
			DSN:            cfg.Sink.Postgres.DSN,
			Table:          cfg.Sink.Postgres.Table,
			Columns:        cfg.Sink.Postgres.Columns,
			PoolMaxConns:   cfg.Sink.Postgres.PoolMaxConns,
			ConnectTimeout: cfg.Sink.Postgres.ConnectTimeout(),
		}, frameFields, sinkLogger, metrics)
	case "file":
		return sink.NewFileWriter(sink.FileConfig{
			BasePath: cfg.Sink.File.BasePath,
		}, sinkLogger, metrics)
	case "s3":
		return sink.NewS3Writer(sink.S3Config{
			Bucket:       cfg.Sink.S3.Bucket,
			Region:       cfg.Sink.S3.Region,
			Endpoint:     cfg.Sink.S3.Endpoint,
			UsePathStyle: cfg.Sink.S3.UsePathStyle,
			SSEEnabled:   cfg.Sink.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.Sink.S3.SSEKMSKeyID,
		}, sinkLogger, metrics)
	default:
		return nil, fmt.Errorf("unsupported sink backend: %s (supported: postgres, file, s3)", cfg.Sink.Backend)
	}
}

// sinkBasePath returns the router prefix for the configured backend.
// The file writer roots paths itself; the postgres writer uses the path
// only as a segment label.
func sinkBasePath(cfg *dto.ApplicationConfig) string {
	if cfg.Sink.Backend == "s3" {
		return cfg.Sink.S3.BasePath
	}
	return ""
}

// pipeline ties the processing stages together for the consume loop.
type pipeline struct {
	envelope  *validator.EnvelopeValidator
	chain     *hook.Chain
	dlq       *kafka.DLQPublisher
	bufferMgr *buffer.Manager
	policy    *sink.CompositePolicy
	router    *sink.DefaultRouter
	writer    pkgsink.Writer
	retrier   *sink.Retrier
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// processMessages drives the consume loop until the context is
// cancelled or the message channel closes.
func (p *pipeline) processMessages(
	ctx context.Context,
	messageChan <-chan *message.ConsumedMessage,
	errorChan <-chan error,
	flushInterval time.Duration,
) error {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("context cancelled, stopping processing")
			return nil
		case err := <-errorChan:
			if err != nil {
				p.logger.Error("consumer error", "error", err)
			}
		case <-ticker.C:
			// age-based rotation for idle partitions
			p.rotateAll(ctx)
		case consumed, ok := <-messageChan:
			if !ok {
				p.logger.Info("message channel closed")
				return nil
			}
			p.handleMessage(ctx, consumed)
		}
	}
}

// handleMessage runs one message through validation, the hook chain and
// buffering. Whatever the outcome, the offset is committed: rejected and
// discarded messages are dropped (routed to the DLQ), never redelivered.
func (p *pipeline) handleMessage(ctx context.Context, consumed *message.ConsumedMessage) {
	msg := consumed.Message
	partition := msg.PartitionID()
	topic := partition.Topic

	commit := func() {
		if consumed.CommitFunc == nil {
			return
		}
		if err := consumed.CommitFunc(); err != nil {
			p.logger.Error("failed to commit offset",
				"topic", topic,
				"partition", partition.Partition,
				"offset", msg.Kafka.Offset,
				"error", err,
			)
		}
	}

	if err := p.envelope.Validate(msg); err != nil {
		p.logger.Warn("invalid message envelope",
			"message_id", msg.ID,
			"topic", topic,
			"offset", msg.Kafka.Offset,
			"error", err,
		)
		p.toDLQ(ctx, msg, "validation_failed")
		p.metrics.IncMessagesProcessed(topic, "envelope", "failed")
		commit()
		return
	}

	startTime := time.Now()
	ok, err := p.chain.Process(msg)
	p.metrics.ObserveHookDuration("chain", time.Since(startTime).Seconds())

	if err != nil {
		p.logger.Warn("hook chain failed",
			"message_id", msg.ID,
			"topic", topic,
			"offset", msg.Kafka.Offset,
			"error", err,
		)
		p.toDLQ(ctx, msg, "hook_failed")
		p.metrics.IncMessagesProcessed(topic, "chain", "failed")
		commit()
		return
	}
	if !ok {
		// clean filter discard, not an error
		p.toDLQ(ctx, msg, "discarded")
		p.metrics.IncMessagesProcessed(topic, "chain", "discarded")
		commit()
		return
	}

	p.metrics.IncMessagesProcessed(topic, "chain", "exported")
	p.metrics.ObserveFrameBytes(topic, float64(len(msg.Payload)))

	frame := message.Frame{
		Data:       msg.Payload,
		Kafka:      msg.Kafka,
		ExportedAt: time.Now(),
	}

	buf := p.bufferMgr.GetOrCreate(partition)
	if err := buf.Add(frame); err != nil {
		// full buffer: flush what is there, then retry the add once
		p.flushPartition(ctx, partition)
		if err := buf.Add(frame); err != nil {
			p.logger.Error("failed to buffer frame after flush",
				"message_id", msg.ID,
				"topic", topic,
				"error", err,
			)
			p.toDLQ(ctx, msg, "buffer_failed")
			commit()
			return
		}
	}

	stats := buf.Stats()
	p.metrics.SetBufferStats(topic, partition.Partition, float64(stats.SizeBytes), float64(stats.FrameCount))

	if p.policy.ShouldRotate(stats) {
		p.flushPartition(ctx, partition)
	}

	commit()
}

// flushPartition drains one partition buffer and writes the batch as a
// single segment. A batch that ultimately fails is dropped to the DLQ;
// the pipeline never re-enters delivered messages.
func (p *pipeline) flushPartition(ctx context.Context, partition message.PartitionID) {
	buf := p.bufferMgr.GetOrCreate(partition)
	frames := buf.Drain()
	if len(frames) == 0 {
		return
	}

	firstOffset := frames[0].Kafka.Offset
	lastOffset := frames[len(frames)-1].Kafka.Offset
	path := p.router.Route(partition, firstOffset, lastOffset, time.Now())

	err := p.retrier.Do(ctx, "write", func() error {
		_, err := p.writer.Write(ctx, frames, path)
		return err
	})
	if err != nil {
		p.logger.Error("failed to write segment",
			"topic", partition.Topic,
			"partition", partition.Partition,
			"offsets", fmt.Sprintf("%d-%d", firstOffset, lastOffset),
			"error", err,
		)
		for i := range frames {
			failed := message.New("", frames[i].Data)
			failed.Kafka = frames[i].Kafka
			p.toDLQ(ctx, failed, "sink_failed")
		}
		return
	}

	p.metrics.SetBufferStats(partition.Topic, partition.Partition, 0, 0)
}

// rotateAll applies the rotation policy to every buffered partition;
// the ticker path that ages out slow partitions.
func (p *pipeline) rotateAll(ctx context.Context) {
	for _, partition := range p.bufferMgr.Partitions() {
		if p.policy.ShouldRotate(p.bufferMgr.GetOrCreate(partition).Stats()) {
			p.flushPartition(ctx, partition)
		}
	}
}

// flushAll force-flushes every partition buffer, used at shutdown.
func (p *pipeline) flushAll(ctx context.Context) {
	for _, partition := range p.bufferMgr.Partitions() {
		p.flushPartition(ctx, partition)
	}
}

func (p *pipeline) toDLQ(ctx context.Context, msg *message.Message, reason string) {
	if p.dlq == nil {
		return
	}
	if err := p.dlq.Publish(ctx, msg, reason); err != nil {
		p.logger.Error("failed to publish to DLQ",
			"message_id", msg.ID,
			"reason", reason,
			"error", err,
		)
	}
	p.metrics.IncDLQMessages(msg.Kafka.Topic, reason)
}

// pipelineHealthChecker implements server.HealthChecker.
type pipelineHealthChecker struct {
	ready atomic.Bool
}

func (h *pipelineHealthChecker) Liveness() bool {
	return true
}

func (h *pipelineHealthChecker) Readiness(ctx context.Context) bool {
	return h.ready.Load()
}

func (h *pipelineHealthChecker) GetStatus() map[string]string {
	status := "ready"
	if !h.ready.Load() {
		status = "not ready"
	}
	return map[string]string{"pipeline": status}
}
