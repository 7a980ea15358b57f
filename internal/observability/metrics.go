package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Consumer metrics
	MessagesConsumed   *prometheus.CounterVec
	ConsumerLag        *prometheus.GaugeVec
	OffsetCommits      *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	RebalanceDuration  *prometheus.HistogramVec
	PartitionsAssigned *prometheus.GaugeVec
	CommitLatency      *prometheus.HistogramVec

	// Hook metrics
	MessagesProcessed *prometheus.CounterVec
	HookDuration      *prometheus.HistogramVec
	FrameBytes        *prometheus.HistogramVec

	// Buffer metrics
	BufferSize       *prometheus.GaugeVec
	BufferFrameCount *prometheus.GaugeVec

	// Sink metrics
	BatchesFlushed *prometheus.CounterVec
	FlushDuration  *prometheus.HistogramVec
	BatchBytes     *prometheus.HistogramVec
	SinkErrors     *prometheus.CounterVec
	DLQMessages    *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Consumer metrics
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_consumed_total",
				Help: "Total number of messages consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
		ConsumerLag: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_consumer_lag",
				Help: "Current consumer lag",
			},
			[]string{"topic", "partition"},
		),
		OffsetCommits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_offset_commit_total",
				Help: "Total number of offset commits",
			},
			[]string{"topic", "partition", "status"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_rebalance_total",
				Help: "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		RebalanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_rebalance_duration_seconds",
				Help:    "Duration of consumer group rebalances",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"group"},
		),
		PartitionsAssigned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_partitions_assigned",
				Help: "Number of partitions currently assigned to this consumer",
			},
			[]string{"topic"},
		),
		CommitLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_commit_latency_seconds",
				Help:    "Latency of offset commit operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"topic", "partition"},
		),

		// Hook metrics
		MessagesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hook_messages_processed_total",
				Help: "Total number of messages processed by hooks, by verdict",
			},
			[]string{"topic", "hook", "verdict"},
		),
		HookDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hook_processing_duration_seconds",
				Help:    "Duration of hook processing per message",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"hook"},
		),
		FrameBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "frame_size_bytes",
				Help:    "Size of serialized export frames",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8), // 64B to 1MB
			},
			[]string{"topic"},
		),

		// Buffer metrics
		BufferSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "buffer_size_bytes",
				Help: "Current buffer size in bytes",
			},
			[]string{"topic", "partition"},
		),
		BufferFrameCount: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "buffer_frame_count",
				Help: "Current number of frames in buffer",
			},
			[]string{"topic", "partition"},
		),

		// Sink metrics
		BatchesFlushed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_batches_flushed_total",
				Help: "Total number of frame batches flushed to the sink",
			},
			[]string{"backend", "topic", "partition", "status"},
		),
		FlushDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sink_flush_duration_seconds",
				Help:    "Duration of complete batch flush operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		BatchBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sink_batch_size_bytes",
				Help:    "Size of batches written to the sink",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to 256MB
			},
			[]string{"topic", "partition"},
		),
		SinkErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_errors_total",
				Help: "Total number of sink errors",
			},
			[]string{"backend", "error_type"},
		),
		DLQMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dlq_messages_total",
				Help: "Total number of messages published to the DLQ",
			},
			[]string{"topic", "reason"},
		),
	}
}

// IncMessagesConsumed increments messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Inc()
}

// IncRebalances increments rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// IncOffsetCommits increments offset commits counter.
func (m *Metrics) IncOffsetCommits(topic string, partition int32, status string) {
	m.OffsetCommits.WithLabelValues(topic, fmt.Sprintf("%d", partition), status).Inc()
}

// ObserveRebalanceDuration observes rebalance duration.
func (m *Metrics) ObserveRebalanceDuration(groupID string, duration float64) {
	m.RebalanceDuration.WithLabelValues(groupID).Observe(duration)
}

// ObserveCommitLatency observes commit latency.
func (m *Metrics) ObserveCommitLatency(topic string, partition int32, duration float64) {
	m.CommitLatency.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Observe(duration)
}

// SetPartitionsAssigned sets partitions assigned gauge.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// IncMessagesProcessed increments the processed counter for a verdict.
// Verdict is one of "exported", "discarded" or "failed".
func (m *Metrics) IncMessagesProcessed(topic, hook, verdict string) {
	m.MessagesProcessed.WithLabelValues(topic, hook, verdict).Inc()
}

// ObserveHookDuration observes hook processing duration.
func (m *Metrics) ObserveHookDuration(hook string, duration float64) {
	m.HookDuration.WithLabelValues(hook).Observe(duration)
}

// ObserveFrameBytes observes the size of a serialized frame.
func (m *Metrics) ObserveFrameBytes(topic string, size float64) {
	m.FrameBytes.WithLabelValues(topic).Observe(size)
}

// SetBufferStats sets the buffer gauges for a partition.
func (m *Metrics) SetBufferStats(topic string, partition int32, sizeBytes, frames float64) {
	m.BufferSize.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Set(sizeBytes)
	m.BufferFrameCount.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Set(frames)
}

// IncBatchesFlushed increments the flushed batches counter.
func (m *Metrics) IncBatchesFlushed(backend, topic string, partition int32, status string) {
	m.BatchesFlushed.WithLabelValues(backend, topic, fmt.Sprintf("%d", partition), status).Inc()
}

// ObserveFlushDuration observes batch flush duration.
func (m *Metrics) ObserveFlushDuration(backend string, duration float64) {
	m.FlushDuration.WithLabelValues(backend).Observe(duration)
}

// ObserveBatchBytes observes the size of a flushed batch.
func (m *Metrics) ObserveBatchBytes(topic string, partition int32, size float64) {
	m.BatchBytes.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Observe(size)
}

// IncSinkErrors increments sink errors counter.
func (m *Metrics) IncSinkErrors(backend string, operation string) {
	m.SinkErrors.WithLabelValues(backend, operation).Inc()
}

// IncDLQMessages increments the DLQ counter.
func (m *Metrics) IncDLQMessages(topic, reason string) {
	m.DLQMessages.WithLabelValues(topic, reason).Inc()
}
