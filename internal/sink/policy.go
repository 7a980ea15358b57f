package sink

import (
	"time"

	"github.com/jittakal/kafeventexport/pkg/message"
	"github.com/jittakal/kafeventexport/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var _ sink.RotationPolicy = (*CompositePolicy)(nil)

// RotationStrategy combines the individual rotation criteria.
type RotationStrategy string

const (
	// StrategyAny rotates when any criterion is met.
	StrategyAny RotationStrategy = "any"
	// StrategyAll rotates only when every configured criterion is met.
	StrategyAll RotationStrategy = "all"
)

// PolicyConfig configures rotation behavior. A zero limit disables that
// criterion.
type PolicyConfig struct {
	MaxBatchSizeMB     int64
	MaxFramesPerBatch  int
	MaxBatchAgeSeconds int
	Strategy           string
}

// CompositePolicy rotates batches based on size, frame count and age.
type CompositePolicy struct {
	maxSizeBytes int64
	maxFrames    int
	maxAge       time.Duration
	requireAll   bool
}

// NewPolicy creates a new composite rotation policy.
func NewPolicy(config PolicyConfig) *CompositePolicy {
	return &CompositePolicy{
		maxSizeBytes: config.MaxBatchSizeMB * 1024 * 1024,
		maxFrames:    config.MaxFramesPerBatch,
		maxAge:       time.Duration(config.MaxBatchAgeSeconds) * time.Second,
		requireAll:   RotationStrategy(config.Strategy) == StrategyAll,
	}
}

// ShouldRotate reports whether the buffered batch should be flushed.
func (p *CompositePolicy) ShouldRotate(stats message.BatchStats) bool {
	if stats.FrameCount == 0 {
		return false
	}

	sizeHit := p.maxSizeBytes > 0 && stats.SizeBytes >= p.maxSizeBytes
	countHit := p.maxFrames > 0 && stats.FrameCount >= p.maxFrames
	ageHit := p.maxAge > 0 && !stats.FirstWriteTime.IsZero() &&
		time.Since(stats.FirstWriteTime) >= p.maxAge

	if p.requireAll {
		all := true
		if p.maxSizeBytes > 0 {
			all = all && sizeHit
		}
		if p.maxFrames > 0 {
			all = all && countHit
		}
		if p.maxAge > 0 {
			all = all && ageHit
		}
		return all
	}

	return sizeHit || countHit || ageHit
}
