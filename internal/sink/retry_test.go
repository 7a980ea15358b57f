package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/jittakal/kafeventexport/internal/errors"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:           true,
		MaxAttempts:       3,
		InitialBackoffMS:  1,
		MaxBackoffMS:      5,
		BackoffMultiplier: 2.0,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestRetrier_SuccessFirstAttempt(t *testing.T) {
	r := NewRetrier(testRetryConfig(), testLogger())

	calls := 0
	err := r.Do(context.Background(), "write", func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetrier_RetryableErrorRetried(t *testing.T) {
	r := NewRetrier(testRetryConfig(), testLogger())

	calls := 0
	err := r.Do(context.Background(), "copy", func() error {
		calls++
		if calls < 3 {
			return &errors.SinkError{Operation: "copy", Target: "t", Err: fmt.Errorf("transient")}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetrier_NonRetryableErrorFailsFast(t *testing.T) {
	r := NewRetrier(testRetryConfig(), testLogger())

	calls := 0
	wrapped := &errors.HookError{Hook: "jsonexport", MessageID: "m1", Err: fmt.Errorf("bad value")}
	err := r.Do(context.Background(), "write", func() error {
		calls++
		return wrapped
	})

	if err != wrapped {
		t.Errorf("Do() error = %v, want %v", err, wrapped)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetrier_AttemptBudgetExhausted(t *testing.T) {
	r := NewRetrier(testRetryConfig(), testLogger())

	calls := 0
	err := r.Do(context.Background(), "upload", func() error {
		calls++
		return &errors.SinkError{Operation: "upload", Target: "b", Err: fmt.Errorf("still down")}
	})

	if err == nil {
		t.Fatal("expected error after budget exhausted")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetrier_Disabled(t *testing.T) {
	cfg := testRetryConfig()
	cfg.Enabled = false
	r := NewRetrier(cfg, testLogger())

	calls := 0
	err := r.Do(context.Background(), "write", func() error {
		calls++
		return &errors.SinkError{Operation: "write", Target: "t", Err: fmt.Errorf("down")}
	})

	if err == nil {
		t.Fatal("expected error with retries disabled")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetrier_ContextCancelled(t *testing.T) {
	cfg := testRetryConfig()
	cfg.InitialBackoffMS = 10_000
	cfg.Jitter = false
	r := NewRetrier(cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Do(ctx, "copy", func() error {
		return &errors.SinkError{Operation: "copy", Target: "t", Err: fmt.Errorf("down")}
	})

	if err != context.Canceled {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}
