package helpers

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"transit-observer/src/logger"
)

func TestTransitObserverErrorUnwrap(t *testing.T) {
	root := errors.New("connection refused")
	err := &IngestError{TransitObserverError{Message: "source down", Cause: root}}

	if !errors.Is(err, root) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if got := err.Error(); got != "source down: connection refused" {
		t.Errorf("Error() = %q", got)
	}

	bare := &TransitObserverError{Message: "standalone"}
	if got := bare.Error(); got != "standalone" {
		t.Errorf("Error() without cause = %q", got)
	}
}

func TestRetryWithBackoffEventualSuccess(t *testing.T) {
	log := logger.NewLogger("test")

	calls := 0
	err := RetryWithBackoff(log, "flaky-op", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("transient failure %d", calls)
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryWithBackoffExhausted(t *testing.T) {
	log := logger.NewLogger("test")
	root := errors.New("permanent failure")

	calls := 0
	err := RetryWithBackoff(log, "doomed-op", 3, time.Millisecond, func() error {
		calls++
		return root
	})

	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if !errors.Is(err, root) {
		t.Error("the final error should wrap the last cause")
	}
}

func TestRunTickSafelyPassesThrough(t *testing.T) {
	log := logger.NewLogger("test")

	if err := RunTickSafely(log, "ok-tick", func() error { return nil }); err != nil {
		t.Errorf("clean tick returned %v", err)
	}

	tickErr := errors.New("tick broke")
	if err := RunTickSafely(log, "bad-tick", func() error { return tickErr }); !errors.Is(err, tickErr) {
		t.Errorf("expected the tick error back, got %v", err)
	}
}

func TestRunTickSafelyRecoversPanic(t *testing.T) {
	log := logger.NewLogger("test")

	err := RunTickSafely(log, "panicky-tick", func() error {
		panic("boom")
	})
	if err == nil {
		t.Fatal("a panic must surface as an error")
	}
}
