package helpers

import (
	"fmt"
	"time"

	"transit-observer/src/logger"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type TransitObserverError struct {
	Message string
	Cause   error
}

func (e *TransitObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TransitObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error types for type assertions where the caller cares.
type ConfigurationError struct{ TransitObserverError }
type IngestError struct{ TransitObserverError }
type CatalogError struct{ TransitObserverError }
type PredictionError struct{ TransitObserverError }

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		time.Sleep(delay)
	}

	return &TransitObserverError{Message: fmt.Sprintf("%s failed after %d attempts", operation, maxRetries), Cause: lastErr}
}

// -----------------------------------------------------------------------------
// Loop Guard
// -----------------------------------------------------------------------------

// RunTickSafely executes one driver tick, converting a panic into a logged
// error. Drivers wrap every iteration with this so a bad tick never takes
// down the loop, let alone the process.
func RunTickSafely(log *logger.Logger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TransitObserverError{Message: fmt.Sprintf("panic in %s tick", name), Cause: fmt.Errorf("%v", r)}
			log.Error("%v", err)
		}
	}()
	if err = fn(); err != nil {
		log.Error("%s tick failed: %v", name, err)
	}
	return err
}
