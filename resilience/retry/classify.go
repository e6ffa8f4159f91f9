package retry

import (
	"context"
	"errors"
	"strings"
)

// RetryableError is the structured-error capability probed during
// classification. Errors exposing it decide their own retryability.
type RetryableError interface {
	error
	Retryable() bool
}

// transientMarkers are the default heuristics applied when nothing else
// classifies an error.
var transientMarkers = []string{"network", "timeout", "connection"}

// classify reports whether err should be retried under config.
// First match wins:
//  1. NonRetryableErrors substring match -> terminal
//  2. RetryableErrors substring match -> retry
//  3. structured Retryable() flag -> honored
//  4. attempt timeout -> retry; caller cancellation -> terminal
//  5. default: retry only when the text mentions a transient condition
func classify(err error, config Config) bool {
	if err == nil {
		return false
	}

	msg := err.Error()

	for _, substr := range config.NonRetryableErrors {
		if substr != "" && strings.Contains(msg, substr) {
			return false
		}
	}

	for _, substr := range config.RetryableErrors {
		if substr != "" && strings.Contains(msg, substr) {
			return true
		}
	}

	var structured RetryableError
	if errors.As(err, &structured) {
		return structured.Retryable()
	}

	if errors.Is(err, ErrAttemptTimeout) {
		return true
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	lower := strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	return false
}
