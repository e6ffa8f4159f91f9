package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/circuitbreaker"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/consistency"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/retry"
)

// ErrValidationFailed marks a pre- or post-execution consistency check that
// failed at critical severity. It is never retried within the call.
var ErrValidationFailed = errors.New("data consistency validation failed")

// Operation describes one logical unit of work submitted to the Manager.
type Operation struct {
	Name    string
	Service string
	Run     func(ctx context.Context) (any, error)
	Data    any // payload checked by pre-validation
	Options Options
}

// Options selects the execution path and validation behavior for one
// operation. Exactly one path runs: circuit breaker wrapping retry, retry
// alone, or graceful degradation with fallbacks (the default).
type Options struct {
	UseCircuitBreaker bool
	UseRetry          bool

	// UseFallbacks selects the degradation path explicitly. Operations
	// choosing neither circuit breaking nor retry run under the degrader
	// anyway; setting it together with another path is rejected.
	UseFallbacks bool

	ValidateData bool

	// Rules overrides the checker's registered rules for this call.
	Rules []consistency.Rule

	// Retry overrides the manager-wide retry config.
	Retry *retry.Config

	// CircuitName overrides the derived "<service>_<name>" circuit key.
	CircuitName string

	// Circuit configures the circuit on first use.
	Circuit *circuitbreaker.Config
}

func (op Operation) validate() error {
	if op.Name == "" {
		return fmt.Errorf("operation name is required")
	}

	if op.Service == "" {
		return fmt.Errorf("operation %q: service is required", op.Name)
	}

	if op.Run == nil {
		return fmt.Errorf("operation %q: Run is required", op.Name)
	}

	if op.Options.UseFallbacks && (op.Options.UseCircuitBreaker || op.Options.UseRetry) {
		return fmt.Errorf("operation %q: UseFallbacks excludes circuit breaking and retry", op.Name)
	}

	return nil
}

// circuitName returns the circuit key for this operation.
func (op Operation) circuitName() string {
	if op.Options.CircuitName != "" {
		return op.Options.CircuitName
	}

	return op.Service + "_" + op.Name
}
