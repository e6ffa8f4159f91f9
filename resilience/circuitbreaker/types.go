package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when a circuit rejects a call without invoking
// the wrapped operation. The rejection is not counted as a new circuit
// failure.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrOperationTimeout is returned when a call exceeds the circuit's timeout
// threshold. The timeout counts as a failure for the circuit.
var ErrOperationTimeout = errors.New("operation timed out")

// State represents circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

// Metrics is a point-in-time snapshot of one circuit.
type Metrics struct {
	Name         string
	State        State
	FailureCount uint32 // consecutive failures
	Requests     uint32
	FailureRate  float64 // total failures / requests within the stats window
	OpenedAt     time.Time
}

// StateChangeListener is notified when a circuit changes state.
type StateChangeListener interface {
	OnStateChange(circuitName string, from State, to State)
}

// Operation is a unit of work guarded by a circuit.
type Operation func(ctx context.Context) (any, error)

func convertState(state gobreaker.State) State {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}
