package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/internal/nilcheck"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/log"
	"github.com/sony/gobreaker"
)

// Registry owns named circuits. Circuits are created lazily on first use and
// are never destroyed.
type Registry struct {
	breakers  map[string]*gobreaker.CircuitBreaker
	configs   map[string]Config
	openedAt  map[string]time.Time
	listeners []StateChangeListener
	mu        sync.RWMutex
	logger    log.Logger
}

// NewRegistry creates an empty circuit registry.
func NewRegistry(logger log.Logger) *Registry {
	return &Registry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		configs:  make(map[string]Config),
		openedAt: make(map[string]time.Time),
		logger:   log.OrNop(logger),
	}
}

// Configure creates the named circuit with the given config if it does not
// exist yet. Reconfiguring an existing circuit is not supported; the original
// config wins.
func (r *Registry) Configure(name string, config Config) {
	r.getOrCreate(name, config)
}

// Execute runs op through the named circuit, creating it with DefaultConfig
// when absent.
//
// While the circuit is open, calls are rejected with ErrCircuitOpen without
// invoking op until the recovery timeout elapses. A call exceeding the
// circuit's timeout threshold fails with ErrOperationTimeout and counts as a
// circuit failure.
func (r *Registry) Execute(ctx context.Context, name string, op Operation) (any, error) {
	breaker := r.getOrCreate(name, DefaultConfig())

	r.mu.RLock()
	timeout := r.configs[name].TimeoutThreshold
	r.mu.RUnlock()

	result, err := breaker.Execute(func() (any, error) {
		return callWithTimeout(ctx, timeout, op)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		r.logger.Log(ctx, log.LevelWarn, "circuit rejected call",
			log.String("circuit", name),
			log.String("state", string(convertState(breaker.State()))),
		)

		return nil, fmt.Errorf("circuit %q: %w", name, ErrCircuitOpen)
	}

	return result, err
}

// State returns the current state of the named circuit.
func (r *Registry) State(name string) State {
	r.mu.RLock()
	breaker, exists := r.breakers[name]
	r.mu.RUnlock()

	if !exists {
		return StateUnknown
	}

	return convertState(breaker.State())
}

// IsHealthy reports whether the named circuit is closed. Open and half-open
// circuits both count as unhealthy.
func (r *Registry) IsHealthy(name string) bool {
	return r.State(name) == StateClosed
}

// Names returns the names of all known circuits.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}

	return names
}

// Metrics returns a snapshot of the named circuit.
func (r *Registry) Metrics(name string) (Metrics, bool) {
	r.mu.RLock()
	breaker, exists := r.breakers[name]
	opened := r.openedAt[name]
	r.mu.RUnlock()

	if !exists {
		return Metrics{}, false
	}

	counts := breaker.Counts()

	var rate float64
	if counts.Requests > 0 {
		rate = float64(counts.TotalFailures) / float64(counts.Requests)
	}

	return Metrics{
		Name:         name,
		State:        convertState(breaker.State()),
		FailureCount: counts.ConsecutiveFailures,
		Requests:     counts.Requests,
		FailureRate:  rate,
		OpenedAt:     opened,
	}, true
}

// Snapshot returns metrics for every known circuit, keyed by name.
func (r *Registry) Snapshot() map[string]Metrics {
	names := r.Names()

	snapshot := make(map[string]Metrics, len(names))

	for _, name := range names {
		if m, ok := r.Metrics(name); ok {
			snapshot[name] = m
		}
	}

	return snapshot
}

// Reset recreates the named circuit in the closed state with its original
// config. Unknown names are ignored.
func (r *Registry) Reset(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.breakers[name]; !exists {
		return
	}

	config := r.configs[name]
	r.breakers[name] = r.newBreaker(name, config)

	delete(r.openedAt, name)

	r.logger.Log(context.Background(), log.LevelInfo, "circuit reset",
		log.String("circuit", name))
}

// RegisterStateChangeListener registers a listener for circuit state change
// notifications. Nil listeners are ignored.
func (r *Registry) RegisterStateChangeListener(listener StateChangeListener) {
	if nilcheck.Interface(listener) {
		r.logger.Log(context.Background(), log.LevelWarn, "ignoring nil state change listener")

		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.listeners = append(r.listeners, listener)
}

func (r *Registry) getOrCreate(name string, config Config) *gobreaker.CircuitBreaker {
	r.mu.RLock()
	breaker, exists := r.breakers[name]
	r.mu.RUnlock()

	if exists {
		return breaker
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if breaker, exists = r.breakers[name]; exists {
		return breaker
	}

	config = config.normalize()
	breaker = r.newBreaker(name, config)
	r.breakers[name] = breaker
	r.configs[name] = config

	r.logger.Log(context.Background(), log.LevelInfo, "created circuit",
		log.String("circuit", name),
		log.Int("failure_threshold", int(config.FailureThreshold)),
		log.Duration("recovery_timeout", config.RecoveryTimeout),
	)

	return breaker
}

// newBreaker builds the underlying state machine. Callers must hold r.mu.
func (r *Registry) newBreaker(name string, config Config) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxHalfOpenCalls,
		Interval:    config.StatsInterval,
		Timeout:     config.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(_ string, from gobreaker.State, to gobreaker.State) {
			r.handleStateChange(name, convertState(from), convertState(to))
		},
	}

	return gobreaker.NewCircuitBreaker(settings)
}

func (r *Registry) handleStateChange(name string, from, to State) {
	ctx := context.Background()

	switch to {
	case StateOpen:
		r.mu.Lock()
		r.openedAt[name] = time.Now()
		r.mu.Unlock()

		r.logger.Log(ctx, log.LevelError, "circuit opened, calls will fast-fail",
			log.String("circuit", name), log.String("from", string(from)))
	case StateHalfOpen:
		r.logger.Log(ctx, log.LevelInfo, "circuit half-open, allowing trial call",
			log.String("circuit", name))
	case StateClosed:
		r.mu.Lock()
		delete(r.openedAt, name)
		r.mu.Unlock()

		r.logger.Log(ctx, log.LevelInfo, "circuit closed",
			log.String("circuit", name), log.String("from", string(from)))
	}

	r.mu.RLock()
	listeners := make([]StateChangeListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.RUnlock()

	for _, listener := range listeners {
		// Notify in a goroutine so a slow listener cannot block circuit
		// transitions.
		go func(l StateChangeListener) {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Log(ctx, log.LevelError, "state change listener panicked",
						log.String("circuit", name), log.Any("panic", rec))
				}
			}()

			l.OnStateChange(name, from, to)
		}(listener)
	}
}

// callWithTimeout races op against the circuit's timeout threshold. The
// child context is cancelled on timeout so a well-behaved op stops instead
// of leaking.
func callWithTimeout(ctx context.Context, timeout time.Duration, op Operation) (any, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		data any
		err  error
	}

	done := make(chan outcome, 1)

	go func() {
		data, err := op(callCtx)
		done <- outcome{data: data, err: err}
	}()

	select {
	case out := <-done:
		return out.data, out.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrOperationTimeout, timeout)
		}

		return nil, callCtx.Err()
	}
}
