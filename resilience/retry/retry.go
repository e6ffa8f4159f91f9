package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/backoff"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/log"
)

// ErrRetriesExhausted wraps the last underlying error once every attempt has
// been consumed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// ErrAttemptTimeout marks a single attempt that exceeded the per-attempt
// timeout. It is always classified as retryable.
var ErrAttemptTimeout = errors.New("attempt timed out")

// Operation is a unit of work executed under retry.
type Operation func(ctx context.Context) (any, error)

// Result is the ephemeral per-call outcome.
type Result struct {
	Success             bool
	Data                any
	Err                 error
	Attempts            int
	TotalDuration       time.Duration
	LastAttemptDuration time.Duration
}

// Stats aggregates outcomes for one named operation.
type Stats struct {
	Calls         int64
	Successes     int64
	Failures      int64
	TotalAttempts int64
}

// Manager executes operations with bounded retry and keeps per-name
// statistics.
type Manager struct {
	stats  map[string]Stats
	mu     sync.Mutex
	logger log.Logger
}

// NewManager creates a retry manager.
func NewManager(logger log.Logger) *Manager {
	return &Manager{
		stats:  make(map[string]Stats),
		logger: log.OrNop(logger),
	}
}

// Execute runs op under the given config. Attempts are strictly sequential.
// Retries stop early when an error classifies as terminal; otherwise the
// loop sleeps for an exponentially growing, jittered delay between attempts
// and never sleeps after the last one.
func (m *Manager) Execute(ctx context.Context, name string, op Operation, config Config) Result {
	config = config.normalize()

	start := time.Now()

	var (
		lastErr     error
		lastAttempt time.Duration
		attempts    int
	)

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		attempts = attempt

		attemptStart := time.Now()
		data, err := runAttempt(ctx, config.AttemptTimeout, op)
		lastAttempt = time.Since(attemptStart)

		if err == nil {
			m.record(name, attempt, true)

			return Result{
				Success:             true,
				Data:                data,
				Attempts:            attempt,
				TotalDuration:       time.Since(start),
				LastAttemptDuration: lastAttempt,
			}
		}

		lastErr = err

		m.logger.Log(ctx, log.LevelWarn, "attempt failed",
			log.String("operation", name),
			log.Int("attempt", attempt),
			log.Int("max_attempts", config.MaxAttempts),
			log.Err(err),
		)

		if !classify(err, config) {
			m.logger.Log(ctx, log.LevelDebug, "error classified as terminal",
				log.String("operation", name), log.Err(err))

			break
		}

		if attempt == config.MaxAttempts {
			break
		}

		delay := backoff.Spread(
			backoff.Clamp(
				backoff.Exponential(config.BaseDelay, config.BackoffMultiplier, attempt-1),
				config.MaxDelay,
			),
			config.JitterFactor,
		)

		if sleepErr := backoff.SleepWithContext(ctx, delay); sleepErr != nil {
			lastErr = sleepErr

			break
		}
	}

	m.record(name, attempts, false)

	err := lastErr
	if attempts == config.MaxAttempts && classify(lastErr, config) {
		err = fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
	}

	return Result{
		Success:             false,
		Err:                 err,
		Attempts:            attempts,
		TotalDuration:       time.Since(start),
		LastAttemptDuration: lastAttempt,
	}
}

// Stats returns the aggregate record for one operation name.
func (m *Manager) Stats(name string) (Stats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats, ok := m.stats[name]

	return stats, ok
}

// StatsSnapshot returns a copy of every named record.
func (m *Manager) StatsSnapshot() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]Stats, len(m.stats))
	for name, stats := range m.stats {
		snapshot[name] = stats
	}

	return snapshot
}

func (m *Manager) record(name string, attempts int, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.stats[name]
	stats.Calls++
	stats.TotalAttempts += int64(attempts)

	if success {
		stats.Successes++
	} else {
		stats.Failures++
	}

	m.stats[name] = stats
}

// runAttempt races op against the per-attempt timeout. The child context is
// cancelled when the timer wins so a well-behaved op stops instead of
// leaking; the attempt itself is reported as ErrAttemptTimeout.
func runAttempt(ctx context.Context, timeout time.Duration, op Operation) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		data any
		err  error
	}

	done := make(chan outcome, 1)

	go func() {
		data, err := op(attemptCtx)
		done <- outcome{data: data, err: err}
	}()

	select {
	case out := <-done:
		return out.data, out.err
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrAttemptTimeout, timeout)
		}

		return nil, attemptCtx.Err()
	}
}
