package backoff

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	mrand "math/rand/v2"
	"time"
)

// Exponential calculates exponential delay based on attempt number.
// The delay is calculated as base * multiplier^attempt with overflow
// protection. Negative attempts are treated as 0; multipliers below 1
// are treated as 1 (constant delay).
func Exponential(base time.Duration, multiplier float64, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}

	if attempt < 0 {
		attempt = 0
	}

	if multiplier < 1 {
		multiplier = 1
	}

	delay := float64(base) * math.Pow(multiplier, float64(attempt))
	if delay > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(delay)
}

// Clamp bounds a delay to the [0, maxDelay] interval. A non-positive
// maxDelay disables the upper bound.
func Clamp(delay, maxDelay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}

	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}

	return delay
}

// Spread randomizes a delay by +/- delay*factor/2, clamped to be
// non-negative. A factor of 0 returns the delay unchanged. The result is
// uniformly distributed in [delay*(1-factor/2), delay*(1+factor/2)].
func Spread(delay time.Duration, factor float64) time.Duration {
	if delay <= 0 || factor <= 0 {
		return Clamp(delay, 0)
	}

	span := float64(delay) * factor
	jittered := float64(delay) + (randFloat()-0.5)*span

	if jittered < 0 {
		return 0
	}

	if jittered > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(jittered)
}

// randFloat returns a uniform value in [0, 1) seeded from crypto/rand.
// If the system entropy source fails entirely, it degrades to the
// distribution midpoint so backoff never stalls.
func randFloat() float64 {
	var seed [8]byte

	_, err := rand.Read(seed[:])
	if err != nil {
		return 0.5
	}

	rng := mrand.New(
		mrand.NewPCG(binary.LittleEndian.Uint64(seed[:]), 0),
	) // #nosec G404 -- seeded from crypto/rand

	return rng.Float64()
}

// SleepWithContext sleeps for the specified duration but respects context
// cancellation. Returns nil if the sleep completes, or an error if the
// context is cancelled. Returns immediately (nil) for zero or negative
// durations.
func SleepWithContext(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context done: %w", ctx.Err())
	}
}
