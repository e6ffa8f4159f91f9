//go:build unit

package degradation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPrimary = errors.New("primary failed")

func failingPrimary(context.Context) (any, error) { return nil, errPrimary }

func okPrimary(context.Context) (any, error) { return "primary", nil }

func testConfig() Config {
	return Config{
		DegradationThreshold: 3,
		RecoveryThreshold:    2,
		MonitoringWindow:     time.Hour,
		SweepInterval:        time.Hour,
	}
}

func cachedFallback(name string, level Level, priority int) Strategy {
	return Strategy{
		Name:     name,
		Level:    level,
		Priority: priority,
		Run: func(context.Context) (any, error) {
			return "cached:" + name, nil
		},
	}
}

func TestExecuteSuccessPassesThrough(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(testConfig(), nil)

	data, err := degrader.Execute(context.Background(), "wallet", okPrimary)
	require.NoError(t, err)
	assert.Equal(t, "primary", data)

	health, ok := degrader.ServiceHealth("wallet")
	require.True(t, ok)
	assert.True(t, health.Healthy)
	assert.Equal(t, 1, health.SuccessCount)
	assert.Equal(t, LevelFull, degrader.Level())
}

func TestLevelDropsAfterThresholdFailures(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(testConfig(), nil)
	require.NoError(t, degrader.RegisterFallback("wallet", cachedFallback("balance-cache", LevelLimited, 1)))

	ctx := context.Background()

	for i := range 3 {
		_, err := degrader.Execute(ctx, "wallet", failingPrimary)
		require.NoError(t, err, "fallback should absorb failure %d", i+1)
	}

	assert.Equal(t, LevelLimited, degrader.Level())

	health, ok := degrader.ServiceHealth("wallet")
	require.True(t, ok)
	assert.False(t, health.Healthy)
	assert.Equal(t, 3, health.FailureCount)
	assert.True(t, health.FallbackActive)

	// The next failing call still returns the fallback result instead of an
	// error.
	data, err := degrader.Execute(ctx, "wallet", failingPrimary)
	require.NoError(t, err)
	assert.Equal(t, "cached:balance-cache", data)
}

func TestLevelDropsToEmergencyWithoutFallbacks(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(testConfig(), nil)

	ctx := context.Background()

	for range 3 {
		_, err := degrader.Execute(ctx, "prover", failingPrimary)
		require.Error(t, err)
	}

	assert.Equal(t, LevelEmergency, degrader.Level())
}

func TestFallbackExhaustedReRaisesPrimaryError(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(testConfig(), nil)

	failing := Strategy{
		Name:     "broken-fallback",
		Level:    LevelLimited,
		Priority: 1,
		Run: func(context.Context) (any, error) {
			return nil, errors.New("fallback also down")
		},
	}
	require.NoError(t, degrader.RegisterFallback("wallet", failing))

	_, err := degrader.Execute(context.Background(), "wallet", failingPrimary)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFallbackExhausted)
	assert.ErrorIs(t, err, errPrimary)
}

func TestFallbackPriorityOrder(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(testConfig(), nil)

	var mu sync.Mutex
	var order []int

	strategy := func(priority int, fail bool) Strategy {
		return Strategy{
			Name:     "s",
			Level:    LevelLimited,
			Priority: priority,
			Run: func(context.Context) (any, error) {
				mu.Lock()
				order = append(order, priority)
				mu.Unlock()

				if fail {
					return nil, errors.New("nope")
				}

				return priority, nil
			},
		}
	}

	// Registered out of order: priorities 3, 1, 2; all fail so every one is
	// attempted.
	require.NoError(t, degrader.RegisterFallback("svc", strategy(3, true)))
	require.NoError(t, degrader.RegisterFallback("svc", strategy(1, true)))
	require.NoError(t, degrader.RegisterFallback("svc", strategy(2, true)))

	_, err := degrader.Execute(context.Background(), "svc", failingPrimary)
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestFallbackSkipsUnavailableAndIncompatible(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(testConfig(), nil)

	unavailable := Strategy{
		Name:      "unavailable",
		Level:     LevelLimited,
		Priority:  1,
		Available: func(context.Context) bool { return false },
		Run:       func(context.Context) (any, error) { return "unavailable", nil },
	}
	require.NoError(t, degrader.RegisterFallback("svc", unavailable))
	require.NoError(t, degrader.RegisterFallback("svc", cachedFallback("eligible", LevelLimited, 2)))

	data, err := degrader.Execute(context.Background(), "svc", failingPrimary)
	require.NoError(t, err)
	assert.Equal(t, "cached:eligible", data)
}

func TestFallbackAboveCurrentLevelIsSkipped(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(testConfig(), nil)

	// Only an emergency-level fallback is registered, so three failures drop
	// the level to emergency. A degraded-level strategy registered afterwards
	// is then level-incompatible.
	require.NoError(t, degrader.RegisterFallback("svc", cachedFallback("static", LevelEmergency, 2)))

	ctx := context.Background()

	for range 3 {
		_, _ = degrader.Execute(ctx, "svc", failingPrimary)
	}

	require.Equal(t, LevelEmergency, degrader.Level())

	require.NoError(t, degrader.RegisterFallback("svc", cachedFallback("rich", LevelDegraded, 1)))

	data, err := degrader.Execute(ctx, "svc", failingPrimary)
	require.NoError(t, err)
	assert.Equal(t, "cached:static", data, "level-incompatible fallback must be skipped despite lower priority")
}

func TestRecoveryRaisesLevel(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(testConfig(), nil)
	require.NoError(t, degrader.RegisterFallback("svc", cachedFallback("cache", LevelLimited, 1)))

	ctx := context.Background()

	for range 3 {
		_, _ = degrader.Execute(ctx, "svc", failingPrimary)
	}

	require.Equal(t, LevelLimited, degrader.Level())

	// First recovery streak clears the failure counters.
	for range 2 {
		_, err := degrader.Execute(ctx, "svc", okPrimary)
		require.NoError(t, err)
	}

	assert.Equal(t, LevelLimited, degrader.Level(), "level must not rise while failures were recorded")

	health, _ := degrader.ServiceHealth("svc")
	assert.Equal(t, 0, health.FailureCount)

	// Subsequent clean streaks raise the level one rank at a time.
	for range 2 {
		_, _ = degrader.Execute(ctx, "svc", okPrimary)
	}

	assert.Equal(t, LevelDegraded, degrader.Level())

	for range 2 {
		_, _ = degrader.Execute(ctx, "svc", okPrimary)
	}

	assert.Equal(t, LevelFull, degrader.Level())
}

func TestFailureResetsSuccessStreak(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(testConfig(), nil)

	ctx := context.Background()

	_, _ = degrader.Execute(ctx, "svc", okPrimary)
	_, _ = degrader.Execute(ctx, "svc", failingPrimary)

	health, _ := degrader.ServiceHealth("svc")
	assert.Equal(t, 0, health.SuccessCount)
	assert.Equal(t, 1, health.FailureCount)
}

func TestRegisterFallbackValidation(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(testConfig(), nil)

	err := degrader.RegisterFallback("", cachedFallback("x", LevelLimited, 1))
	require.Error(t, err)

	err = degrader.RegisterFallback("svc", Strategy{Name: "no-run"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Run function")
}

func TestResetService(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(testConfig(), nil)

	ctx := context.Background()

	for range 3 {
		_, _ = degrader.Execute(ctx, "svc", failingPrimary)
	}

	degrader.ResetService("svc")

	health, ok := degrader.ServiceHealth("svc")
	require.True(t, ok)
	assert.True(t, health.Healthy)
	assert.Zero(t, health.FailureCount)
	assert.False(t, health.FallbackActive)

	// Unknown service is a no-op.
	degrader.ResetService("unknown")
	_, ok = degrader.ServiceHealth("unknown")
	assert.False(t, ok)
}

func TestSweepResetsStaleCounters(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(Config{
		DegradationThreshold: 3,
		RecoveryThreshold:    2,
		MonitoringWindow:     10 * time.Millisecond,
		SweepInterval:        time.Hour,
	}, nil)

	ctx := context.Background()

	_, _ = degrader.Execute(ctx, "svc", failingPrimary)
	_, _ = degrader.Execute(ctx, "svc", failingPrimary)

	health, _ := degrader.ServiceHealth("svc")
	require.Equal(t, 2, health.FailureCount)

	degrader.sweepStale(time.Now().Add(time.Minute))

	health, _ = degrader.ServiceHealth("svc")
	assert.Zero(t, health.FailureCount)
	assert.Zero(t, health.SuccessCount)
	assert.True(t, health.Healthy)
}

func TestSweeperStartStop(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(Config{
		DegradationThreshold: 3,
		RecoveryThreshold:    2,
		MonitoringWindow:     5 * time.Millisecond,
		SweepInterval:        5 * time.Millisecond,
	}, nil)

	ctx := context.Background()

	_, _ = degrader.Execute(ctx, "svc", failingPrimary)

	degrader.Start()

	assert.Eventually(t, func() bool {
		health, _ := degrader.ServiceHealth("svc")
		return health.FailureCount == 0
	}, time.Second, 5*time.Millisecond)

	degrader.Stop()
	degrader.Stop() // idempotent
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	degrader := NewDegrader(testConfig(), nil)

	ctx := context.Background()

	_, _ = degrader.Execute(ctx, "a", okPrimary)
	_, _ = degrader.Execute(ctx, "b", failingPrimary)

	snapshot := degrader.Snapshot()
	assert.Equal(t, LevelFull, snapshot.Level)
	assert.Len(t, snapshot.Services, 2)
	assert.Equal(t, 1, snapshot.Services["a"].SuccessCount)
	assert.Equal(t, 1, snapshot.Services["b"].FailureCount)

	// Mutating the snapshot must not affect the degrader.
	entry := snapshot.Services["a"]
	entry.SuccessCount = 99
	snapshot.Services["a"] = entry

	health, _ := degrader.ServiceHealth("a")
	assert.Equal(t, 1, health.SuccessCount)
}

func TestLevelString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "full", LevelFull.String())
	assert.Equal(t, "degraded", LevelDegraded.String())
	assert.Equal(t, "limited", LevelLimited.String())
	assert.Equal(t, "emergency", LevelEmergency.String())
	assert.Equal(t, "unknown", Level(0).String())
}
