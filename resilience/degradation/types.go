package degradation

import (
	"context"
	"errors"
	"time"
)

// ErrFallbackExhausted marks a primary failure for which every registered
// fallback was unavailable, level-incompatible, or itself failed. It wraps
// the original primary error so errors.Is matches both.
var ErrFallbackExhausted = errors.New("all fallbacks exhausted")

// Operation is a primary unit of work executed for a service.
type Operation func(ctx context.Context) (any, error)

// Strategy is an immutable fallback descriptor registered per service.
// Strategies are tried in ascending Priority order; a strategy is eligible
// only when its Level does not exceed the current service level.
type Strategy struct {
	Name      string
	Level     Level
	Priority  int
	Available func(ctx context.Context) bool // nil means always available
	Run       func(ctx context.Context) (any, error)
}

// ServiceHealth is the per-service record mutated on every outcome.
type ServiceHealth struct {
	Healthy        bool
	FailureCount   int
	SuccessCount   int
	CurrentLevel   Level
	FallbackActive bool
	LastCheck      time.Time
}

// Snapshot is a point-in-time copy of the degrader state.
type Snapshot struct {
	Level    Level
	Services map[string]ServiceHealth
}

// Config holds degradation thresholds and sweep cadence.
type Config struct {
	DegradationThreshold int           // consecutive failures before the level drops
	RecoveryThreshold    int           // consecutive successes before failures reset
	MonitoringWindow     time.Duration // counters older than this are swept
	SweepInterval        time.Duration // how often the sweeper runs
}

// DefaultConfig provides balanced settings.
func DefaultConfig() Config {
	return Config{
		DegradationThreshold: 3,
		RecoveryThreshold:    5,
		MonitoringWindow:     5 * time.Minute,
		SweepInterval:        time.Minute,
	}
}

// normalize fills zero values with the defaults.
func (c Config) normalize() Config {
	def := DefaultConfig()

	if c.DegradationThreshold <= 0 {
		c.DegradationThreshold = def.DegradationThreshold
	}

	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = def.RecoveryThreshold
	}

	if c.MonitoringWindow <= 0 {
		c.MonitoringWindow = def.MonitoringWindow
	}

	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}

	return c
}
