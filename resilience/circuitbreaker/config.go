package circuitbreaker

import "time"

// Config holds per-circuit configuration.
type Config struct {
	FailureThreshold uint32        // consecutive failures before the circuit opens
	RecoveryTimeout  time.Duration // how long an open circuit rejects calls before a trial
	TimeoutThreshold time.Duration // per-call execution timeout, counted as a failure
	MaxHalfOpenCalls uint32        // trial calls allowed while half-open
	StatsInterval    time.Duration // rolling window for the failure-rate counters
}

// normalize fills zero values with the defaults.
func (c Config) normalize() Config {
	def := DefaultConfig()

	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}

	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = def.RecoveryTimeout
	}

	if c.TimeoutThreshold <= 0 {
		c.TimeoutThreshold = def.TimeoutThreshold
	}

	if c.MaxHalfOpenCalls == 0 {
		c.MaxHalfOpenCalls = def.MaxHalfOpenCalls
	}

	if c.StatsInterval <= 0 {
		c.StatsInterval = def.StatsInterval
	}

	return c
}

// DefaultConfig provides balanced settings for most dependencies.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		TimeoutThreshold: 10 * time.Second,
		MaxHalfOpenCalls: 1,
		StatsInterval:    time.Minute,
	}
}

// AggressiveConfig for dependencies requiring fast failure detection.
func AggressiveConfig() Config {
	return Config{
		FailureThreshold: 3,
		RecoveryTimeout:  10 * time.Second,
		TimeoutThreshold: 5 * time.Second,
		MaxHalfOpenCalls: 1,
		StatsInterval:    30 * time.Second,
	}
}

// ConservativeConfig for dependencies that should tolerate more failures.
func ConservativeConfig() Config {
	return Config{
		FailureThreshold: 10,
		RecoveryTimeout:  2 * time.Minute,
		TimeoutThreshold: 45 * time.Second,
		MaxHalfOpenCalls: 2,
		StatsInterval:    3 * time.Minute,
	}
}
