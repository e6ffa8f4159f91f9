package retry

import "time"

// Config holds retry behavior for one logical operation.
type Config struct {
	MaxAttempts       int           // total attempts, including the first
	BaseDelay         time.Duration // delay before the second attempt
	MaxDelay          time.Duration // upper bound on the computed delay
	BackoffMultiplier float64       // growth factor per attempt
	JitterFactor      float64       // spread applied as +/- delay*factor/2; 0 takes the default, negative disables jitter
	AttemptTimeout    time.Duration // per-attempt execution timeout

	// RetryableErrors and NonRetryableErrors are substring matches against
	// the error text. NonRetryableErrors wins when both match.
	RetryableErrors    []string
	NonRetryableErrors []string
}

// DefaultConfig provides balanced settings for transient downstream
// failures.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.1,
		AttemptTimeout:    30 * time.Second,
	}
}

// normalize fills zero values with the defaults.
func (c Config) normalize() Config {
	def := DefaultConfig()

	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}

	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}

	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}

	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}

	if c.JitterFactor == 0 {
		c.JitterFactor = def.JitterFactor
	}

	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}

	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = def.AttemptTimeout
	}

	return c
}
