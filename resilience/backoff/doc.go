// Package backoff provides retry delay helpers with exponential growth and
// jitter.
//
// Use Exponential with Spread for retry loops and SleepWithContext to wait
// while respecting cancellation and deadlines.
package backoff
