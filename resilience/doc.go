// Package resilience executes operations under configurable fault-tolerance
// policies: circuit breaking, bounded retry with exponential backoff,
// graceful degradation with prioritized fallbacks, and data consistency
// validation with budgeted auto-repair.
//
// The Manager is the entry point. Each Operation selects one execution path
// through its Options:
//
//	UseCircuitBreaker -- circuit breaker wrapping bounded retry
//	UseRetry          -- bounded retry alone
//	(neither)         -- graceful degradation with registered fallbacks
//
// Consistency validation, when requested, brackets the run: the payload is
// checked before execution and the result after, with critical failures
// aborting the call. Every call is recorded in a bounded per-service history
// and, when an observer is set, exported to Prometheus.
//
// The subpackages are usable on their own: circuitbreaker, retry,
// degradation, consistency, and backoff carry no dependency on the Manager.
package resilience
