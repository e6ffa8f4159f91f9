// Package retry executes operations with bounded attempts, exponential
// backoff with jitter between attempts, and retryable/terminal error
// classification.
//
// Per-call statistics are aggregated under a caller-supplied operation name
// so repeated executions of the same logical operation share one record.
package retry
