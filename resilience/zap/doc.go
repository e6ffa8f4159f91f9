// Package zap provides a zap-backed implementation of the log.Logger
// abstraction used by the resilience packages.
//
// Log entries emitted with a context that carries an active OpenTelemetry
// span are annotated with trace_id and span_id so logs correlate with
// distributed traces.
package zap
