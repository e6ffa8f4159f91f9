// Package circuitbreaker provides a registry of named circuit breakers that
// fail fast once a dependency is deemed unhealthy.
//
// Circuits are created lazily on first use and live for the process lifetime.
// Run calls through Registry.Execute so failures are tracked consistently
// across callers; per-call timeouts count as failures. State change listeners
// can be registered for recovery orchestration.
package circuitbreaker
