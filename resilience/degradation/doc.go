// Package degradation tracks per-service health, maintains a process-wide
// service level, and falls back through priority-ordered strategies when a
// primary operation fails.
//
// The service level is owned by a Degrader instance, never a package global.
// A background sweeper resets stale health counters so a transient outage
// cannot pin the level down forever; start it with Start and stop it with
// Stop during shutdown.
package degradation
