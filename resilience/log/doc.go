// Package log defines the structured logging interface and typed logging
// fields used across the resilience packages.
//
// Adapters (such as the zap package) implement Logger so components can keep
// logging calls consistent across backends. Components accept a Logger at
// construction and normalize nil to NewNop.
package log
