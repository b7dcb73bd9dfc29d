// Package logging provides a minimal logging interface and adapters for the
// town simulation.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the lifecycle manager, provisioner and consolidator use
// for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - TownLogger with contextual helpers for agents and conversations
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	town := aitown.New(aitown.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
