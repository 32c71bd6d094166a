// Package logging provides a minimal logging interface and adapters for scribe.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the workflow, agents and tools use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - ScribeLogger with contextual session/component helpers
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	engine := workflow.NewEngine(deps, workflow.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
