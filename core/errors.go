package core

import (
	"fmt"
	"time"
)

// InputError rejects a request before any stream starts (missing input,
// malformed mode). It never produces stream events.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return fmt.Sprintf("invalid input: %s", e.Reason) }

// TranscriptionError is fatal for the request: without text there is
// nothing to route or execute.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcription failed: %v", e.Err) }

func (e *TranscriptionError) Unwrap() error { return e.Err }

// AgentExecutionError wraps a failure of the executing agent or discussion
// engine. The workflow retries it with bounded backoff before treating it
// as fatal.
type AgentExecutionError struct {
	Agent string
	Err   error
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("agent %s execution failed: %v", e.Agent, e.Err)
}

func (e *AgentExecutionError) Unwrap() error { return e.Err }

// StorageError wraps a persistence failure. The workflow downgrades it to a
// warning; it never fails the request.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// StreamTimeoutError reports that the overall wall-clock budget for a
// request expired; the stream ends with an error event and background work
// is cancelled.
type StreamTimeoutError struct {
	Budget time.Duration
}

func (e *StreamTimeoutError) Error() string {
	return fmt.Sprintf("stream timed out after %s", e.Budget)
}

// WarnRoutingAmbiguity is the warning recorded when routing input was
// ambiguous (e.g. overlapping name mentions resolved by priority order).
const WarnRoutingAmbiguity = "routing ambiguity: multiple routing signals present, priority order applied"
