// Package core defines the shared data model of the scribe orchestration
// engine: the orchestration request, the mutable per-request AgentState
// threaded through workflow stages, discussion and tool-call records, the
// StreamEvent union pushed to clients, the typed error taxonomy and the
// narrow interfaces behind which external collaborators (transcription,
// retrieval, note persistence, conversational memory, checkpoints) sit.
//
// Everything in this package is either immutable after construction
// (OrchestrationRequest, DiscussionTurn, StreamEvent) or owned by exactly
// one request (AgentState, ToolCall); nothing here is shared across
// concurrent requests.
package core
