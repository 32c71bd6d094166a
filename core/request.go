package core

import "github.com/google/uuid"

// Mode selects how a request is dispatched. ModeAuto delegates the choice to
// the router; the other values force a target and bypass classification.
type Mode string

const (
	// ModeAuto lets the router decide the target.
	ModeAuto Mode = "auto"
	// ModePlume forces the restitution (writing) agent.
	ModePlume Mode = "plume"
	// ModeMimir forces the archivist (research) agent.
	ModeMimir Mode = "mimir"
	// ModeDiscussion forces a two-agent discussion.
	ModeDiscussion Mode = "discussion"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeAuto, ModePlume, ModeMimir, ModeDiscussion:
		return true
	}
	return false
}

// Agent role identifiers. These double as the names scanned for explicit
// mentions in user input.
const (
	RolePlume = "plume"
	RoleMimir = "mimir"
)

// Routing targets. TargetDiscussion is not an agent role: it selects the
// discussion engine instead of a single agent.
const (
	TargetPlume      = RolePlume
	TargetMimir      = RoleMimir
	TargetDiscussion = "discussion"
)

// OrchestrationRequest is the immutable input of one orchestration call.
// Exactly one of InputText / VoiceData must be present; VoiceData is an
// opaque audio payload handed to the transcription collaborator.
type OrchestrationRequest struct {
	InputText      string `json:"input_text,omitempty"`
	VoiceData      []byte `json:"voice_data,omitempty"`
	VoiceMimeType  string `json:"voice_mime_type,omitempty"`
	Mode           Mode   `json:"mode"`
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

// Normalize fills defaults (auto mode, generated session id) without
// touching caller-provided values.
func (r OrchestrationRequest) Normalize() OrchestrationRequest {
	if r.Mode == "" {
		r.Mode = ModeAuto
	}
	if r.SessionID == "" {
		r.SessionID = NewID()
	}
	return r
}

// NewID generates a unique identifier for sessions, invocations and tool calls.
func NewID() string { return uuid.NewString() }
