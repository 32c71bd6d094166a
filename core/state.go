package core

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// StateVersion is stamped into serialized AgentStates so future schema
// changes can be detected on checkpoint load.
const StateVersion = 1

// RoutingDecision is the single routing outcome of a request.
type RoutingDecision struct {
	Target string `json:"target"` // TargetPlume | TargetMimir | TargetDiscussion
	Reason string `json:"reason"`
}

// ToolCallStatus tracks the lifecycle of a ToolCall record.
type ToolCallStatus string

const (
	// ToolCallRunning marks a tool call that has started but not resolved.
	ToolCallRunning ToolCallStatus = "running"
	// ToolCallCompleted marks a successfully resolved tool call.
	ToolCallCompleted ToolCallStatus = "completed"
	// ToolCallFailed marks a tool call that resolved with an error.
	ToolCallFailed ToolCallStatus = "failed"
)

// ToolOutcome is the resolved result of a tool invocation.
type ToolOutcome struct {
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ToolCall records one tool invocation by an agent. Exactly one record is
// created per invocation; the terminal transition running -> completed|failed
// happens at most once and the record is never re-opened.
type ToolCall struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Agent     string         `json:"agent"`
	Params    map[string]any `json:"params,omitempty"`
	Result    *ToolOutcome   `json:"result,omitempty"`
	Status    ToolCallStatus `json:"status"`
	StartTime time.Time      `json:"start_time"`
	EndTime   *time.Time     `json:"end_time,omitempty"`
}

// NewToolCall creates a running ToolCall record.
func NewToolCall(agent, tool string, params map[string]any) *ToolCall {
	return &ToolCall{
		ID:        NewID(),
		Tool:      tool,
		Agent:     agent,
		Params:    params,
		Status:    ToolCallRunning,
		StartTime: time.Now().UTC(),
	}
}

// Complete transitions the record to completed with a success payload.
// It errors if the record already reached a terminal state.
func (tc *ToolCall) Complete(payload any) error {
	return tc.finish(ToolCallCompleted, &ToolOutcome{Success: true, Payload: payload})
}

// Fail transitions the record to failed with an error message.
func (tc *ToolCall) Fail(errMsg string) error {
	return tc.finish(ToolCallFailed, &ToolOutcome{Success: false, Error: errMsg})
}

func (tc *ToolCall) finish(status ToolCallStatus, outcome *ToolOutcome) error {
	if tc.Status != ToolCallRunning {
		return fmt.Errorf("tool call %s already %s", tc.ID, tc.Status)
	}
	now := time.Now().UTC()
	tc.Status = status
	tc.Result = outcome
	tc.EndTime = &now
	return nil
}

// Terminal reports whether the record reached completed or failed.
func (tc *ToolCall) Terminal() bool { return tc.Status != ToolCallRunning }

// DiscussionTurn is one agent turn in a discussion transcript. Immutable
// once appended; the transcript itself is append-only.
type DiscussionTurn struct {
	Agent     string    `json:"agent"`
	Content   string    `json:"content"`
	ToolCalls []string  `json:"tool_calls,omitempty"` // ToolCall ids produced during the turn
	Timestamp time.Time `json:"timestamp"`
}

// NewDiscussionTurn creates a timestamped turn record.
func NewDiscussionTurn(agent, content string, toolCallIDs []string) DiscussionTurn {
	return DiscussionTurn{
		Agent:     agent,
		Content:   content,
		ToolCalls: toolCallIDs,
		Timestamp: time.Now().UTC(),
	}
}

// Snippet is one retrieved context item (note fragment, memory hit, web
// result) merged into AgentState.Context.
type Snippet struct {
	ID       string         `json:"id,omitempty"`
	Source   string         `json:"source,omitempty"` // "note", "memory", "web"
	Content  string         `json:"content"`
	Score    float64        `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ClickableObject is a reference surfaced by an agent (typically a note it
// created or retrieved) that a caller UI can link to.
type ClickableObject struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// AgentState is the single mutable record threaded through every workflow
// stage of one request. It is owned exclusively by the workflow instance
// processing that request, never shared across requests, and discarded
// after FINALIZE (optionally serialized to a checkpoint store between
// stages; see Marshal/UnmarshalState).
type AgentState struct {
	Version        int    `json:"version"`
	SessionID      string `json:"session_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`

	InputText string `json:"input_text"`
	Mode      Mode   `json:"mode"`

	Routing       *RoutingDecision `json:"routing,omitempty"`
	RoutingReason string           `json:"routing_reason,omitempty"`

	AgentUsed      string   `json:"agent_used,omitempty"`
	AgentsInvolved []string `json:"agents_involved,omitempty"`

	Context           []Snippet        `json:"context,omitempty"`
	DiscussionHistory []DiscussionTurn `json:"discussion_history,omitempty"`
	ToolCalls         []*ToolCall      `json:"tool_calls,omitempty"`

	TokensUsed int     `json:"tokens_used"`
	Cost       float64 `json:"cost"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	FinalOutput string    `json:"final_output,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// NewAgentState initializes the state record for a request.
func NewAgentState(req OrchestrationRequest) *AgentState {
	return &AgentState{
		Version:        StateVersion,
		SessionID:      req.SessionID,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		InputText:      req.InputText,
		Mode:           req.Mode,
		StartedAt:      time.Now().UTC(),
	}
}

// InvolveAgent records an agent as a participant, preserving first-seen
// order and ignoring duplicates.
func (s *AgentState) InvolveAgent(role string) {
	if !slices.Contains(s.AgentsInvolved, role) {
		s.AgentsInvolved = append(s.AgentsInvolved, role)
	}
}

// AddWarning appends a non-fatal warning.
func (s *AgentState) AddWarning(w string) { s.Warnings = append(s.Warnings, w) }

// AddError appends an error description without aborting the flow; fatal
// handling is the workflow's decision.
func (s *AgentState) AddError(e string) { s.Errors = append(s.Errors, e) }

// AddToolCall appends a tool call record and returns it for mutation by the
// invoking stage.
func (s *AgentState) AddToolCall(tc *ToolCall) *ToolCall {
	s.ToolCalls = append(s.ToolCalls, tc)
	return tc
}

// AppendTurn appends an immutable discussion turn.
func (s *AgentState) AppendTurn(t DiscussionTurn) {
	s.DiscussionHistory = append(s.DiscussionHistory, t)
}

// RunningToolCalls returns records not yet in a terminal state. Stages must
// leave this empty before returning.
func (s *AgentState) RunningToolCalls() []*ToolCall {
	var running []*ToolCall
	for _, tc := range s.ToolCalls {
		if !tc.Terminal() {
			running = append(running, tc)
		}
	}
	return running
}

// ClickableObjects extracts note references surfaced by successful tool
// calls for the final payload.
func (s *AgentState) ClickableObjects() []ClickableObject {
	var objs []ClickableObject
	seen := map[string]bool{}
	for _, tc := range s.ToolCalls {
		if tc.Result == nil || !tc.Result.Success {
			continue
		}
		m, ok := tc.Result.Payload.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["note_id"].(string)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		title, _ := m["title"].(string)
		objs = append(objs, ClickableObject{Type: "note", ID: id, Title: title})
	}
	return objs
}

// Marshal serializes the state for checkpointing.
func (s *AgentState) Marshal() ([]byte, error) { return json.Marshal(s) }

// UnmarshalState restores a checkpointed state, rejecting unknown versions.
func UnmarshalState(data []byte) (*AgentState, error) {
	var s AgentState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode agent state: %w", err)
	}
	if s.Version != StateVersion {
		return nil, fmt.Errorf("unsupported agent state version %d", s.Version)
	}
	return &s, nil
}
