package core

import "time"

// EventType discriminates StreamEvents on the wire.
type EventType string

const (
	// EventStart is emitted once, immediately after the stream opens.
	EventStart EventType = "start"
	// EventProcessing brackets each workflow stage (status started/completed).
	EventProcessing EventType = "processing"
	// EventToolStart is emitted when an agent invokes a tool.
	EventToolStart EventType = "tool_start"
	// EventToolComplete is emitted when a tool call resolves.
	EventToolComplete EventType = "tool_complete"
	// EventAgentMessage carries agent-produced text (solo answer or turn).
	EventAgentMessage EventType = "agent_message"
	// EventAgentAction is a UI-facing label for a non-textual action.
	EventAgentAction EventType = "agent_action"
	// EventComplete is the successful terminal event.
	EventComplete EventType = "complete"
	// EventError is the failure terminal event.
	EventError EventType = "error"
	// EventKeepalive is a periodic synthetic frame carrying no data.
	EventKeepalive EventType = "keepalive"
)

// Stage status labels used by processing events.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
)

// FinalResult is the payload of the complete event.
type FinalResult struct {
	Response         string            `json:"response"`
	AgentUsed        string            `json:"agent_used"`
	AgentsInvolved   []string          `json:"agents_involved"`
	TokensUsed       int               `json:"tokens_used"`
	Cost             float64           `json:"cost"`
	ClickableObjects []ClickableObject `json:"clickable_objects,omitempty"`
	ProcessingMS     int64             `json:"processing_ms"`
	Warnings         []string          `json:"warnings,omitempty"`
}

// StreamEvent is the discriminated unit pushed to clients. It is immutable
// once enqueued and delivered exactly once, in enqueue order. The Result
// field holds a *ToolOutcome for tool_complete events and a *FinalResult for
// complete events; constructors are the only intended way to build events.
type StreamEvent struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	Node      string         `json:"node,omitempty"`
	Status    string         `json:"status,omitempty"`
	Agent     string         `json:"agent,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Content   string         `json:"content,omitempty"`
	Action    string         `json:"action,omitempty"`
	Error     string         `json:"error,omitempty"`
	Result    any            `json:"result,omitempty"`
}

// Terminal reports whether the event closes the logical stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

func newEvent(t EventType) StreamEvent {
	return StreamEvent{Type: t, Timestamp: time.Now().UTC()}
}

// NewStartEvent opens a stream for a session.
func NewStartEvent(sessionID string) StreamEvent {
	e := newEvent(EventStart)
	e.SessionID = sessionID
	return e
}

// NewProcessingEvent brackets a workflow stage transition.
func NewProcessingEvent(node, status string) StreamEvent {
	e := newEvent(EventProcessing)
	e.Node = node
	e.Status = status
	return e
}

// NewToolStartEvent announces a tool invocation by an agent.
func NewToolStartEvent(agent, tool string, params map[string]any) StreamEvent {
	e := newEvent(EventToolStart)
	e.Agent = agent
	e.Tool = tool
	e.Params = params
	return e
}

// NewToolCompleteEvent reports a resolved tool call.
func NewToolCompleteEvent(agent, tool string, outcome *ToolOutcome) StreamEvent {
	e := newEvent(EventToolComplete)
	e.Agent = agent
	e.Tool = tool
	e.Result = outcome
	return e
}

// NewAgentMessageEvent carries agent-produced text.
func NewAgentMessageEvent(agent, content string) StreamEvent {
	e := newEvent(EventAgentMessage)
	e.Agent = agent
	e.Content = content
	return e
}

// NewAgentActionEvent carries a UI-facing action label.
func NewAgentActionEvent(agent, action, status string) StreamEvent {
	e := newEvent(EventAgentAction)
	e.Agent = agent
	e.Action = action
	e.Status = status
	return e
}

// NewCompleteEvent is the successful terminal event.
func NewCompleteEvent(result *FinalResult) StreamEvent {
	e := newEvent(EventComplete)
	e.Result = result
	return e
}

// NewErrorEvent is the failure terminal event. node names the stage that
// failed when known.
func NewErrorEvent(node, errMsg string) StreamEvent {
	e := newEvent(EventError)
	e.Node = node
	e.Error = errMsg
	return e
}

// NewKeepaliveEvent is a synthetic idle-connection frame.
func NewKeepaliveEvent() StreamEvent { return newEvent(EventKeepalive) }
