package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrUnavailable signals that the model runtime cannot be reached at all
// (as opposed to a single failed call). The discussion engine uses it to
// switch into its degraded two-step exchange.
var ErrUnavailable = errors.New("model runtime unavailable")

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem carries instructions (handled separately by some vendors).
	RoleSystem Role = "system"
	// RoleUser is caller-authored input.
	RoleUser Role = "user"
	// RoleAssistant is model-authored output, possibly containing tool calls.
	RoleAssistant Role = "assistant"
	// RoleTool carries a tool result back to the model.
	RoleTool Role = "tool"
)

// ToolCall is a function invocation request surfaced by a model provider,
// unified across vendors so downstream logic needs no per-provider branching.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"` // JSON object of arguments
}

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (minimal subset).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Message is one normalized conversation message. For RoleAssistant,
// ToolCalls holds call requests emitted alongside (or instead of) text.
// For RoleTool, ToolCallID/ToolName identify the call being answered.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// TokenUsage captures token statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is the normalized model input produced by agents.
type Request struct {
	Instructions string           `json:"instructions"`
	Messages     []Message        `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// Response is the complete result of one Generate call. A response with
// ToolCalls expects the caller to execute them and call Generate again with
// the tool results appended.
type Response struct {
	Text         string     `json:"text,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"` // "stop", "length", "tool_calls", ...
	Usage        TokenUsage `json:"usage"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required to drive an agent turn.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a scriptable in-memory Model for tests and local runs.
// Responses are consumed in FIFO order; when the script is exhausted it
// echoes the last user message.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	script   []*Response
	requests []Request
	failWith error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// QueueText scripts a plain text response.
func (m *MockModel) QueueText(text string) *MockModel {
	return m.Queue(&Response{Text: text, FinishReason: "stop", Usage: TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}})
}

// QueueToolCall scripts a response requesting one tool invocation.
func (m *MockModel) QueueToolCall(id, name string, args map[string]any) *MockModel {
	raw, _ := json.Marshal(args)
	return m.Queue(&Response{
		ToolCalls:    []ToolCall{{ID: id, Name: name, Arguments: raw}},
		FinishReason: "tool_calls",
		Usage:        TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	})
}

// Queue scripts an arbitrary response.
func (m *MockModel) Queue(resp *Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, resp)
	return m
}

// FailWith makes every subsequent Generate call return err.
func (m *MockModel) FailWith(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
	return m
}

// Requests returns every request seen so far, in order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.failWith != nil {
		return nil, m.failWith
	}
	if len(m.script) > 0 {
		resp := m.script[0]
		m.script = m.script[1:]
		return resp, nil
	}
	var last string
	for _, msg := range req.Messages {
		if msg.Role == RoleUser {
			last = msg.Content
		}
	}
	return &Response{
		Text:         fmt.Sprintf("Mock response to: %s", last),
		FinishReason: "stop",
		Usage:        TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
