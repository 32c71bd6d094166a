// Package tool implements the function / tool calling subsystem that lets agents
// invoke structured capabilities (note authoring, knowledge search, side-effects)
// with schema validated arguments, consistent error handling and per-call
// timeouts. Tools are registered once at startup and scoped to the agent roles
// allowed to invoke them.
package tool

import (
	"context"
	"fmt"

	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/internal/util"
	"github.com/AdamTheFirstGitman/scribe/logging"
)

// Error codes carried by ToolError. Custom codes returned by tool
// implementations are preserved.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeTimeout    = "TIMEOUT"
	CodeForbidden  = "FORBIDDEN"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the model to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and model function calling.
	Parameters() map[string]any

	// Call executes the tool with structured arguments and a Context.
	// Arguments are parsed from JSON and validated against the tool's schema
	// before Call is invoked.
	Call(toolCtx *Context, args map[string]any) (any, error)
}

// WebSearcher performs an external web search and returns normalized snippets.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]core.Snippet, error)
}

// Deps bundles the collaborators builtin tools draw on. A nil field makes the
// corresponding tools fail with EXECUTION_ERROR when invoked.
type Deps struct {
	Notes     core.NoteStore
	Retriever core.Retriever
	Web       WebSearcher
}

// Context provides a constrained, auditable surface for tool implementations
// invoked by an agent. It carries the invocation identity plus access to the
// stores the builtin tools operate on.
type Context struct {
	ctx       context.Context
	callID    string
	agent     string
	sessionID string
	logger    logging.Logger
	deps      Deps
}

// NewContext constructs a tool context bound to one function call.
func NewContext(ctx context.Context, callID, agent, sessionID string, logger logging.Logger, deps Deps) *Context {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Context{
		ctx:       ctx,
		callID:    callID,
		agent:     agent,
		sessionID: sessionID,
		logger:    logger,
		deps:      deps,
	}
}

// Context returns the context associated with the tool invocation.
func (tc *Context) Context() context.Context { return tc.ctx }

// CallID returns the function call ID correlating model request and tool execution.
func (tc *Context) CallID() string { return tc.callID }

// Agent returns the role of the agent performing the invocation.
func (tc *Context) Agent() string { return tc.agent }

// SessionID returns the session ID associated with the tool invocation.
func (tc *Context) SessionID() string { return tc.sessionID }

// Logger returns the logger associated with the tool invocation.
func (tc *Context) Logger() logging.Logger { return tc.logger }

// Notes returns the note store, or nil when not configured.
func (tc *Context) Notes() core.NoteStore { return tc.deps.Notes }

// Retriever returns the knowledge retriever, or nil when not configured.
func (tc *Context) Retriever() core.Retriever { return tc.deps.Retriever }

// Web returns the web searcher, or nil when not configured.
func (tc *Context) Web() WebSearcher { return tc.deps.Web }

// withContext derives a tool context sharing identity but bound to a new ctx.
func (tc *Context) withContext(ctx context.Context) *Context {
	clone := *tc
	clone.ctx = ctx
	return &clone
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
