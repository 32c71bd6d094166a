// Package agent implements the two tool-using agents: Plume, the restitution
// and writing agent, and Mimir, the archivist and research agent. An agent
// turns one prompt (plus retrieved context and any running discussion
// transcript) into a textual answer, autonomously invoking tools from its
// allowed set along the way. Tool failures are contained: a failed call is
// reported back to the model and the turn continues.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/internal/util"
	"github.com/AdamTheFirstGitman/scribe/logging"
	"github.com/AdamTheFirstGitman/scribe/model"
	"github.com/AdamTheFirstGitman/scribe/tool"
)

// DefaultMaxToolRounds bounds how many model/tool iterations one Respond call
// may take. The ceiling exists so a model stuck requesting tools cannot loop
// forever.
const DefaultMaxToolRounds = 5

// Emitter receives stream events the moment the corresponding state mutation
// happens. stream.Channel satisfies it; tests use a slice-backed fake.
type Emitter interface {
	Emit(ev core.StreamEvent) bool
}

// Input carries everything an agent needs for one turn.
type Input struct {
	SessionID string
	UserText  string
	Context   []core.Snippet
	// Transcript holds prior discussion turns, oldest first. Empty for the
	// single-agent path.
	Transcript []core.DiscussionTurn
}

// Result is the outcome of one Respond call.
type Result struct {
	Content     string
	ToolCallIDs []string
	Usage       model.TokenUsage
}

// Options configure an Agent.
type Options struct {
	MaxToolRounds int
	Logger        logging.Logger
}

// Agent binds a role to a model, its allowed tool set and its instructions.
// Agents are stateless between calls and safe for concurrent use; everything
// request-scoped lives in Input and AgentState.
type Agent struct {
	role          string
	instructions  string
	model         model.Model
	registry      *tool.Registry
	deps          tool.Deps
	maxToolRounds int
	logger        logging.Logger
}

// New creates an agent for the given role. Instructions are a template
// receiving the formatted context block.
func New(role, instructions string, m model.Model, registry *tool.Registry, deps tool.Deps, optFns ...func(o *Options)) *Agent {
	opts := Options{
		MaxToolRounds: DefaultMaxToolRounds,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Agent{
		role:          role,
		instructions:  instructions,
		model:         m,
		registry:      registry,
		deps:          deps,
		maxToolRounds: opts.MaxToolRounds,
		logger:        opts.Logger,
	}
}

// NewPlume creates the restitution agent with its standard instructions.
func NewPlume(m model.Model, registry *tool.Registry, deps tool.Deps, optFns ...func(o *Options)) *Agent {
	return New(core.RolePlume, plumeInstructions, m, registry, deps, optFns...)
}

// NewMimir creates the archivist agent with its standard instructions.
func NewMimir(m model.Model, registry *tool.Registry, deps tool.Deps, optFns ...func(o *Options)) *Agent {
	return New(core.RoleMimir, mimirInstructions, m, registry, deps, optFns...)
}

// Role returns the agent's role name.
func (a *Agent) Role() string { return a.role }

// ModelInfo describes the backing model, used for cost accounting.
func (a *Agent) ModelInfo() model.Info { return a.model.Info() }

// Respond runs one agent turn: prompt the model, execute any requested tool
// calls sequentially (emitting tool_start / tool_complete around each), feed
// results back, and repeat until the model answers in text or the round
// ceiling is hit. Tool call records are appended to state as they run so the
// live stream and the final state never diverge.
func (a *Agent) Respond(ctx context.Context, state *core.AgentState, in Input, emit Emitter) (*Result, error) {
	instructions, err := a.renderInstructions(in.Context)
	if err != nil {
		return nil, &core.AgentExecutionError{Agent: a.role, Err: err}
	}

	messages := a.buildMessages(in)
	result := &Result{}

	for round := 0; round <= a.maxToolRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := a.model.Generate(ctx, model.Request{
			Instructions: instructions,
			Messages:     messages,
			Tools:        a.registry.DefinitionsFor(a.role),
		})
		if err != nil {
			return nil, &core.AgentExecutionError{Agent: a.role, Err: err}
		}
		result.Usage.PromptTokens += resp.Usage.PromptTokens
		result.Usage.CompletionTokens += resp.Usage.CompletionTokens
		result.Usage.TotalTokens += resp.Usage.TotalTokens

		if len(resp.ToolCalls) == 0 {
			result.Content = resp.Text
			return result, nil
		}

		messages = append(messages, model.Message{
			Role:      model.RoleAssistant,
			Content:   resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			toolMsg := a.executeToolCall(ctx, state, call, emit, result)
			messages = append(messages, toolMsg)
		}
	}

	a.logger.Warn("agent.tool_rounds_exhausted", "agent", a.role, "rounds", a.maxToolRounds)
	result.Content = "I could not finish the requested tool work within the allowed number of steps."
	return result, nil
}

// executeToolCall runs one requested tool call end to end: record it on
// state, emit tool_start, invoke through the registry, mark the record
// terminal, emit tool_complete, and return the tool message fed back to the
// model. Failures never abort the turn.
func (a *Agent) executeToolCall(
	ctx context.Context,
	state *core.AgentState,
	call model.ToolCall,
	emit Emitter,
	result *Result,
) model.Message {
	args := map[string]any{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			a.logger.Warn("agent.tool_args_invalid", "agent", a.role, "tool", call.Name, "error", err.Error())
			args = map[string]any{}
		}
	}

	record := core.NewToolCall(a.role, call.Name, args)
	if call.ID != "" {
		record.ID = call.ID
	}
	state.AddToolCall(record)
	result.ToolCallIDs = append(result.ToolCallIDs, record.ID)

	emit.Emit(core.NewToolStartEvent(a.role, call.Name, args))

	toolCtx := tool.NewContext(ctx, record.ID, a.role, state.SessionID, a.logger, a.deps)
	payload, err := a.registry.Invoke(toolCtx, call.Name, args)

	var content string
	if err != nil {
		_ = record.Fail(err.Error())
		content = fmt.Sprintf(`{"error": %q}`, err.Error())
	} else {
		_ = record.Complete(payload)
		if raw, jsonErr := json.Marshal(payload); jsonErr == nil {
			content = string(raw)
		} else {
			content = fmt.Sprintf("%v", payload)
		}
	}

	emit.Emit(core.NewToolCompleteEvent(a.role, call.Name, record.Result))

	return model.Message{
		Role:       model.RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}
}

// renderInstructions fills the context block of the role instructions.
func (a *Agent) renderInstructions(snippets []core.Snippet) (string, error) {
	contextText := ""
	if len(snippets) > 0 {
		rendered, err := util.RenderTemplate(contextBlock, map[string]any{"Snippets": snippets})
		if err != nil {
			return "", fmt.Errorf("render context block: %w", err)
		}
		contextText = rendered
	}
	return util.RenderTemplate(a.instructions, map[string]any{"Context": contextText})
}

// buildMessages lays out the conversation for the model: the user prompt
// opens the exchange, followed by prior discussion turns (own turns as
// assistant, the peer's labeled as user).
func (a *Agent) buildMessages(in Input) []model.Message {
	var messages []model.Message
	if in.UserText != "" {
		messages = append(messages, model.Message{Role: model.RoleUser, Content: in.UserText})
	}
	for _, turn := range in.Transcript {
		if turn.Agent == a.role {
			messages = append(messages, model.Message{Role: model.RoleAssistant, Content: turn.Content})
			continue
		}
		messages = append(messages, model.Message{
			Role:    model.RoleUser,
			Content: fmt.Sprintf("%s: %s", turn.Agent, turn.Content),
		})
	}
	return messages
}
