package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/model"
	"github.com/AdamTheFirstGitman/scribe/tool"
)

// collector is a slice-backed Emitter for assertions.
type collector struct {
	events []core.StreamEvent
}

func (c *collector) Emit(ev core.StreamEvent) bool {
	c.events = append(c.events, ev)
	return true
}

func (c *collector) types() []core.EventType {
	out := make([]core.EventType, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

func newState(text string) *core.AgentState {
	return core.NewAgentState(core.OrchestrationRequest{InputText: text, SessionID: "sess_1", Mode: core.ModeAuto})
}

func echoRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	echo := tool.NewFunctionTool("echo", "Echo the input",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		func(tc *tool.Context, args map[string]any) (any, error) {
			return map[string]any{"echo": args["text"]}, nil
		},
	)
	require.NoError(t, r.Register(echo, core.RoleMimir))

	failing := tool.NewFunctionTool("failing", "Always fails", map[string]any{"type": "object"},
		func(tc *tool.Context, args map[string]any) (any, error) {
			return nil, errors.New("backend down")
		},
	)
	require.NoError(t, r.Register(failing, core.RoleMimir))
	return r
}

func TestRespond_PlainText(t *testing.T) {
	mock := model.NewMockModel("m")
	mock.QueueText("here you go")

	a := New(core.RoleMimir, mimirInstructions, mock, tool.NewRegistry(), tool.Deps{})
	state := newState("hello")
	sink := &collector{}

	result, err := a.Respond(context.Background(), state, Input{UserText: "hello"}, sink)
	require.NoError(t, err)
	assert.Equal(t, "here you go", result.Content)
	assert.Empty(t, result.ToolCallIDs)
	assert.Empty(t, sink.events)
}

func TestRespond_ToolLoop(t *testing.T) {
	mock := model.NewMockModel("m")
	mock.QueueToolCall("fc_1", "echo", map[string]any{"text": "ping"})
	mock.QueueText("the echo said ping")

	a := New(core.RoleMimir, mimirInstructions, mock, echoRegistry(t), tool.Deps{})
	state := newState("echo ping")
	sink := &collector{}

	result, err := a.Respond(context.Background(), state, Input{UserText: "echo ping"}, sink)
	require.NoError(t, err)
	assert.Equal(t, "the echo said ping", result.Content)
	require.Len(t, result.ToolCallIDs, 1)
	assert.Equal(t, []core.EventType{core.EventToolStart, core.EventToolComplete}, sink.types())

	// The record on state is terminal and successful.
	require.Len(t, state.ToolCalls, 1)
	record := state.ToolCalls[0]
	assert.Equal(t, "fc_1", record.ID)
	assert.Equal(t, core.ToolCallCompleted, record.Status)
	require.NotNil(t, record.Result)
	assert.True(t, record.Result.Success)
	assert.Empty(t, state.RunningToolCalls())

	// The second model call received the tool result.
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	last := reqs[1].Messages[len(reqs[1].Messages)-1]
	assert.Equal(t, model.RoleTool, last.Role)
	assert.Contains(t, last.Content, "ping")
}

func TestRespond_ToolFailureContained(t *testing.T) {
	mock := model.NewMockModel("m")
	mock.QueueToolCall("fc_1", "failing", map[string]any{})
	mock.QueueText("I could not reach the backend")

	a := New(core.RoleMimir, mimirInstructions, mock, echoRegistry(t), tool.Deps{})
	state := newState("try it")
	sink := &collector{}

	result, err := a.Respond(context.Background(), state, Input{UserText: "try it"}, sink)
	require.NoError(t, err)
	assert.Equal(t, "I could not reach the backend", result.Content)

	require.Len(t, state.ToolCalls, 1)
	assert.Equal(t, core.ToolCallFailed, state.ToolCalls[0].Status)
	require.NotNil(t, state.ToolCalls[0].Result)
	assert.False(t, state.ToolCalls[0].Result.Success)

	// tool_complete is still emitted with success=false.
	require.Len(t, sink.events, 2)
	assert.Equal(t, core.EventToolComplete, sink.events[1].Type)
}

func TestRespond_ForbiddenToolContained(t *testing.T) {
	mock := model.NewMockModel("m")
	// Plume asks for a Mimir tool.
	mock.QueueToolCall("fc_1", "echo", map[string]any{"text": "x"})
	mock.QueueText("that tool is not mine")

	a := New(core.RolePlume, plumeInstructions, mock, echoRegistry(t), tool.Deps{})
	state := newState("misuse")

	result, err := a.Respond(context.Background(), state, Input{UserText: "misuse"}, &collector{})
	require.NoError(t, err)
	assert.Equal(t, "that tool is not mine", result.Content)
	require.Len(t, state.ToolCalls, 1)
	assert.Equal(t, core.ToolCallFailed, state.ToolCalls[0].Status)
}

func TestRespond_RoundCeiling(t *testing.T) {
	mock := model.NewMockModel("m")
	for i := 0; i < 10; i++ {
		mock.QueueToolCall("fc", "echo", map[string]any{"text": "again"})
	}

	a := New(core.RoleMimir, mimirInstructions, mock, echoRegistry(t), tool.Deps{},
		func(o *Options) { o.MaxToolRounds = 2 })
	state := newState("loop")

	result, err := a.Respond(context.Background(), state, Input{UserText: "loop"}, &collector{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Content)
	// Three generations ran (initial + 2 rounds), each with one tool call.
	assert.Len(t, mock.Requests(), 3)
}

func TestRespond_ModelError(t *testing.T) {
	mock := model.NewMockModel("m")
	mock.FailWith(errors.New("rate limited"))

	a := New(core.RolePlume, plumeInstructions, mock, tool.NewRegistry(), tool.Deps{})
	_, err := a.Respond(context.Background(), newState("x"), Input{UserText: "x"}, &collector{})

	var agentErr *core.AgentExecutionError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, core.RolePlume, agentErr.Agent)
}

func TestRespond_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := New(core.RolePlume, plumeInstructions, model.NewMockModel("m"), tool.NewRegistry(), tool.Deps{})
	_, err := a.Respond(ctx, newState("x"), Input{UserText: "x"}, &collector{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRespond_TranscriptLayout(t *testing.T) {
	mock := model.NewMockModel("m")
	mock.QueueText("building on that")

	a := New(core.RoleMimir, mimirInstructions, mock, tool.NewRegistry(), tool.Deps{})
	in := Input{
		UserText: "topic",
		Transcript: []core.DiscussionTurn{
			{Agent: core.RolePlume, Content: "first draft"},
			{Agent: core.RoleMimir, Content: "my earlier point"},
		},
	}

	_, err := a.Respond(context.Background(), newState("topic"), in, &collector{})
	require.NoError(t, err)

	msgs := mock.Requests()[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, model.RoleUser, msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "plume:")
	assert.Equal(t, model.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "my earlier point", msgs[2].Content)
}

func TestRespond_ContextSnippetsInInstructions(t *testing.T) {
	mock := model.NewMockModel("m")
	mock.QueueText("answer")

	a := NewMimir(mock, tool.NewRegistry(), tool.Deps{})
	in := Input{
		UserText: "what do my notes say",
		Context:  []core.Snippet{{Source: "note_7", Content: "fermentation takes 8 hours"}},
	}

	_, err := a.Respond(context.Background(), newState("q"), in, &collector{})
	require.NoError(t, err)
	assert.Contains(t, mock.Requests()[0].Instructions, "fermentation takes 8 hours")
	assert.Contains(t, mock.Requests()[0].Instructions, "note_7")
}
