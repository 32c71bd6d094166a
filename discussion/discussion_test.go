package discussion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdamTheFirstGitman/scribe/agent"
	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/model"
	"github.com/AdamTheFirstGitman/scribe/tool"
)

type collector struct {
	events []core.StreamEvent
}

func (c *collector) Emit(ev core.StreamEvent) bool {
	c.events = append(c.events, ev)
	return true
}

func (c *collector) ofType(t core.EventType) []core.StreamEvent {
	var out []core.StreamEvent
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newState() *core.AgentState {
	return core.NewAgentState(core.OrchestrationRequest{InputText: "topic", SessionID: "sess_1", Mode: core.ModeDiscussion})
}

func newAgents(plumeModel, mimirModel model.Model) (*agent.Agent, *agent.Agent) {
	registry := tool.NewRegistry()
	p := agent.NewPlume(plumeModel, registry, tool.Deps{})
	m := agent.NewMimir(mimirModel, registry, tool.Deps{})
	return p, m
}

func TestRun_RoundRobinAlternation(t *testing.T) {
	plumeModel := model.NewMockModel("p")
	plumeModel.QueueText("plume turn 1")
	plumeModel.QueueText("plume turn 2")
	mimirModel := model.NewMockModel("m")
	mimirModel.QueueText("mimir turn 1")
	mimirModel.QueueText("mimir turn 2")

	p, m := newAgents(plumeModel, mimirModel)
	e := NewEngine(p, m, WithMaxTurns(4))
	state := newState()
	sink := &collector{}

	outcome, err := e.Run(context.Background(), state, agent.Input{UserText: "topic"}, sink)
	require.NoError(t, err)

	require.Len(t, outcome.Transcript, 4)
	roles := []string{}
	for _, turn := range outcome.Transcript {
		roles = append(roles, turn.Agent)
	}
	assert.Equal(t, []string{core.RolePlume, core.RoleMimir, core.RolePlume, core.RoleMimir}, roles)
	assert.Equal(t, "mimir turn 2", outcome.FinalAnswer)
	assert.False(t, outcome.Degraded)

	// State transcript mirrors the outcome, and both agents are involved.
	assert.Equal(t, outcome.Transcript, state.DiscussionHistory)
	assert.ElementsMatch(t, []string{core.RolePlume, core.RoleMimir}, state.AgentsInvolved)

	// One agent_message per turn, in order.
	messages := sink.ofType(core.EventAgentMessage)
	require.Len(t, messages, 4)
	assert.Equal(t, core.RolePlume, messages[0].Agent)
	assert.Equal(t, core.RoleMimir, messages[1].Agent)
}

func TestRun_MaxTurnsCeiling(t *testing.T) {
	plumeModel := model.NewMockModel("p")
	mimirModel := model.NewMockModel("m")
	// Echo fallback keeps producing content forever; the ceiling must stop it.
	p, m := newAgents(plumeModel, mimirModel)

	e := NewEngine(p, m, WithMaxTurns(3))
	outcome, err := e.Run(context.Background(), newState(), agent.Input{UserText: "topic"}, &collector{})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(outcome.Transcript), 3)
	assert.Len(t, outcome.Transcript, 3)
}

func TestRun_ZeroMaxTurns(t *testing.T) {
	p, m := newAgents(model.NewMockModel("p"), model.NewMockModel("m"))
	e := NewEngine(p, m, WithMaxTurns(0))

	outcome, err := e.Run(context.Background(), newState(), agent.Input{UserText: "topic"}, &collector{})
	require.NoError(t, err)
	assert.Empty(t, outcome.Transcript)
	assert.Equal(t, FallbackAnswer, outcome.FinalAnswer)
}

func TestRun_TerminationToken(t *testing.T) {
	plumeModel := model.NewMockModel("p")
	plumeModel.QueueText("opening thoughts")
	mimirModel := model.NewMockModel("m")
	mimirModel.QueueText("settled: the answer is 42 " + TerminationToken)

	p, m := newAgents(plumeModel, mimirModel)
	e := NewEngine(p, m, WithMaxTurns(6))

	outcome, err := e.Run(context.Background(), newState(), agent.Input{UserText: "topic"}, &collector{})
	require.NoError(t, err)
	require.Len(t, outcome.Transcript, 2)
	// Token is stripped from the stored turn and the final answer.
	assert.NotContains(t, outcome.Transcript[1].Content, TerminationToken)
	assert.Equal(t, "settled: the answer is 42", outcome.FinalAnswer)
}

func TestRun_StallGuard(t *testing.T) {
	plumeModel := model.NewMockModel("p")
	mimirModel := model.NewMockModel("m")
	for i := 0; i < 4; i++ {
		plumeModel.QueueText("same point")
		mimirModel.QueueText("same point")
	}

	p, m := newAgents(plumeModel, mimirModel)
	e := NewEngine(p, m, WithMaxTurns(8), WithStallGuard(2))

	outcome, err := e.Run(context.Background(), newState(), agent.Input{UserText: "topic"}, &collector{})
	require.NoError(t, err)
	assert.Less(t, len(outcome.Transcript), 8)
}

func TestRun_StallGuardComparesSameAgent(t *testing.T) {
	// Each agent repeats its own previous turn while the two agents keep
	// saying different things. The guard tracks per-agent repetition, so
	// this still counts as a stall.
	plumeModel := model.NewMockModel("p")
	mimirModel := model.NewMockModel("m")
	for i := 0; i < 4; i++ {
		plumeModel.QueueText("point A")
		mimirModel.QueueText("point B")
	}

	p, m := newAgents(plumeModel, mimirModel)
	e := NewEngine(p, m, WithMaxTurns(8), WithStallGuard(2))

	outcome, err := e.Run(context.Background(), newState(), agent.Input{UserText: "topic"}, &collector{})
	require.NoError(t, err)
	assert.Len(t, outcome.Transcript, 4)
}

func TestRun_ToolFailureDoesNotAbortDiscussion(t *testing.T) {
	registry := tool.NewRegistry()
	flaky := tool.NewFunctionTool("flaky", "Fails on call", map[string]any{"type": "object"},
		func(tc *tool.Context, args map[string]any) (any, error) {
			return nil, errors.New("timed out upstream")
		},
	)
	require.NoError(t, registry.Register(flaky, core.RoleMimir))

	plumeModel := model.NewMockModel("p")
	plumeModel.QueueText("plume opening")
	mimirModel := model.NewMockModel("m")
	mimirModel.QueueToolCall("fc_1", "flaky", map[string]any{})
	mimirModel.QueueText("despite the tool failure, here is what I know " + TerminationToken)

	p := agent.NewPlume(plumeModel, registry, tool.Deps{})
	m := agent.NewMimir(mimirModel, registry, tool.Deps{})
	e := NewEngine(p, m, WithMaxTurns(4))
	state := newState()
	sink := &collector{}

	outcome, err := e.Run(context.Background(), state, agent.Input{UserText: "topic"}, sink)
	require.NoError(t, err)
	require.Len(t, outcome.Transcript, 2)

	starts := sink.ofType(core.EventToolStart)
	completes := sink.ofType(core.EventToolComplete)
	require.Len(t, starts, 1)
	require.Len(t, completes, 1)
	outcome2, ok := completes[0].Result.(*core.ToolOutcome)
	require.True(t, ok)
	assert.False(t, outcome2.Success)

	// The turn that owned the failed call still completed.
	assert.Contains(t, outcome.FinalAnswer, "despite the tool failure")
}

func TestRun_DegradedFallback(t *testing.T) {
	plumeModel := model.NewMockModel("p")
	plumeModel.QueueText("draft answer")
	mimirModel := model.NewMockModel("m")
	mimirModel.QueueText("reviewed answer")

	p, m := newAgents(plumeModel, mimirModel)
	e := NewEngine(p, m, WithProbe(func(context.Context) error {
		return model.ErrUnavailable
	}))
	state := newState()
	sink := &collector{}

	outcome, err := e.Run(context.Background(), state, agent.Input{UserText: "topic"}, sink)
	require.NoError(t, err)
	assert.True(t, outcome.Degraded)
	require.Len(t, outcome.Transcript, 2)
	assert.Equal(t, core.RolePlume, outcome.Transcript[0].Agent)
	assert.Equal(t, core.RoleMimir, outcome.Transcript[1].Agent)
	assert.Equal(t, "reviewed answer", outcome.FinalAnswer)

	// Same event vocabulary as the full protocol.
	assert.Len(t, sink.ofType(core.EventAgentMessage), 2)
	assert.Len(t, sink.ofType(core.EventAgentAction), 4)
}

func TestRun_CancellationStopsAtTurnBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	plumeModel := model.NewMockModel("p")
	plumeModel.QueueText("first turn")
	p, m := newAgents(plumeModel, model.NewMockModel("m"))

	// Cancel after the first turn by hooking the emitter.
	sink := &cancellingEmitter{cancel: cancel}
	e := NewEngine(p, m, WithMaxTurns(6))

	_, err := e.Run(ctx, newState(), agent.Input{UserText: "topic"}, sink)
	assert.ErrorIs(t, err, context.Canceled)
	// Only the first turn's message went out; no further turns ran.
	assert.Equal(t, 1, sink.messages)
}

type cancellingEmitter struct {
	cancel   context.CancelFunc
	messages int
}

func (c *cancellingEmitter) Emit(ev core.StreamEvent) bool {
	if ev.Type == core.EventAgentMessage {
		c.messages++
		c.cancel()
	}
	return true
}

func TestFinalAnswer(t *testing.T) {
	// Last non-empty turn wins.
	transcript := []core.DiscussionTurn{
		{Agent: core.RolePlume, Content: "a real answer"},
		{Agent: core.RoleMimir, Content: "   "},
	}
	assert.Equal(t, "a real answer", finalAnswer(transcript))

	// A short tool acknowledgment with tool calls is skipped.
	transcript = []core.DiscussionTurn{
		{Agent: core.RolePlume, Content: "the substantive conclusion"},
		{Agent: core.RoleMimir, Content: "calling search_knowledge now", ToolCalls: []string{"fc_1"}},
	}
	assert.Equal(t, "the substantive conclusion", finalAnswer(transcript))

	// Nothing qualifies: synthesized fallback.
	assert.Equal(t, FallbackAnswer, finalAnswer(nil))
}

func TestRun_AgentErrorPropagates(t *testing.T) {
	plumeModel := model.NewMockModel("p")
	plumeModel.FailWith(errors.New("boom"))
	p, m := newAgents(plumeModel, model.NewMockModel("m"))

	_, err := NewEngine(p, m).Run(context.Background(), newState(), agent.Input{UserText: "topic"}, &collector{})
	var agentErr *core.AgentExecutionError
	require.ErrorAs(t, err, &agentErr)
}
