package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolCall_TerminalTransitionOnce(t *testing.T) {
	tc := NewToolCall(RoleMimir, "search_knowledge", map[string]any{"query": "go"})
	assert.Equal(t, ToolCallRunning, tc.Status)
	assert.False(t, tc.Terminal())

	require.NoError(t, tc.Complete(map[string]any{"hits": 2}))
	assert.Equal(t, ToolCallCompleted, tc.Status)
	assert.True(t, tc.Result.Success)
	require.NotNil(t, tc.EndTime)

	// terminal state is set at most once, never re-opened
	assert.Error(t, tc.Complete(nil))
	assert.Error(t, tc.Fail("late failure"))
	assert.Equal(t, ToolCallCompleted, tc.Status)
}

func TestToolCall_Fail(t *testing.T) {
	tc := NewToolCall(RolePlume, "create_note", nil)
	require.NoError(t, tc.Fail("timeout"))
	assert.Equal(t, ToolCallFailed, tc.Status)
	assert.False(t, tc.Result.Success)
	assert.Equal(t, "timeout", tc.Result.Error)
	assert.Error(t, tc.Fail("again"))
}

func TestAgentState_RoundTrip(t *testing.T) {
	req := OrchestrationRequest{
		InputText: "mimir, find my notes", Mode: ModeAuto,
		SessionID: "sess-1", ConversationID: "conv-1", UserID: "u-1",
	}
	s := NewAgentState(req)
	s.Routing = &RoutingDecision{Target: TargetMimir, Reason: "explicit_mention"}
	s.RoutingReason = "explicit_mention"
	s.AgentUsed = RoleMimir
	s.InvolveAgent(RoleMimir)
	s.Context = append(s.Context, Snippet{ID: "n1", Source: "note", Content: "go notes", Score: 0.9})
	s.AppendTurn(DiscussionTurn{Agent: RoleMimir, Content: "found it", Timestamp: time.Now().UTC()})
	tc := s.AddToolCall(NewToolCall(RoleMimir, "search_knowledge", map[string]any{"query": "go"}))
	require.NoError(t, tc.Complete(map[string]any{"note_id": "n1", "title": "Go"}))
	s.TokensUsed = 420
	s.Cost = 0.0042
	s.AddWarning("storage degraded")

	data, err := s.Marshal()
	require.NoError(t, err)

	restored, err := UnmarshalState(data)
	require.NoError(t, err)
	assert.Equal(t, s.SessionID, restored.SessionID)
	assert.Equal(t, s.Routing.Target, restored.Routing.Target)
	assert.Equal(t, s.AgentsInvolved, restored.AgentsInvolved)
	assert.Len(t, restored.ToolCalls, 1)
	assert.Equal(t, ToolCallCompleted, restored.ToolCalls[0].Status)
	assert.Len(t, restored.DiscussionHistory, 1)
	assert.Equal(t, s.TokensUsed, restored.TokensUsed)
	assert.InDelta(t, s.Cost, restored.Cost, 1e-9)
	assert.Equal(t, s.Warnings, restored.Warnings)
}

func TestUnmarshalState_RejectsUnknownVersion(t *testing.T) {
	_, err := UnmarshalState([]byte(`{"version":99,"session_id":"x"}`))
	assert.Error(t, err)
}

func TestAgentState_InvolveAgentDeduplicates(t *testing.T) {
	s := NewAgentState(OrchestrationRequest{SessionID: "s"})
	s.InvolveAgent(RolePlume)
	s.InvolveAgent(RoleMimir)
	s.InvolveAgent(RolePlume)
	assert.Equal(t, []string{RolePlume, RoleMimir}, s.AgentsInvolved)
}

func TestAgentState_RunningToolCalls(t *testing.T) {
	s := NewAgentState(OrchestrationRequest{SessionID: "s"})
	a := s.AddToolCall(NewToolCall(RolePlume, "create_note", nil))
	b := s.AddToolCall(NewToolCall(RoleMimir, "web_search", nil))
	require.NoError(t, a.Complete(nil))
	running := s.RunningToolCalls()
	require.Len(t, running, 1)
	assert.Equal(t, b.ID, running[0].ID)
}

func TestAgentState_ClickableObjects(t *testing.T) {
	s := NewAgentState(OrchestrationRequest{SessionID: "s"})
	ok := s.AddToolCall(NewToolCall(RolePlume, "create_note", nil))
	require.NoError(t, ok.Complete(map[string]any{"note_id": "n-7", "title": "Ideas"}))
	dup := s.AddToolCall(NewToolCall(RolePlume, "update_note", nil))
	require.NoError(t, dup.Complete(map[string]any{"note_id": "n-7", "title": "Ideas"}))
	failed := s.AddToolCall(NewToolCall(RoleMimir, "search_knowledge", nil))
	require.NoError(t, failed.Fail("boom"))

	objs := s.ClickableObjects()
	require.Len(t, objs, 1)
	assert.Equal(t, ClickableObject{Type: "note", ID: "n-7", Title: "Ideas"}, objs[0])
}
