package scribe

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/model"
	"github.com/AdamTheFirstGitman/scribe/note"
)

func TestScribe_InvokeSync(t *testing.T) {
	plume := model.NewMockModel("plume-model").QueueText("noted")
	s, err := New(func(o *Options) { o.PlumeModel = plume })
	require.NoError(t, err)

	events, result, err := s.InvokeSync(context.Background(), core.OrchestrationRequest{
		InputText: "write this down",
		Mode:      core.ModePlume,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "noted", result.Response)
	assert.Equal(t, "plume", result.AgentUsed)
	require.NotEmpty(t, events)
	assert.Equal(t, core.EventStart, events[0].Type)
	assert.Equal(t, core.EventComplete, events[len(events)-1].Type)
}

func TestScribe_Invoke_RejectsEmptyInput(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	_, err = s.Invoke(context.Background(), core.OrchestrationRequest{})
	var inputErr *core.InputError
	require.ErrorAs(t, err, &inputErr)
}

func TestScribe_WithNoteStore(t *testing.T) {
	store, err := note.NewSQLite(filepath.Join(t.TempDir(), "scribe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	plume := model.NewMockModel("plume-model").QueueText("saved")
	s, err := New(func(o *Options) {
		o.PlumeModel = plume
		o.Notes = store
	})
	require.NoError(t, err)

	_, result, err := s.InvokeSync(context.Background(), core.OrchestrationRequest{
		InputText:      "remember the milk",
		Mode:           core.ModePlume,
		ConversationID: "conv-1",
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	messages, err := store.RecentMessages(context.Background(), "conv-1", 10)
	require.NoError(t, err)
	assert.Len(t, messages, 2, "user input and agent answer are persisted")
}
