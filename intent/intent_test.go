package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdamTheFirstGitman/scribe/model"
)

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		text string
		want Intent
	}{
		{"Please summarize my meeting notes", IntentRestitution},
		{"search for everything about fermentation", IntentResearch},
		{"I'd like you to discuss this topic together", IntentDiscussion},
		{"Reformule ce texte proprement", IntentRestitution},
		{"zzz nothing matches here", IntentUnknown},
	}
	for _, tt := range tests {
		got, err := c.Classify(context.Background(), tt.text, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Intent, tt.text)
		if tt.want != IntentUnknown {
			assert.Equal(t, KeywordConfidence, got.Confidence)
			assert.NotEmpty(t, got.Reasoning)
		}
	}
}

func TestKeywordClassifier_FirstIntentWins(t *testing.T) {
	// "discuss" and "write" both appear; discussion is scanned first.
	c := NewKeywordClassifier()
	got, err := c.Classify(context.Background(), "discuss then write a note", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentDiscussion, got.Intent)
}

func TestModelClassifier(t *testing.T) {
	mock := model.NewMockModel("classifier")
	mock.QueueText("research")

	c := NewModelClassifier(mock)
	got, err := c.Classify(context.Background(), "any text", []string{"snippet"})
	require.NoError(t, err)
	assert.Equal(t, IntentResearch, got.Intent)
	assert.Equal(t, ModelConfidence, got.Confidence)

	// Context snippets are folded into the prompt.
	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "snippet")
}

func TestModelClassifier_TrimsAnswer(t *testing.T) {
	mock := model.NewMockModel("classifier")
	mock.QueueText("  Discussion.\n")

	c := NewModelClassifier(mock)
	got, err := c.Classify(context.Background(), "any text", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentDiscussion, got.Intent)
}

func TestModelClassifier_UnrecognizedAnswer(t *testing.T) {
	mock := model.NewMockModel("classifier")
	mock.QueueText("I believe the user wants research")

	c := NewModelClassifier(mock)
	got, err := c.Classify(context.Background(), "any text", nil)
	require.NoError(t, err)
	assert.Equal(t, IntentUnknown, got.Intent)
}

func TestModelClassifier_Error(t *testing.T) {
	mock := model.NewMockModel("classifier")
	mock.FailWith(errors.New("api down"))

	c := NewModelClassifier(mock)
	got, err := c.Classify(context.Background(), "any text", nil)
	require.Error(t, err)
	assert.Equal(t, IntentUnknown, got.Intent)
}

func TestResolve(t *testing.T) {
	// Valid classification passes through.
	got := Resolve(Classification{Intent: IntentDiscussion, Confidence: 0.9}, nil, false)
	assert.Equal(t, IntentDiscussion, got)

	// Unknown with context falls back to research.
	got = Resolve(Classification{Intent: IntentUnknown}, nil, true)
	assert.Equal(t, IntentResearch, got)

	// Unknown without context falls back to restitution.
	got = Resolve(Classification{Intent: IntentUnknown}, nil, false)
	assert.Equal(t, IntentRestitution, got)

	// Low confidence degrades even with a named intent.
	got = Resolve(Classification{Intent: IntentDiscussion, Confidence: 0.2}, nil, false)
	assert.Equal(t, IntentRestitution, got)

	// Classifier error never blocks the request.
	got = Resolve(Classification{}, errors.New("boom"), true)
	assert.Equal(t, IntentResearch, got)
}
