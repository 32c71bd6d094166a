package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/intent"
)

func stateWith(mode core.Mode, text string) *core.AgentState {
	return core.NewAgentState(core.OrchestrationRequest{
		InputText: text,
		Mode:      mode,
		SessionID: "sess_1",
	})
}

type stubClassifier struct {
	result intent.Classification
	err    error
}

func (s stubClassifier) Classify(context.Context, string, []string) (intent.Classification, error) {
	return s.result, s.err
}

func TestRoute_ForcedMode(t *testing.T) {
	r := New()

	tests := []struct {
		mode   core.Mode
		target string
	}{
		{core.ModePlume, core.TargetPlume},
		{core.ModeMimir, core.TargetMimir},
		{core.ModeDiscussion, core.TargetDiscussion},
	}
	for _, tt := range tests {
		state := stateWith(tt.mode, "mimir please do something")
		decision := r.Route(context.Background(), state)
		assert.Equal(t, tt.target, decision.Target)
		assert.Equal(t, ReasonForcedMode, decision.Reason)
		require.NotNil(t, state.Routing)
		assert.Equal(t, decision, *state.Routing)
		assert.Equal(t, ReasonForcedMode, state.RoutingReason)
	}
}

func TestRoute_Mentions(t *testing.T) {
	r := New()

	decision := r.Route(context.Background(), stateWith(core.ModeAuto, "Plume and Mimir, look at this"))
	assert.Equal(t, core.TargetDiscussion, decision.Target)
	assert.Equal(t, ReasonBothMentioned, decision.Reason)

	decision = r.Route(context.Background(), stateWith(core.ModeAuto, "hey PLUME, tidy this up"))
	assert.Equal(t, core.TargetPlume, decision.Target)
	assert.Equal(t, ReasonExplicitMention, decision.Reason)

	decision = r.Route(context.Background(), stateWith(core.ModeAuto, "ask mimir about it"))
	assert.Equal(t, core.TargetMimir, decision.Target)
	assert.Equal(t, ReasonExplicitMention, decision.Reason)
}

func TestRoute_SubstringStrategyMisfires(t *testing.T) {
	// Documented behavior: substring matching fires on partial-word containment.
	r := New(WithStrategy(MatchSubstring))
	decision := r.Route(context.Background(), stateWith(core.ModeAuto, "I love plumeria flowers"))
	assert.Equal(t, core.TargetPlume, decision.Target)
	assert.Equal(t, ReasonExplicitMention, decision.Reason)
}

func TestRoute_WordBoundaryStrategy(t *testing.T) {
	r := New(
		WithStrategy(MatchWordBoundary),
		WithClassifier(stubClassifier{result: intent.Classification{Intent: intent.IntentResearch, Confidence: 0.9}}),
	)

	// Partial-word containment no longer counts as a mention.
	decision := r.Route(context.Background(), stateWith(core.ModeAuto, "I love plumeria flowers"))
	assert.Equal(t, ReasonIntentAuto, decision.Reason)
	assert.Equal(t, core.TargetMimir, decision.Target)

	// Whole-word mentions still do.
	decision = r.Route(context.Background(), stateWith(core.ModeAuto, "plume, clean this up"))
	assert.Equal(t, ReasonExplicitMention, decision.Reason)
}

func TestRoute_AutoDelegatesToClassifier(t *testing.T) {
	r := New(WithClassifier(stubClassifier{
		result: intent.Classification{Intent: intent.IntentDiscussion, Confidence: 0.9},
	}))

	decision := r.Route(context.Background(), stateWith(core.ModeAuto, "how should we approach this"))
	assert.Equal(t, core.TargetDiscussion, decision.Target)
	assert.Equal(t, ReasonIntentAuto, decision.Reason)
}

func TestRoute_ClassifierFailureNeverBlocks(t *testing.T) {
	r := New(WithClassifier(stubClassifier{err: errors.New("model down")}))

	// Without context the fallback is the restitution agent.
	decision := r.Route(context.Background(), stateWith(core.ModeAuto, "hello"))
	assert.Equal(t, core.TargetPlume, decision.Target)
	assert.Equal(t, ReasonIntentAuto, decision.Reason)

	// With retrieved context it prefers the archivist.
	state := stateWith(core.ModeAuto, "hello")
	state.Context = []core.Snippet{{ID: "s1", Content: "prior note"}}
	decision = r.Route(context.Background(), state)
	assert.Equal(t, core.TargetMimir, decision.Target)
}

func TestRoute_UnrecognizedModeFallsBack(t *testing.T) {
	state := stateWith(core.Mode("bogus"), "whatever")
	decision := New().Route(context.Background(), state)
	assert.Equal(t, core.TargetPlume, decision.Target)
	assert.Equal(t, ReasonFallback, decision.Reason)
}

func TestRoute_Idempotent(t *testing.T) {
	r := New()
	state := stateWith(core.ModeAuto, "mimir, search this")

	first := r.Route(context.Background(), state)
	second := r.Route(context.Background(), state)
	assert.Equal(t, first, second)
}
