package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AdamTheFirstGitman/scribe/model"
)

func TestCost_KnownModel(t *testing.T) {
	tr := NewTracker()
	usage := model.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}
	assert.InDelta(t, 18.00, tr.Cost("claude-3-5-sonnet-20241022", usage), 1e-9)
}

func TestCost_UnknownModelUsesDefault(t *testing.T) {
	tr := NewTracker()
	usage := model.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000}
	assert.InDelta(t, 25.00, tr.Cost("some-future-model", usage), 1e-9)
}

func TestRecord_AccumulatesPerSession(t *testing.T) {
	tr := NewTracker()
	usage := model.TokenUsage{PromptTokens: 500_000, CompletionTokens: 100_000}

	first := tr.Record("sess_1", "gpt-4o-mini", usage)
	second := tr.Record("sess_1", "gpt-4o-mini", usage)
	assert.InDelta(t, first+second, tr.SessionTotal("sess_1"), 1e-9)
	assert.Zero(t, tr.SessionTotal("sess_2"))
}

func TestSetPrice(t *testing.T) {
	tr := NewTracker()
	tr.SetPrice("custom", Price{InputPerMTok: 1, OutputPerMTok: 2})
	usage := model.TokenUsage{PromptTokens: 2_000_000, CompletionTokens: 1_000_000}
	assert.InDelta(t, 4.00, tr.Cost("custom", usage), 1e-9)
}
