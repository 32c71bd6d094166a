package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/AdamTheFirstGitman/scribe/model"
)

const classifierInstructions = `You classify a user message for a note-taking assistant.
Answer with exactly one word, one of: restitution, research, discussion.
- restitution: the user wants text written, rewritten, structured or saved as a note.
- research: the user wants information found in their knowledge base or on the web.
- discussion: the user wants the two assistants to reason about the topic together.`

// ModelConfidence is reported for a valid single-label model answer.
const ModelConfidence = 0.9

// ModelClassifier performs one lightweight model call constrained to emit a
// single intent label. Any malformed answer degrades to unknown; callers
// apply Resolve for the fallback.
type ModelClassifier struct {
	model model.Model
}

// NewModelClassifier wraps the given model for classification calls.
func NewModelClassifier(m model.Model) *ModelClassifier {
	return &ModelClassifier{model: m}
}

// Classify implements Classifier via a single completion.
func (c *ModelClassifier) Classify(ctx context.Context, text string, contextSnippets []string) (Classification, error) {
	prompt := text
	if len(contextSnippets) > 0 {
		prompt = fmt.Sprintf("%s\n\nRetrieved context:\n%s", text, strings.Join(contextSnippets, "\n"))
	}

	resp, err := c.model.Generate(ctx, model.Request{
		Instructions: classifierInstructions,
		Messages:     []model.Message{{Role: model.RoleUser, Content: prompt}},
	})
	if err != nil {
		return Classification{Intent: IntentUnknown}, fmt.Errorf("intent classification: %w", err)
	}

	label := strings.ToLower(strings.TrimSpace(resp.Text))
	label = strings.Trim(label, ".\"'`")
	switch Intent(label) {
	case IntentRestitution, IntentResearch, IntentDiscussion:
		return Classification{
			Intent:     Intent(label),
			Confidence: ModelConfidence,
			Reasoning:  "model label",
		}, nil
	default:
		return Classification{
			Intent:    IntentUnknown,
			Reasoning: fmt.Sprintf("unrecognized model answer %q", resp.Text),
		}, nil
	}
}
