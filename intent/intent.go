// Package intent classifies user input into a coarse intent used for
// automatic routing. Two interchangeable strategies exist: a deterministic
// zero-cost keyword scan and a single lightweight model call. Classification
// is advisory only; a failure never blocks the request, it degrades to a
// fallback choice.
package intent

import (
	"context"
)

// Intent labels recognized by the classifier.
type Intent string

const (
	IntentRestitution Intent = "restitution"
	IntentResearch    Intent = "research"
	IntentDiscussion  Intent = "discussion"
	IntentUnknown     Intent = "unknown"
)

// Classification is the result of one classify call.
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Classifier maps free text (plus any retrieved context) to an intent.
type Classifier interface {
	Classify(ctx context.Context, text string, contextSnippets []string) (Classification, error)
}

// MinConfidence is the floor below which a classification is treated the same
// as unknown by Resolve.
const MinConfidence = 0.5

// Resolve applies the fallback policy to a classification outcome. Unknown
// intent, low confidence, or a classifier error all degrade the same way:
// research when retrieved context exists, restitution otherwise.
func Resolve(c Classification, err error, hasContext bool) Intent {
	if err != nil || c.Intent == IntentUnknown || c.Intent == "" || c.Confidence < MinConfidence {
		if hasContext {
			return IntentResearch
		}
		return IntentRestitution
	}
	return c.Intent
}
