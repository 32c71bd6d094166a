package intent

import (
	"context"
	"fmt"
	"strings"
)

// KeywordConfidence is the fixed heuristic confidence reported for any
// keyword hit. Keyword matching is deterministic, so the value only signals
// "matched" versus "no match" to the fallback policy.
const KeywordConfidence = 0.8

// defaultKeywords covers both English and French phrasing since the product
// serves both. Order matters: intents are scanned in declaration order and
// the first hit wins.
var defaultKeywords = []struct {
	intent   Intent
	keywords []string
}{
	{IntentDiscussion, []string{
		"discuss", "debate", "both of you", "together", "compare your",
		"discutez", "débattez", "ensemble",
	}},
	{IntentResearch, []string{
		"search", "find", "look up", "what is", "what are", "who is",
		"research", "sources", "related to",
		"cherche", "recherche", "trouve", "qu'est-ce que", "qui est",
	}},
	{IntentRestitution, []string{
		"write", "rewrite", "reformulate", "summarize", "clean up", "note",
		"draft", "structure", "format",
		"écris", "réécris", "reformule", "résume", "rédige",
	}},
}

// KeywordClassifier scans input text for per-intent keyword sets. The first
// intent with at least one hit wins. It never returns an error.
type KeywordClassifier struct {
	sets []struct {
		intent   Intent
		keywords []string
	}
}

// NewKeywordClassifier builds a classifier over the default keyword sets.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{sets: defaultKeywords}
}

// Classify implements Classifier with a case-insensitive substring scan.
func (c *KeywordClassifier) Classify(_ context.Context, text string, _ []string) (Classification, error) {
	lower := strings.ToLower(text)
	for _, set := range c.sets {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return Classification{
					Intent:     set.intent,
					Confidence: KeywordConfidence,
					Reasoning:  fmt.Sprintf("matched keyword %q", kw),
				}, nil
			}
		}
	}
	return Classification{Intent: IntentUnknown, Reasoning: "no keyword matched"}, nil
}
