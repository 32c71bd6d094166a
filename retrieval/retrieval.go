// Package retrieval implements core.Retriever backends. The local retriever
// answers searches from the note store; richer backends (embeddings, web)
// can be layered behind the same interface.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/AdamTheFirstGitman/scribe/core"
)

// DefaultLimit bounds retrieval results when the caller passes no limit.
const DefaultLimit = 5

// LocalRetriever searches stored notes with keyword matching. Related looks
// up notes sharing tags or title words with the anchor note.
type LocalRetriever struct {
	notes core.NoteStore
}

// NewLocal creates a retriever over the given note store.
func NewLocal(notes core.NoteStore) *LocalRetriever {
	return &LocalRetriever{notes: notes}
}

// Search returns snippets for notes matching the query.
func (r *LocalRetriever) Search(ctx context.Context, query string, limit int) ([]core.Snippet, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	notes, err := r.notes.SearchNotes(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}

	snippets := make([]core.Snippet, 0, len(notes))
	for _, n := range notes {
		snippets = append(snippets, toSnippet(n, 1.0))
	}
	return snippets, nil
}

// Related finds notes connected to the anchor note through shared tags or
// title words. The anchor itself is excluded.
func (r *LocalRetriever) Related(ctx context.Context, noteID string, limit int) ([]core.Snippet, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	anchor, err := r.notes.GetNote(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("load anchor note: %w", err)
	}
	if anchor == nil {
		return nil, fmt.Errorf("note %s not found", noteID)
	}

	seen := map[string]bool{anchor.ID: true}
	var snippets []core.Snippet

	for _, term := range relatedTerms(anchor) {
		if len(snippets) >= limit {
			break
		}
		matches, err := r.notes.SearchNotes(ctx, term, limit)
		if err != nil {
			return nil, fmt.Errorf("search related notes: %w", err)
		}
		for _, n := range matches {
			if seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			snippets = append(snippets, toSnippet(n, 0.5))
			if len(snippets) >= limit {
				break
			}
		}
	}
	return snippets, nil
}

// relatedTerms picks search terms from the anchor: tags first, then title
// words longer than three characters.
func relatedTerms(anchor *core.Note) []string {
	terms := append([]string{}, anchor.Tags...)
	for _, word := range strings.Fields(anchor.Title) {
		if len(word) > 3 {
			terms = append(terms, word)
		}
	}
	return terms
}

func toSnippet(n *core.Note, score float64) core.Snippet {
	content := n.Content
	if n.Title != "" {
		content = n.Title + ": " + content
	}
	return core.Snippet{
		ID:      n.ID,
		Source:  "note",
		Content: content,
		Score:   score,
		Metadata: map[string]any{
			"title": n.Title,
			"tags":  n.Tags,
		},
	}
}
