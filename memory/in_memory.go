package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AdamTheFirstGitman/scribe/core"
)

// InMemoryStore is a process-local MemoryStore. It keeps per-conversation
// message history and answers substring searches over it.
//
// Concurrency: protected by RWMutex.
// Search: linear scan with case-insensitive substring matching, constant
// score of 1.0 per hit. Suitable for tests and single-process deployments;
// swap for a vector index for semantic retrieval.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]core.Message // conversationID -> chronological messages
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		messages: make(map[string][]core.Message),
	}
}

// Record appends a message to its conversation's history.
func (m *InMemoryStore) Record(_ context.Context, msg core.Message) error {
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.Created.IsZero() {
		msg.Created = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

// Recent returns up to limit of the most recent messages for a conversation
// in chronological order.
func (m *InMemoryStore) Recent(_ context.Context, conversationID string, limit int) ([]core.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.messages[conversationID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]core.Message, len(history))
	copy(out, history)
	return out, nil
}

// Search scans the conversation's history for messages containing query and
// returns them as snippets, oldest first, up to limit.
func (m *InMemoryStore) Search(_ context.Context, conversationID, query string, limit int) ([]core.Snippet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(query)
	var results []core.Snippet
	for _, msg := range m.messages[conversationID] {
		if limit > 0 && len(results) >= limit {
			break
		}
		if needle == "" || strings.Contains(strings.ToLower(msg.Content), needle) {
			results = append(results, core.Snippet{
				ID:      msg.ID,
				Source:  "memory",
				Content: msg.Content,
				Score:   1.0,
				Metadata: map[string]any{
					"role":  msg.Role,
					"agent": msg.Agent,
				},
			})
		}
	}
	return results, nil
}
