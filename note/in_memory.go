package note

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AdamTheFirstGitman/scribe/core"
)

// InMemoryStore is a process-local NoteStore and CheckpointStore for tests
// and ephemeral deployments. Guarded by RWMutex; search is a linear scan
// with case-insensitive substring matching.
type InMemoryStore struct {
	mu          sync.RWMutex
	notes       map[string]*core.Note
	messages    map[string][]core.Message
	checkpoints map[string]checkpoint
}

type checkpoint struct {
	stage string
	state []byte
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		notes:       make(map[string]*core.Note),
		messages:    make(map[string][]core.Message),
		checkpoints: make(map[string]checkpoint),
	}
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }

// CreateNote stores a new note.
func (s *InMemoryStore) CreateNote(_ context.Context, title, content string, tags []string) (*core.Note, error) {
	now := time.Now().UTC()
	note := &core.Note{
		ID:      core.NewID(),
		Title:   title,
		Content: content,
		Tags:    tags,
		Created: now,
		Updated: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[note.ID] = note

	clone := *note
	return &clone, nil
}

// GetNote returns (nil, nil) when the note does not exist.
func (s *InMemoryStore) GetNote(_ context.Context, id string) (*core.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	note, exists := s.notes[id]
	if !exists {
		return nil, nil
	}
	clone := *note
	return &clone, nil
}

// UpdateNote replaces title and/or content; an empty value keeps the field.
func (s *InMemoryStore) UpdateNote(_ context.Context, id, title, content string) (*core.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, exists := s.notes[id]
	if !exists {
		return nil, fmt.Errorf("note %s not found", id)
	}
	if title != "" {
		note.Title = title
	}
	if content != "" {
		note.Content = content
	}
	note.Updated = time.Now().UTC()

	clone := *note
	return &clone, nil
}

// SearchNotes matches query against title and content, newest first.
func (s *InMemoryStore) SearchNotes(_ context.Context, query string, limit int) ([]*core.Note, error) {
	if limit <= 0 {
		limit = 10
	}
	needle := strings.ToLower(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*core.Note
	for _, note := range s.notes {
		if strings.Contains(strings.ToLower(note.Title), needle) ||
			strings.Contains(strings.ToLower(note.Content), needle) {
			clone := *note
			matches = append(matches, &clone)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Updated.After(matches[j].Updated) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// AppendMessage stores one conversation message.
func (s *InMemoryStore) AppendMessage(_ context.Context, msg core.Message) error {
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.Created.IsZero() {
		msg.Created = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return nil
}

// RecentMessages returns the most recent messages in chronological order.
func (s *InMemoryStore) RecentMessages(_ context.Context, conversationID string, limit int) ([]core.Message, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.messages[conversationID]
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]core.Message, len(history))
	copy(out, history)
	return out, nil
}

// Save upserts the checkpoint for a session.
func (s *InMemoryStore) Save(_ context.Context, sessionID, stage string, state *core.AgentState) error {
	data, err := state.Marshal()
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[sessionID] = checkpoint{stage: stage, state: data}
	return nil
}

// Load restores the latest checkpoint for a session.
func (s *InMemoryStore) Load(_ context.Context, sessionID string) (*core.AgentState, string, error) {
	s.mu.RLock()
	cp, exists := s.checkpoints[sessionID]
	s.mu.RUnlock()

	if !exists {
		return nil, "", fmt.Errorf("no checkpoint for session %s", sessionID)
	}
	state, err := core.UnmarshalState(cp.state)
	if err != nil {
		return nil, "", err
	}
	return state, cp.stage, nil
}
