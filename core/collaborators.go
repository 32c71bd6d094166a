package core

import (
	"context"
	"time"
)

// Transcriber converts an opaque audio payload into text. Implementations
// live behind this interface; the engine only sees the resulting text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Retriever looks up contextual knowledge. It backs both the workflow's
// CONTEXT_RETRIEVAL stage and the archivist's research tools.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]Snippet, error)
	Related(ctx context.Context, noteID string, limit int) ([]Snippet, error)
}

// Note is a persisted user note.
type Note struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Tags    []string  `json:"tags,omitempty"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Message is one persisted conversation message. Role is "user" or "agent";
// Agent names the producing agent for agent messages.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Agent          string    `json:"agent,omitempty"`
	Content        string    `json:"content"`
	Created        time.Time `json:"created"`
}

// NoteStore persists notes and conversation messages. It backs the
// restitution agent's authoring tools and the workflow's STORE stage.
type NoteStore interface {
	CreateNote(ctx context.Context, title, content string, tags []string) (*Note, error)
	GetNote(ctx context.Context, id string) (*Note, error)
	UpdateNote(ctx context.Context, id, title, content string) (*Note, error)
	SearchNotes(ctx context.Context, query string, limit int) ([]*Note, error)
	AppendMessage(ctx context.Context, msg Message) error
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)
	Ping(ctx context.Context) error
	Close() error
}

// MemoryStore provides conversational memory: short-term recent messages
// plus long-term semantic lookup over stored content.
type MemoryStore interface {
	Recent(ctx context.Context, conversationID string, limit int) ([]Message, error)
	Search(ctx context.Context, conversationID, query string, limit int) ([]Snippet, error)
	Record(ctx context.Context, msg Message) error
}

// CheckpointStore persists AgentState snapshots between workflow stages so
// a conversation can resume in a later request.
type CheckpointStore interface {
	Save(ctx context.Context, sessionID, stage string, state *AgentState) error
	Load(ctx context.Context, sessionID string) (state *AgentState, stage string, err error)
}
