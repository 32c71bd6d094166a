// Package note implements the persistence collaborators: notes, conversation
// messages and state checkpoints, backed by SQLite. An in-memory variant
// exists for tests and ephemeral deployments.
package note

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AdamTheFirstGitman/scribe/core"
)

// SQLiteStore implements core.NoteStore and core.CheckpointStore over one
// SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at dbPath with WAL mode for
// better concurrency.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		tags_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		agent TEXT,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);

	CREATE TABLE IF NOT EXISTS checkpoints (
		session_id TEXT PRIMARY KEY,
		stage TEXT NOT NULL,
		state_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateNote persists a new note.
func (s *SQLiteStore) CreateNote(ctx context.Context, title, content string, tags []string) (*core.Note, error) {
	now := time.Now().UTC()
	note := &core.Note{
		ID:      core.NewID(),
		Title:   title,
		Content: content,
		Tags:    tags,
		Created: now,
		Updated: now,
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notes (id, title, content, tags_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		note.ID, note.Title, note.Content, string(tagsJSON), now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert note: %w", err)
	}
	return note, nil
}

// GetNote retrieves a note by id, returning (nil, nil) when absent.
func (s *SQLiteStore) GetNote(ctx context.Context, id string) (*core.Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, tags_json, created_at, updated_at FROM notes WHERE id = ?`, id)
	note, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return note, err
}

// UpdateNote replaces title and/or content; an empty value keeps the field.
func (s *SQLiteStore) UpdateNote(ctx context.Context, id, title, content string) (*core.Note, error) {
	existing, err := s.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("note %s not found", id)
	}

	if title != "" {
		existing.Title = title
	}
	if content != "" {
		existing.Content = content
	}
	existing.Updated = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
		existing.Title, existing.Content, existing.Updated.Unix(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}
	return existing, nil
}

// SearchNotes matches query against title and content, newest first.
func (s *SQLiteStore) SearchNotes(ctx context.Context, query string, limit int) ([]*core.Note, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, tags_json, created_at, updated_at
		 FROM notes
		 WHERE lower(title) LIKE ? OR lower(content) LIKE ?
		 ORDER BY updated_at DESC
		 LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	defer rows.Close()

	var notes []*core.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// AppendMessage persists one conversation message.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg core.Message) error {
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.Created.IsZero() {
		msg.Created = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, agent, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Agent, msg.Content, msg.Created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// RecentMessages returns the most recent messages of a conversation in
// chronological order.
func (s *SQLiteStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]core.Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, agent, content, created_at
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var msg core.Message
		var agent sql.NullString
		var created int64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &agent, &msg.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Agent = agent.String
		msg.Created = time.Unix(created, 0).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returned newest first; flip to chronological.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Save upserts the checkpoint for a session.
func (s *SQLiteStore) Save(ctx context.Context, sessionID, stage string, state *core.AgentState) error {
	data, err := state.Marshal()
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (session_id, stage, state_json, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET stage = excluded.stage, state_json = excluded.state_json, updated_at = excluded.updated_at`,
		sessionID, stage, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load restores the latest checkpoint for a session.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*core.AgentState, string, error) {
	var stage, stateJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT stage, state_json FROM checkpoints WHERE session_id = ?`, sessionID,
	).Scan(&stage, &stateJSON)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("no checkpoint for session %s", sessionID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("load checkpoint: %w", err)
	}

	state, err := core.UnmarshalState([]byte(stateJSON))
	if err != nil {
		return nil, "", err
	}
	return state, stage, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*core.Note, error) {
	var note core.Note
	var tagsJSON sql.NullString
	var created, updated int64

	err := row.Scan(&note.ID, &note.Title, &note.Content, &tagsJSON, &created, &updated)
	if err != nil {
		return nil, err
	}
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &note.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	note.Created = time.Unix(created, 0).UTC()
	note.Updated = time.Unix(updated, 0).UTC()
	return &note, nil
}
