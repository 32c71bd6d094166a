package tool

import (
	"fmt"
	"strings"
)

// NewCreateNoteTool returns the restitution agent's note authoring tool. The
// result payload carries note_id and title so the final response can surface
// the created note as a clickable object.
func NewCreateNoteTool() *FunctionTool {
	return NewFunctionTool(
		"create_note",
		"Create and persist a new note with a title and formatted content",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":   map[string]any{"type": "string", "description": "Short descriptive note title"},
				"content": map[string]any{"type": "string", "description": "Full note body in markdown"},
				"tags":    map[string]any{"type": "array", "description": "Optional classification tags"},
			},
			"required": []string{"title", "content"},
		},
		func(tc *Context, args map[string]any) (any, error) {
			store := tc.Notes()
			if store == nil {
				return nil, fmt.Errorf("note store not configured")
			}
			title := strings.TrimSpace(args["title"].(string))
			content := args["content"].(string)
			if title == "" {
				return nil, NewToolError("create_note", "title must not be blank", CodeValidation)
			}

			var tags []string
			if raw, ok := args["tags"].([]any); ok {
				for _, t := range raw {
					if s, ok := t.(string); ok && s != "" {
						tags = append(tags, s)
					}
				}
			}

			note, err := store.CreateNote(tc.Context(), title, content, tags)
			if err != nil {
				return nil, fmt.Errorf("create note: %w", err)
			}
			return map[string]any{
				"note_id": note.ID,
				"title":   note.Title,
				"created": note.Created,
			}, nil
		},
	)
}

// NewUpdateNoteTool returns the restitution agent's note revision tool.
// Either title or content may be omitted to leave the field unchanged.
func NewUpdateNoteTool() *FunctionTool {
	return NewFunctionTool(
		"update_note",
		"Update the title and/or content of an existing note by id",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"note_id": map[string]any{"type": "string", "description": "Identifier of the note to update"},
				"title":   map[string]any{"type": "string", "description": "Replacement title, empty to keep"},
				"content": map[string]any{"type": "string", "description": "Replacement body, empty to keep"},
			},
			"required": []string{"note_id"},
		},
		func(tc *Context, args map[string]any) (any, error) {
			store := tc.Notes()
			if store == nil {
				return nil, fmt.Errorf("note store not configured")
			}
			id := args["note_id"].(string)
			title, _ := args["title"].(string)
			content, _ := args["content"].(string)
			if title == "" && content == "" {
				return nil, NewToolError("update_note", "nothing to update: provide title or content", CodeValidation)
			}

			note, err := store.UpdateNote(tc.Context(), id, title, content)
			if err != nil {
				return nil, fmt.Errorf("update note %s: %w", id, err)
			}
			return map[string]any{
				"note_id": note.ID,
				"title":   note.Title,
				"updated": note.Updated,
			}, nil
		},
	)
}
