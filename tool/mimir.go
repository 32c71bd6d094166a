package tool

import (
	"fmt"

	"github.com/AdamTheFirstGitman/scribe/core"
)

const defaultSearchLimit = 5

// snippetPayloads flattens snippets into JSON-friendly maps for tool results.
func snippetPayloads(snippets []core.Snippet) []map[string]any {
	out := make([]map[string]any, len(snippets))
	for i, s := range snippets {
		out[i] = map[string]any{
			"id":      s.ID,
			"source":  s.Source,
			"content": s.Content,
			"score":   s.Score,
		}
	}
	return out
}

func limitArg(args map[string]any) int {
	if v, ok := args["limit"].(float64); ok && v > 0 {
		return int(v)
	}
	return defaultSearchLimit
}

// NewSearchKnowledgeTool returns the archivist agent's local knowledge search tool.
func NewSearchKnowledgeTool() *FunctionTool {
	return NewFunctionTool(
		"search_knowledge",
		"Search the local knowledge base for notes and passages matching a query",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Free text search query"},
				"limit": map[string]any{"type": "number", "description": "Maximum results, default 5"},
			},
			"required": []string{"query"},
		},
		func(tc *Context, args map[string]any) (any, error) {
			retriever := tc.Retriever()
			if retriever == nil {
				return nil, fmt.Errorf("retriever not configured")
			}
			query := args["query"].(string)
			snippets, err := retriever.Search(tc.Context(), query, limitArg(args))
			if err != nil {
				return nil, fmt.Errorf("search knowledge: %w", err)
			}
			return map[string]any{
				"query":   query,
				"results": snippetPayloads(snippets),
			}, nil
		},
	)
}

// NewWebSearchTool returns the archivist agent's external web search tool.
func NewWebSearchTool() *FunctionTool {
	return NewFunctionTool(
		"web_search",
		"Search the web for up to date information on a topic",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Free text search query"},
				"limit": map[string]any{"type": "number", "description": "Maximum results, default 5"},
			},
			"required": []string{"query"},
		},
		func(tc *Context, args map[string]any) (any, error) {
			web := tc.Web()
			if web == nil {
				return nil, fmt.Errorf("web search not configured")
			}
			query := args["query"].(string)
			snippets, err := web.Search(tc.Context(), query, limitArg(args))
			if err != nil {
				return nil, fmt.Errorf("web search: %w", err)
			}
			return map[string]any{
				"query":   query,
				"results": snippetPayloads(snippets),
			}, nil
		},
	)
}

// NewFindRelatedTool returns the archivist agent's related-content discovery tool.
func NewFindRelatedTool() *FunctionTool {
	return NewFunctionTool(
		"find_related",
		"Find notes and passages related to an existing note",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"note_id": map[string]any{"type": "string", "description": "Identifier of the reference note"},
				"limit":   map[string]any{"type": "number", "description": "Maximum results, default 5"},
			},
			"required": []string{"note_id"},
		},
		func(tc *Context, args map[string]any) (any, error) {
			retriever := tc.Retriever()
			if retriever == nil {
				return nil, fmt.Errorf("retriever not configured")
			}
			noteID := args["note_id"].(string)
			snippets, err := retriever.Related(tc.Context(), noteID, limitArg(args))
			if err != nil {
				return nil, fmt.Errorf("find related to %s: %w", noteID, err)
			}
			return map[string]any{
				"note_id": noteID,
				"results": snippetPayloads(snippets),
			}, nil
		},
	)
}

// RegisterBuiltins wires the standard tool sets: authoring tools for the
// restitution role, discovery tools for the archivist role.
func RegisterBuiltins(r *Registry) error {
	plumeTools := []Tool{NewCreateNoteTool(), NewUpdateNoteTool()}
	for _, t := range plumeTools {
		if err := r.Register(t, core.RolePlume); err != nil {
			return err
		}
	}
	mimirTools := []Tool{NewSearchKnowledgeTool(), NewWebSearchTool(), NewFindRelatedTool()}
	for _, t := range mimirTools {
		if err := r.Register(t, core.RoleMimir); err != nil {
			return err
		}
	}
	return r.Validate()
}
