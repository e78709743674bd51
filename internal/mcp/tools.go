package mcp

import "github.com/modelcontextprotocol/go-sdk/mcp"

// Tool names exposed on the /mcp endpoint.
const (
	toolNoteList   = "note_list"
	toolNoteView   = "note_view"
	toolNoteCreate = "note_create"
	toolNoteUpdate = "note_update"
	toolNoteDelete = "note_delete"
)

func stringProperty(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
	}
}

// noteFieldProperty leaves the JSON type open so wrong-typed values reach
// the service and come back as validation details.
func noteFieldProperty(description string) map[string]any {
	return map[string]any{
		"description": description,
	}
}

// NoteToolDefinitions returns the notes MCP tool definitions.
func NoteToolDefinitions() []*mcp.Tool {
	return []*mcp.Tool{
		{
			Name:        toolNoteList,
			Description: "List all notes in creation order. Each entry has the id, title, tags, a short content preview, total_lines and updatedAt. Use note_view to read a full note.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        toolNoteView,
			Description: "Read a single note by id, including its full content, tags and timestamps.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": stringProperty("The unique identifier of the note to retrieve"),
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        toolNoteCreate,
			Description: "Create a note. Title and content must be non-empty strings; tags is an optional array of strings. Returns the stored note with its assigned id.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":   noteFieldProperty("The title of the note (non-empty string)"),
					"content": noteFieldProperty("The body of the note as a non-empty string (Markdown is rendered by the HTML view)"),
					"tags":    noteFieldProperty("Optional labels for the note (array of strings)"),
				},
			},
		},
		{
			Name:        toolNoteUpdate,
			Description: "Update a note. Only the fields you pass are changed; omitted fields keep their current values. Passing tags replaces the whole list.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":      stringProperty("The unique identifier of the note to update"),
					"title":   noteFieldProperty("The new title (optional, non-empty string)"),
					"content": noteFieldProperty("The new content (optional, non-empty string)"),
					"tags":    noteFieldProperty("The new tag list (optional, array of strings)"),
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        toolNoteDelete,
			Description: "Permanently delete a note by id.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": stringProperty("The unique identifier of the note to delete"),
				},
				"required": []string{"id"},
			},
		},
	}
}
