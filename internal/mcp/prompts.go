package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const notesWorkflowPromptName = "notes_workflow"

const notesWorkflowText = "Notes are short titled texts with optional tags. Call note_list to find a note, then note_view for its full content. " +
	"Create with note_create (title and content are required). Change a note with note_update, passing only the fields to change. " +
	"Remove a note with note_delete. Validation failures list every problem in details, so fix them all before retrying."

func registerPrompts(mcpServer *mcp.Server) {
	for _, prompt := range PromptDefinitions() {
		mcpServer.AddPrompt(prompt, promptHandler(prompt.Description))
	}
}

// PromptDefinitions returns MCP prompt definitions.
func PromptDefinitions() []*mcp.Prompt {
	return []*mcp.Prompt{
		{
			Name:        notesWorkflowPromptName,
			Title:       "Notes workflow",
			Description: "How to read and edit notes with the note_* tools.",
		},
	}
}

func promptHandler(description string) mcp.PromptHandler {
	return func(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    mcp.Role("user"),
					Content: &mcp.TextContent{Text: notesWorkflowText},
				},
			},
		}, nil
	}
}
