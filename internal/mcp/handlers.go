package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
)

// Handler implements MCP tool call handling.
type Handler struct {
	notesSvc *notes.Service
}

// NewHandler creates a new MCP handler over the notes service.
func NewHandler(notesSvc *notes.Service) *Handler {
	return &Handler{notesSvc: notesSvc}
}

// toolErrorPayload is the JSON text of every IsError tool result.
type toolErrorPayload struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type noteListResult struct {
	Notes []notes.NoteListItem `json:"notes"`
}

type noteDeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type noteIDArgs struct {
	ID string `json:"id"`
}

// createToolHandler returns a tool handler function for the given tool name.
// Tool failures become IsError results; the transport error is always nil.
func (h *Handler) createToolHandler(name string) func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		result, err := h.HandleToolCall(ctx, name, args)
		if err != nil {
			level := obs.From(ctx).Info
			if errs.CodeOf(err) == errs.Internal {
				level = obs.From(ctx).Error
			}
			level("mcp_tool_failed", "pkg", "mcp", "tool", name, "code", string(errs.CodeOf(err)), "error", err)
			return newToolResultError(err), nil, nil
		}
		obs.From(ctx).Debug("mcp_tool_ok", "pkg", "mcp", "tool", name)
		return result, nil, nil
	}
}

// HandleToolCall routes tool calls to appropriate handlers.
func (h *Handler) HandleToolCall(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	switch name {
	case toolNoteList, toolNoteView, toolNoteCreate, toolNoteUpdate, toolNoteDelete:
	default:
		return nil, errs.New(errs.NotFound, fmt.Sprintf("unknown tool: %s", name))
	}
	if err := h.requireNotes(); err != nil {
		return nil, err
	}

	switch name {
	case toolNoteList:
		return h.handleNoteList(arguments)
	case toolNoteView:
		return h.handleNoteView(arguments)
	case toolNoteCreate:
		return h.handleNoteCreate(arguments)
	case toolNoteUpdate:
		return h.handleNoteUpdate(arguments)
	default:
		return h.handleNoteDelete(arguments)
	}
}

func (h *Handler) requireNotes() error {
	if h == nil || h.notesSvc == nil {
		return errs.New(errs.FailedPrecondition, "notes tools are unavailable on this MCP endpoint")
	}
	return nil
}

func (h *Handler) handleNoteList(args map[string]any) (*mcp.CallToolResult, error) {
	var none struct{}
	if err := decodeToolArgs(args, &none); err != nil {
		return nil, err
	}

	all := h.notesSvc.List()
	items := make([]notes.NoteListItem, 0, len(all))
	for _, n := range all {
		items = append(items, notes.ListItem(n))
	}
	return newToolResultJSON(noteListResult{Notes: items})
}

func (h *Handler) handleNoteView(args map[string]any) (*mcp.CallToolResult, error) {
	id, err := decodeNoteID(args)
	if err != nil {
		return nil, err
	}

	note, ok := h.notesSvc.Get(id)
	if !ok {
		return nil, notes.ErrNoteNotFound
	}
	return newToolResultJSON(note)
}

func (h *Handler) handleNoteCreate(args map[string]any) (*mcp.CallToolResult, error) {
	payload, err := notePayload(args)
	if err != nil {
		return nil, err
	}

	note, err := h.notesSvc.Create(payload)
	if err != nil {
		return nil, classifyNotesError(err, "create note")
	}
	return newToolResultJSON(note)
}

func (h *Handler) handleNoteUpdate(args map[string]any) (*mcp.CallToolResult, error) {
	id, ok := args["id"].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return nil, errs.New(errs.InvalidArgument, "id must be a non-empty string")
	}
	rest := maps.Clone(args)
	delete(rest, "id")

	payload, err := notePayload(rest)
	if err != nil {
		return nil, err
	}

	note, err := h.notesSvc.Update(id, payload)
	if err != nil {
		return nil, classifyNotesError(err, "update note")
	}
	return newToolResultJSON(note)
}

func (h *Handler) handleNoteDelete(args map[string]any) (*mcp.CallToolResult, error) {
	id, err := decodeNoteID(args)
	if err != nil {
		return nil, err
	}

	deleted, err := h.notesSvc.Delete(id)
	if err != nil {
		return nil, classifyNotesError(err, "delete note")
	}
	return newToolResultJSON(noteDeleteResult{ID: id, Deleted: deleted})
}

func decodeNoteID(args map[string]any) (string, error) {
	var decoded noteIDArgs
	if err := decodeToolArgs(args, &decoded); err != nil {
		return "", err
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return "", errs.New(errs.InvalidArgument, "id must be a non-empty string")
	}
	return decoded.ID, nil
}

// notePayload restricts args to note fields. Field types are left to the
// service so tool callers get the same validation messages as HTTP clients.
func notePayload(args map[string]any) (notes.Payload, error) {
	payload := notes.Payload{}
	var unknown []string
	for k, v := range args {
		switch k {
		case "title", "content", "tags":
			payload[k] = v
		default:
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown argument(s): %s", strings.Join(unknown, ", ")))
	}
	return payload, nil
}

// decodeToolArgs decodes args into dst, rejecting unknown fields.
// A nil map decodes as an empty object.
func decodeToolArgs(args map[string]any, dst any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "invalid tool arguments", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Wrap(errs.InvalidArgument, "invalid tool arguments: "+err.Error(), err)
	}
	return nil
}

// classifyNotesError keeps coded service errors and wraps anything else as
// internal so raw causes stay out of tool output.
func classifyNotesError(err error, op string) error {
	if err == nil {
		return nil
	}
	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}
	return errs.Wrap(errs.Internal, op+" failed", err)
}

func marshalAny(value any) []byte {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil
	}
	return data
}

func newToolResultJSON(value any) (*mcp.CallToolResult, error) {
	data := marshalAny(value)
	if data == nil {
		return nil, errs.New(errs.Internal, "failed to encode tool result")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil
}

// newToolResultError creates a tool result indicating an error.
func newToolResultError(err error) *mcp.CallToolResult {
	payload := toolErrorPayload{
		Code:    string(errs.CodeOf(err)),
		Message: errs.MessageOf(err),
		Details: errs.DetailsOf(err),
	}
	if len(payload.Details) == 0 {
		payload.Details = nil
	}
	text := string(marshalAny(payload))
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}
