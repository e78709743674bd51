package notes

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/kuitang/notes-api/internal/errs"
)

// Validation messages, one per rule. Order matters: Validate reports them
// in this order.
const (
	MsgTitleRequired   = "title must be a non-empty string"
	MsgContentRequired = "content must be a non-empty string"
	MsgTagsInvalid     = "tags must be an array of strings"
)

// TimestampLayout is the wire format for createdAt and updatedAt: UTC with
// exactly three fractional digits.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrNoteNotFound is returned when the referenced id does not exist.
	ErrNoteNotFound = errs.New(errs.NotFound, "Note not found")
)

// Note represents a stored note.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MarshalJSON writes timestamps in TimestampLayout.
func (n Note) MarshalJSON() ([]byte, error) {
	type note Note
	return json.Marshal(struct {
		note
		CreatedAt string `json:"createdAt"`
		UpdatedAt string `json:"updatedAt"`
	}{note(n), formatTimestamp(n.CreatedAt), formatTimestamp(n.UpdatedAt)})
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// clone returns a deep copy so callers never share the tags backing array
// with the store.
func (n Note) clone() Note {
	out := n
	out.Tags = cloneTags(n.Tags)
	return out
}

func cloneTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return slices.Clone(tags)
}

// Payload is a decoded JSON request body. Keys are kept untyped so that
// presence and type can be validated independently.
type Payload map[string]any

// CreateNoteParams contains validated parameters for creating a note.
// A nil Tags means the default empty list.
type CreateNoteParams struct {
	Title   string
	Content string
	Tags    []string
}

// UpdateNoteParams contains validated parameters for updating a note.
// Nil fields are left unchanged.
type UpdateNoteParams struct {
	Title   *string
	Content *string
	Tags    *[]string
}

// NoteListItem is a compact view of a note with a content preview.
type NoteListItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Preview    string    `json:"preview"`
	Tags       []string  `json:"tags"`
	TotalLines int       `json:"total_lines"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// MarshalJSON writes updatedAt in TimestampLayout.
func (i NoteListItem) MarshalJSON() ([]byte, error) {
	type item NoteListItem
	return json.Marshal(struct {
		item
		UpdatedAt string `json:"updatedAt"`
	}{item(i), formatTimestamp(i.UpdatedAt)})
}
