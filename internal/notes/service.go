package notes

import (
	"strings"

	"github.com/kuitang/notes-api/internal/errs"
)

// Service validates note input and delegates storage to a Store.
type Service struct {
	store Store
}

// NewService creates a notes service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Validate checks payload against the note rules. With partial set, title
// and content are only checked when present. Every rule is evaluated, so
// all violations are reported together.
func (s *Service) Validate(payload Payload, partial bool) (bool, []string) {
	var problems []string

	if title, present := payload["title"]; !partial || present {
		if !isNonBlankString(title) {
			problems = append(problems, MsgTitleRequired)
		}
	}
	if content, present := payload["content"]; !partial || present {
		if !isNonBlankString(content) {
			problems = append(problems, MsgContentRequired)
		}
	}
	if tags, present := payload["tags"]; present {
		if _, ok := asStringSlice(tags); !ok {
			problems = append(problems, MsgTagsInvalid)
		}
	}

	return len(problems) == 0, problems
}

// List returns all notes.
func (s *Service) List() []Note {
	return s.store.FindAll()
}

// Get returns the note with the given id. Absence is not an error.
func (s *Service) Get(id string) (Note, bool) {
	return s.store.FindByID(id)
}

// Create validates payload and stores a new note.
func (s *Service) Create(payload Payload) (Note, error) {
	if ok, problems := s.Validate(payload, false); !ok {
		return Note{}, validationError(problems)
	}

	params := CreateNoteParams{
		Title:   payload["title"].(string),
		Content: payload["content"].(string),
	}
	if tags, ok := asStringSlice(payload["tags"]); ok {
		params.Tags = tags
	}
	return s.store.Create(params), nil
}

// Update validates payload, checks the note exists, then applies the
// fields present in payload.
func (s *Service) Update(id string, payload Payload) (Note, error) {
	if ok, problems := s.Validate(payload, true); !ok {
		return Note{}, validationError(problems)
	}
	if _, ok := s.store.FindByID(id); !ok {
		return Note{}, ErrNoteNotFound
	}

	var params UpdateNoteParams
	if title, ok := payload["title"].(string); ok {
		params.Title = &title
	}
	if content, ok := payload["content"].(string); ok {
		params.Content = &content
	}
	if tags, ok := asStringSlice(payload["tags"]); ok {
		params.Tags = &tags
	}

	note, ok := s.store.Update(id, params)
	if !ok {
		// Removed between the existence check and the write.
		return Note{}, ErrNoteNotFound
	}
	return note, nil
}

// Delete removes the note, returning whether a removal occurred.
func (s *Service) Delete(id string) (bool, error) {
	if _, ok := s.store.FindByID(id); !ok {
		return false, ErrNoteNotFound
	}
	return s.store.Delete(id), nil
}

// Count returns the number of stored notes.
func (s *Service) Count() int {
	return s.store.Len()
}

func validationError(problems []string) error {
	return errs.WithDetails(errs.InvalidArgument, "Validation error", problems)
}

func isNonBlankString(v any) bool {
	str, ok := v.(string)
	return ok && strings.TrimSpace(str) != ""
}

// asStringSlice accepts decoded JSON arrays ([]any) and native []string.
func asStringSlice(v any) ([]string, bool) {
	switch typed := v.(type) {
	case []string:
		return append([]string{}, typed...), true
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}
