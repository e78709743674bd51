package notes

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// timestampPrecision matches ISO-8601 millisecond timestamps.
const timestampPrecision = time.Millisecond

// Store is the keyed note collection the Service delegates to.
// Implementations return copies; the second result reports presence.
type Store interface {
	Create(params CreateNoteParams) Note
	FindAll() []Note
	FindByID(id string) (Note, bool)
	Update(id string, params UpdateNoteParams) (Note, bool)
	Delete(id string) bool
	Len() int
}

// MemStore holds notes in memory for the lifetime of the process.
type MemStore struct {
	mu    sync.RWMutex
	notes map[string]Note
	order []string
	clock Clock
}

// NewMemStore creates an empty store. A nil clock uses the system clock.
func NewMemStore(clock Clock) *MemStore {
	if clock == nil {
		clock = SystemClock{}
	}
	return &MemStore{
		notes: make(map[string]Note),
		clock: clock,
	}
}

func (s *MemStore) now() time.Time {
	return s.clock.Now().UTC().Truncate(timestampPrecision)
}

// Create stores a new note with a fresh id and timestamps.
func (s *MemStore) Create(params CreateNoteParams) Note {
	now := s.now()
	note := Note{
		ID:        uuid.NewString(),
		Title:     params.Title,
		Content:   params.Content,
		Tags:      cloneTags(params.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[note.ID] = note
	s.order = append(s.order, note.ID)
	return note.clone()
}

// FindAll returns every note in insertion order.
func (s *MemStore) FindAll() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Note, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.notes[id].clone())
	}
	return out
}

// FindByID returns the note with the given id.
func (s *MemStore) FindByID(id string) (Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	note, ok := s.notes[id]
	if !ok {
		return Note{}, false
	}
	return note.clone(), true
}

// Update merges the non-nil fields of params over the existing note.
// UpdatedAt always moves forward, even if the clock has not.
func (s *MemStore) Update(id string, params UpdateNoteParams) (Note, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[id]
	if !ok {
		return Note{}, false
	}
	if params.Title != nil {
		note.Title = *params.Title
	}
	if params.Content != nil {
		note.Content = *params.Content
	}
	if params.Tags != nil {
		note.Tags = cloneTags(*params.Tags)
	}
	if !now.After(note.UpdatedAt) {
		now = note.UpdatedAt.Add(timestampPrecision)
	}
	note.UpdatedAt = now
	s.notes[id] = note
	return note.clone(), true
}

// Delete removes the note and reports whether it existed.
func (s *MemStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[id]; !ok {
		return false
	}
	delete(s.notes, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

// Len returns the number of stored notes.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}
