package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/logutil"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
)

const (
	// DefaultMaxBodyBytes caps request bodies when no limit is configured.
	DefaultMaxBodyBytes int64 = 1 << 20

	// maxLoggedBodyBytes bounds request bodies echoed into debug logs.
	maxLoggedBodyBytes = 2048

	msgInvalidJSON    = "Invalid JSON"
	msgBodyTooLarge   = "Request body too large"
	msgInternalServer = "Internal server error"
	msgNotObject      = "request body must be a JSON object"
)

// Handler wraps the notes service and provides HTTP handlers
type Handler struct {
	notesService *notes.Service
	maxBodyBytes int64
}

// NewHandler creates a new API handler with the given notes service.
// A non-positive maxBodyBytes selects DefaultMaxBodyBytes.
func NewHandler(notesService *notes.Service, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{notesService: notesService, maxBodyBytes: maxBodyBytes}
}

// RegisterRoutes registers all notes API routes on the given mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notes", h.ListNotes)
	mux.HandleFunc("POST /api/notes", h.CreateNote)
	mux.HandleFunc("GET /api/notes/{id}", h.GetNote)
	mux.HandleFunc("PUT /api/notes/{id}", h.UpdateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", h.DeleteNote)
	mux.HandleFunc("GET /api/notes/{id}/html", h.RenderNote)
	mux.HandleFunc("GET /healthz", h.Health)
}

// ListNotes handles GET /api/notes
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, h.notesService.List())
}

// GetNote handles GET /api/notes/{id}
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, ok := h.notesService.Get(r.PathValue("id"))
	if !ok {
		h.writeServiceError(w, r, notes.ErrNoteNotFound)
		return
	}
	writeData(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodePayload(w, r)
	if !ok {
		return
	}

	note, err := h.notesService.Create(payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	obs.From(r.Context()).Info("note_created", "pkg", "api", "note_id", note.ID)
	writeData(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodePayload(w, r)
	if !ok {
		return
	}

	note, err := h.notesService.Update(r.PathValue("id"), payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.notesService.Delete(id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	obs.From(r.Context()).Info("note_deleted", "pkg", "api", "note_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// RenderNote handles GET /api/notes/{id}/html and serves the note as a
// sanitized HTML page.
func (h *Handler) RenderNote(w http.ResponseWriter, r *http.Request) {
	note, ok := h.notesService.Get(r.PathValue("id"))
	if !ok {
		h.writeServiceError(w, r, notes.ErrNoteNotFound)
		return
	}

	page, err := notes.RenderHTML(note)
	if err != nil {
		h.writeServiceError(w, r, errs.Wrap(errs.Internal, "render note", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Notes  int    `json:"notes"`
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Notes: h.notesService.Count()})
}

// decodePayload reads the request body as a JSON object. An empty body is
// an empty object. On failure the error response has already been written.
func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request) (notes.Payload, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: msgBodyTooLarge})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgInvalidJSON, Details: []string{err.Error()}})
		return nil, false
	}

	obs.From(r.Context()).Debug("api_request_body",
		"pkg", "api",
		"method", r.Method,
		"path", r.URL.Path,
		"body", logutil.FormatBodyForLog(r.Header.Get("Content-Type"), body, maxLoggedBodyBytes),
	)

	if len(bytes.TrimSpace(body)) == 0 {
		return notes.Payload{}, true
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgInvalidJSON, Details: []string{err.Error()}})
		return nil, false
	}
	object, ok := decoded.(map[string]any)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgInvalidJSON, Details: []string{msgNotObject}})
		return nil, false
	}
	return notes.Payload(object), true
}

// writeServiceError maps a coded error to its HTTP response. Anything
// without a client-facing code is logged and reported as a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	switch code {
	case errs.InvalidArgument:
		writeJSON(w, errs.HTTPStatus(code), ErrorResponse{Error: errs.MessageOf(err), Details: errs.DetailsOf(err)})
	case errs.NotFound:
		writeJSON(w, errs.HTTPStatus(code), ErrorResponse{Error: errs.MessageOf(err)})
	default:
		obs.From(r.Context()).Error("api_internal_error",
			"pkg", "api",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: msgInternalServer})
	}
}

// DataResponse is the success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, DataResponse{Data: data})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
