// Package mcp exposes the notes service as Model Context Protocol tools over
// the Streamable HTTP transport.
package mcp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kuitang/notes-api/internal/logutil"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
)

const (
	maxMCPBodyBytes           = 1 << 20
	mcpDebugBodyLogLimitBytes = 8 * 1024

	serverName    = "notes-api"
	serverVersion = "1.0.0"
)

// Server wraps the MCP server with notes handling
type Server struct {
	httpHandler http.Handler
}

// NewServer creates an MCP server exposing the note tools.
func NewServer(notesSvc *notes.Service) *Server {
	handler := NewHandler(notesSvc)

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		nil,
	)

	for _, tool := range NoteToolDefinitions() {
		mcp.AddTool(mcpServer, tool, handler.createToolHandler(tool.Name))
	}
	registerPrompts(mcpServer)

	httpHandler := mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			// Plain JSON responses; no SSE stream is ever opened.
			JSONResponse: true,
			// No per-client state is kept, so the initialize handshake is optional.
			Stateless: true,
		},
	)

	return &Server{httpHandler: httpHandler}
}

// ServeHTTP implements http.Handler for the Streamable HTTP transport.
// Only POST (JSON-RPC messages) and DELETE are served; GET would open a
// server-to-client stream, which this server never uses.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Mcp-Session-Id, Mcp-Protocol-Version")
	w.Header().Set("Access-Control-Allow-Methods", "POST, DELETE, OPTIONS")

	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost, http.MethodDelete:
	default:
		w.Header().Set("Allow", "POST, DELETE, OPTIONS")
		writePlainError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	logger := obs.From(r.Context()).With("pkg", "mcp")

	if sid := r.Header.Get("Mcp-Session-Id"); sid != "" && !isASCII(sid) {
		writePlainError(w, http.StatusBadRequest, "Invalid Mcp-Session-Id header")
		return
	}

	var reqBody []byte
	if r.Body != nil && r.Method == http.MethodPost {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMCPBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				logger.Warn("mcp_body_too_large", "limit", maxMCPBodyBytes)
				writePlainError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			logger.Error("mcp_body_read_failed", "error", err)
			writePlainError(w, http.StatusBadRequest, "Failed to read request body")
			return
		}
		reqBody = body
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	logger.Debug("mcp_request",
		"method", r.Method,
		"headers", formatMCPHeadersForLog(r.Header),
		"body", logutil.FormatBodyForLog(r.Header.Get("Content-Type"), reqBody, mcpDebugBodyLogLimitBytes),
	)

	wrapped, rec := obs.NewResponseRecorder(w)
	defer func() {
		if p := recover(); p != nil {
			logger.Error("mcp_panic", "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			if !rec.WroteHeader() {
				writePlainError(wrapped, http.StatusInternalServerError, "Internal server error")
			}
			return
		}
		if !rec.WroteHeader() {
			logger.Error("mcp_no_response", "method", r.Method)
			writePlainError(wrapped, http.StatusInternalServerError, "MCP handler returned without writing response")
			return
		}
		if rec.StatusCode() >= http.StatusBadRequest {
			logger.Warn("mcp_request_failed", "method", r.Method, "status", rec.StatusCode())
		}
	}()

	s.httpHandler.ServeHTTP(wrapped, r)
}

func writePlainError(w http.ResponseWriter, status int, message string) {
	http.Error(w, message, status)
}

// formatMCPHeadersForLog renders request headers with credentials redacted.
func formatMCPHeadersForLog(headers http.Header) string {
	return logutil.FormatHeadersForLog(headers)
}

// isASCII reports whether v is non-blank printable ASCII.
func isASCII(v string) bool {
	if strings.TrimSpace(v) == "" {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < 0x21 || v[i] > 0x7e {
			return false
		}
	}
	return true
}
