package obs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func testExtractTraceID_ValidTraceparent(t *rapid.T) {
	traceID := rapid.StringMatching(`[0-9a-f]{32}`).Filter(func(s string) bool {
		return s != strings.Repeat("0", 32)
	}).Draw(t, "trace_id")
	spanID := rapid.StringMatching(`[0-9a-f]{16}`).Draw(t, "span_id")

	got := extractTraceID("00-" + traceID + "-" + spanID + "-01")
	if got != traceID {
		t.Fatalf("extractTraceID mismatch: got=%q want=%q", got, traceID)
	}
}

func TestExtractTraceID_ValidTraceparent(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testExtractTraceID_ValidTraceparent)
}

func TestExtractTraceID_RejectsMalformed(t *testing.T) {
	t.Parallel()
	for _, in := range []string{
		"",
		"garbage",
		"00-" + strings.Repeat("0", 32) + "-0000000000000001-01",
		"00-" + strings.Repeat("z", 32) + "-0000000000000001-01",
		"00-abc-0000000000000001-01",
	} {
		if got := extractTraceID(in); got != "" {
			t.Fatalf("extractTraceID(%q) = %q, want empty", in, got)
		}
	}
}

func TestRequestContextMiddleware_PropagatesRequestID(t *testing.T) {
	var seen Correlation
	handler := RequestContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
	req.Header.Set("X-Request-Id", "req-fixed")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen.RequestID != "req-fixed" {
		t.Fatalf("RequestID = %q, want req-fixed", seen.RequestID)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-fixed" {
		t.Fatalf("X-Request-Id header = %q", got)
	}
}

func TestRequestContextMiddleware_GeneratesRequestID(t *testing.T) {
	var seen Correlation
	handler := RequestContextMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.HasPrefix(seen.RequestID, "req-") {
		t.Fatalf("generated RequestID = %q", seen.RequestID)
	}
}

func TestAccessLogMiddleware_EmitsStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutputForTests(&buf)
	defer restore()

	handler := RequestContextMiddleware(AccessLogMiddleware("test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ok"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader("{}"))
	req.Header.Set("X-Request-Id", "req-log")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var event map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &event); err != nil {
		t.Fatalf("access log is not a single JSON line: %v (%q)", err, buf.String())
	}
	checks := map[string]any{
		"msg":        "http_access",
		"method":     "POST",
		"path":       "/api/notes",
		"status":     float64(http.StatusCreated),
		"resp_bytes": float64(2),
		"request_id": "req-log",
		"pkg":        "test",
	}
	for key, want := range checks {
		if event[key] != want {
			t.Fatalf("event[%q] = %#v, want %#v (event=%v)", key, event[key], want, event)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
