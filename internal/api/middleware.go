package api

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/kuitang/notes-api/internal/obs"
)

// Recover turns a panicking handler into a logged 500 response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped, rec := obs.NewResponseRecorder(w)
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}
			obs.From(r.Context()).Error("api_panic",
				"pkg", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()),
			)
			if !rec.WroteHeader() {
				writeJSON(wrapped, http.StatusInternalServerError, ErrorResponse{Error: msgInternalServer})
			}
		}()
		next.ServeHTTP(wrapped, r)
	})
}
