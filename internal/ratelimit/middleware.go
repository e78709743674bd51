package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/obs"
)

// DefaultRetryAfterSeconds is the Retry-After value sent with a 429.
const DefaultRetryAfterSeconds = 1

// ClientKey identifies the caller by the remote address host. Forwarding
// headers are ignored since any client can set them.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedClientKey uses the first X-Forwarded-For hop and falls back to
// ClientKey. Use it only behind a proxy that sets the header.
func ForwardedClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return ClientKey(r)
}

// Middleware rejects requests over the per-client limit with 429 and a JSON
// error body. Allowed responses carry X-RateLimit-Remaining.
func Middleware(limiter *RateLimiter, keyFunc func(r *http.Request) string) func(http.Handler) http.Handler {
	if keyFunc == nil {
		keyFunc = ClientKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			bucket := limiter.GetLimiter(key)
			if !bucket.Allow() {
				obs.From(r.Context()).Warn("rate_limited", "pkg", "ratelimit", "client", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(DefaultRetryAfterSeconds))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(errs.HTTPStatus(errs.ResourceExhausted))
				json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests"})
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(int(bucket.Tokens()), 0)))
			next.ServeHTTP(w, r)
		})
	}
}
