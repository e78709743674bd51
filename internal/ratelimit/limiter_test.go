package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// clientKeyGenerator generates client keys shaped like IPv4 addresses.
func clientKeyGenerator() *rapid.Generator[string] {
	return rapid.StringMatching(`10\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}`)
}

// lowRefill returns a config whose refill is negligible during a test.
func lowRefill(burst int) Config {
	return Config{RPS: 0.001, Burst: burst, CleanupInterval: time.Hour}
}

// =============================================================================
// Property: Requests within burst succeed
// =============================================================================

func testRateLimiter_RequestsWithinLimit(t *rapid.T) {
	burst := rapid.IntRange(1, 100).Draw(t, "burst")
	rl := NewRateLimiter(lowRefill(burst))
	defer rl.Stop()

	key := clientKeyGenerator().Draw(t, "key")
	n := rapid.IntRange(1, burst).Draw(t, "n")
	for i := 0; i < n; i++ {
		if !rl.Allow(key) {
			t.Fatalf("Request %d of %d should have been allowed (burst %d)", i+1, n, burst)
		}
	}
}

func TestRateLimiter_RequestsWithinLimit(t *testing.T) {
	rapid.Check(t, testRateLimiter_RequestsWithinLimit)
}

func FuzzRateLimiter_RequestsWithinLimit(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testRateLimiter_RequestsWithinLimit))
}

// =============================================================================
// Property: Requests beyond burst are blocked, per client
// =============================================================================

func testRateLimiter_ExceedingLimitIsPerClient(t *rapid.T) {
	burst := rapid.IntRange(1, 20).Draw(t, "burst")
	rl := NewRateLimiter(lowRefill(burst))
	defer rl.Stop()

	key1 := clientKeyGenerator().Draw(t, "key1")
	key2 := clientKeyGenerator().Filter(func(s string) bool { return s != key1 }).Draw(t, "key2")

	for i := 0; i < burst; i++ {
		rl.Allow(key1)
	}
	if rl.Allow(key1) {
		t.Fatalf("Request beyond burst %d should have been blocked", burst)
	}
	if !rl.Allow(key2) {
		t.Fatal("Second client should be unaffected by the first")
	}
	if rl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", rl.Len())
	}
}

func TestRateLimiter_ExceedingLimitIsPerClient(t *testing.T) {
	rapid.Check(t, testRateLimiter_ExceedingLimitIsPerClient)
}

func FuzzRateLimiter_ExceedingLimitIsPerClient(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testRateLimiter_ExceedingLimitIsPerClient))
}

func TestRateLimiter_CleanupDropsIdleClients(t *testing.T) {
	rl := NewRateLimiter(lowRefill(5))
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")

	rl.cleanupBefore(time.Now().Add(-time.Minute))
	if rl.Len() != 2 {
		t.Fatalf("recent clients were dropped: Len = %d", rl.Len())
	}

	rl.cleanupBefore(time.Now().Add(time.Minute))
	if rl.Len() != 0 {
		t.Fatalf("idle clients were kept: Len = %d", rl.Len())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(Config{RPS: 1, Burst: 1})
	rl.Stop()
	rl.Stop()
}

func TestRateLimiter_ConcurrentAllowNeverExceedsBurst(t *testing.T) {
	const burst = 25
	rl := NewRateLimiter(lowRefill(burst))
	defer rl.Stop()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("10.0.0.9") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != burst {
		t.Fatalf("allowed %d requests, want exactly %d", got, burst)
	}
}

// =============================================================================
// Middleware
// =============================================================================

func TestMiddleware_Returns429WithJSONBody(t *testing.T) {
	rl := NewRateLimiter(lowRefill(2))
	defer rl.Stop()

	handler := Middleware(rl, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		req.RemoteAddr = "192.0.2.1:4242"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do(); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d, want 200", i+1, rec.Code)
		}
	}

	rec := do()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["error"] != "Too many requests" {
		t.Fatalf("error = %q", body["error"])
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	if got := ClientKey(req); got != "192.0.2.7" {
		t.Fatalf("ClientKey = %q, want 192.0.2.7", got)
	}

	req.Header.Set("X-Forwarded-For", " 203.0.113.5 , 10.0.0.1")
	if got := ClientKey(req); got != "192.0.2.7" {
		t.Fatalf("ClientKey must ignore X-Forwarded-For, got %q", got)
	}
	if got := ForwardedClientKey(req); got != "203.0.113.5" {
		t.Fatalf("ForwardedClientKey = %q, want 203.0.113.5", got)
	}
	req.Header.Set("X-Forwarded-For", " , 10.0.0.1")
	if got := ForwardedClientKey(req); got != "192.0.2.7" {
		t.Fatalf("ForwardedClientKey with empty first hop = %q", got)
	}

	req.Header.Del("X-Forwarded-For")
	req.RemoteAddr = "pipe"
	if got := ClientKey(req); got != "pipe" {
		t.Fatalf("ClientKey without port = %q", got)
	}
}
