package httpapi

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/edgecache/edgecache/domain/ratelimit"
)

// TestRateLimitBoundary exercises the documented 1000-request fixed window:
// the first 1000 requests from one caller succeed, the 1001st is refused
// with 429 and a positive Retry-After, and a concurrent /cache/health check
// is never counted against the ceiling.
func TestRateLimitBoundary(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < ratelimit.Ceiling; i++ {
		rec := ts.do(http.MethodGet, fmt.Sprintf("/cache/get?key=missing-%d", i), "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("request %d: status = %d, want 404 (not rate limited)", i, rec.Code)
		}
	}

	rec := ts.do(http.MethodGet, "/cache/get?key=overflow", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request %d: status = %d, want 429", ratelimit.Ceiling, rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec = ts.do(http.MethodGet, "/cache/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200 (exempt from the ceiling)", rec.Code)
	}
}

func TestRateLimitHeadersPresentOnSuccess(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/cache/get?key=missing", "")
	if rec.Header().Get("X-RateLimit-Limit") != fmt.Sprint(ratelimit.Ceiling) {
		t.Errorf("X-RateLimit-Limit = %q, want %d", rec.Header().Get("X-RateLimit-Limit"), ratelimit.Ceiling)
	}
	if rec.Header().Get("X-RateLimit-Remaining") != fmt.Sprint(ratelimit.Ceiling-1) {
		t.Errorf("X-RateLimit-Remaining = %q, want %d", rec.Header().Get("X-RateLimit-Remaining"), ratelimit.Ceiling-1)
	}
}
