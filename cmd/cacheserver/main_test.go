package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgecache/edgecache/domain/engine"
	"github.com/edgecache/edgecache/domain/events"
	"github.com/edgecache/edgecache/infrastructure/logging"
	"github.com/edgecache/edgecache/infrastructure/metrics"
	"github.com/edgecache/edgecache/infrastructure/middleware"
	"github.com/edgecache/edgecache/pkg/config"
)

func TestCorsAllowedOriginsDefaultsToWildcard(t *testing.T) {
	os.Unsetenv("CORS_ALLOWED_ORIGINS")
	got := corsAllowedOrigins()
	if len(got) != 1 || got[0] != "*" {
		t.Fatalf("corsAllowedOrigins() = %v, want [*]", got)
	}
}

func TestCorsAllowedOriginsSplitsAndDedupes(t *testing.T) {
	os.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,https://a.example")
	defer os.Unsetenv("CORS_ALLOWED_ORIGINS")

	got := corsAllowedOrigins()
	want := []string{"https://a.example", "https://b.example"}
	if len(got) != len(want) {
		t.Fatalf("corsAllowedOrigins() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("corsAllowedOrigins() = %v, want %v", got, want)
		}
	}
}

func TestBuildMiddlewareChainSkipsOwnerAuthWithoutSecret(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Owner-Address") != "" {
			t.Errorf("owner header should not be set without a JWT secret configured")
		}
		w.WriteHeader(http.StatusOK)
	})

	logger := logging.New("test", "error", "json")
	m := metrics.NewWithRegistry("cacheserver_test_noauth", prometheus.NewRegistry())
	burst := middleware.NewRateLimiter(1000, 1000, logger)

	chain := buildMiddlewareChain(next, logger, m, burst, config.AuthConfig{OwnerAddressHeader: "X-Owner-Address"})

	req := httptest.NewRequest(http.MethodGet, "/cache/health", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestBuildMiddlewareChainResolvesOwnerFromValidToken(t *testing.T) {
	secret := []byte("test-secret")

	var gotOwner string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner = r.Header.Get("X-Owner-Address")
		w.WriteHeader(http.StatusOK)
	})

	logger := logging.New("test", "error", "json")
	m := metrics.NewWithRegistry("cacheserver_test_auth", prometheus.NewRegistry())
	burst := middleware.NewRateLimiter(1000, 1000, logger)

	chain := buildMiddlewareChain(next, logger, m, burst, config.AuthConfig{
		OwnerAddressHeader: "X-Owner-Address",
		JWTSecret:          string(secret),
	})

	signed, err := middleware.IssueOwnerToken(secret, "0xowner", time.Minute)
	if err != nil {
		t.Fatalf("IssueOwnerToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/cache/health", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotOwner != "0xowner" {
		t.Errorf("owner header resolved from token = %q, want 0xowner", gotOwner)
	}
}

func TestNewRegistryDefaultsPodIDToHostname(t *testing.T) {
	os.Unsetenv("POD_ID")
	shared := engine.New(engine.DefaultConfig(), events.New())
	defer shared.Close()

	logger := logging.New("test", "error", "json")
	cfg := &config.Config{}
	reg := newRegistry(cfg, shared, logger)
	if reg == nil {
		t.Fatal("newRegistry returned nil")
	}
	reg.Close()
}

func TestNewRegistryUsesPodIDEnvOverride(t *testing.T) {
	os.Setenv("POD_ID", "pod-7")
	defer os.Unsetenv("POD_ID")

	shared := engine.New(engine.DefaultConfig(), events.New())
	defer shared.Close()

	logger := logging.New("test", "error", "json")
	cfg := &config.Config{}
	reg := newRegistry(cfg, shared, logger)
	if reg == nil {
		t.Fatal("newRegistry returned nil")
	}
	reg.Close()
}
