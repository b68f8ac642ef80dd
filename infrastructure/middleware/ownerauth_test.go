package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndParseOwnerToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueOwnerToken(secret, "0xowner", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	owner, err := ParseOwnerToken(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if owner != "0xowner" {
		t.Errorf("owner = %q, want %q", owner, "0xowner")
	}
}

func TestParseOwnerTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueOwnerToken([]byte("secret-a"), "0xowner", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseOwnerToken([]byte("secret-b"), token); err == nil {
		t.Error("expected parse with wrong secret to fail")
	}
}

func TestParseOwnerTokenRejectsExpired(t *testing.T) {
	token, err := IssueOwnerToken([]byte("secret"), "0xowner", -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ParseOwnerToken([]byte("secret"), token); err == nil {
		t.Error("expected parse of expired token to fail")
	}
}

func TestOwnerTokenMiddlewareSetsHeaderFromBearerToken(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueOwnerToken(secret, "0xowner", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var seenOwner string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenOwner = r.Header.Get("X-Owner-Address")
		w.WriteHeader(http.StatusOK)
	})

	mw := NewOwnerTokenMiddleware(secret, "X-Owner-Address")
	req := httptest.NewRequest(http.MethodGet, "/cache/get?key=k", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	mw.Handler(next).ServeHTTP(rec, req)

	if seenOwner != "0xowner" {
		t.Errorf("downstream owner header = %q, want %q", seenOwner, "0xowner")
	}
}

func TestOwnerTokenMiddlewareLeavesExplicitHeaderAlone(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueOwnerToken(secret, "0xtoken-owner", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var seenOwner string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenOwner = r.Header.Get("X-Owner-Address")
	})

	mw := NewOwnerTokenMiddleware(secret, "X-Owner-Address")
	req := httptest.NewRequest(http.MethodGet, "/cache/get?key=k", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Owner-Address", "0xexplicit-owner")
	rec := httptest.NewRecorder()

	mw.Handler(next).ServeHTTP(rec, req)

	if seenOwner != "0xexplicit-owner" {
		t.Errorf("downstream owner header = %q, want explicit header preserved", seenOwner)
	}
}

func TestOwnerTokenMiddlewareNoopWithoutSecret(t *testing.T) {
	var called bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	mw := NewOwnerTokenMiddleware(nil, "X-Owner-Address")
	req := httptest.NewRequest(http.MethodGet, "/cache/get?key=k", nil)
	rec := httptest.NewRecorder()

	mw.Handler(next).ServeHTTP(rec, req)

	if !called {
		t.Error("expected next handler to be called")
	}
}
