package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*apiClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &apiClient{baseURL: srv.URL, http: srv.Client()}, srv
}

func TestAPIClientRequestSendsOwnerHeader(t *testing.T) {
	var gotOwner string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotOwner = r.Header.Get("X-Owner-Address")
		w.Write([]byte(`{"ok":true}`))
	})
	c.owner = "0xowner"

	data, err := c.request(context.Background(), http.MethodGet, "/cache/get", url.Values{"key": {"k"}}, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if gotOwner != "0xowner" {
		t.Errorf("owner header = %q, want 0xowner", gotOwner)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("body = %s", data)
	}
}

func TestAPIClientRequestEncodesJSONPayload(t *testing.T) {
	var gotBody map[string]any
	var gotContentType string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{}`))
	})

	_, err := c.request(context.Background(), http.MethodPost, "/cache/set", nil, map[string]any{"key": "k", "value": "v"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("content-type = %q, want application/json", gotContentType)
	}
	if gotBody["key"] != "k" || gotBody["value"] != "v" {
		t.Errorf("decoded body = %+v", gotBody)
	}
}

func TestAPIClientRequestSurfacesServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"key not found","code":"KEY_NOT_FOUND"}`))
	})

	_, err := c.request(context.Background(), http.MethodGet, "/cache/get", url.Values{"key": {"missing"}}, nil)
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "key not found") || !strings.Contains(err.Error(), "KEY_NOT_FOUND") {
		t.Errorf("error = %v, want it to mention message and code", err)
	}
}

func TestAPIClientRequestQueryEncoding(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{}`))
	})

	_, err := c.request(context.Background(), http.MethodGet, "/cache/keys", url.Values{"pattern": {"a*"}, "namespace": {"ns"}}, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	q, _ := url.ParseQuery(gotQuery)
	if q.Get("pattern") != "a*" || q.Get("namespace") != "ns" {
		t.Errorf("query = %q", gotQuery)
	}
}
