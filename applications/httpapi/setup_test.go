package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edgecache/edgecache/domain/engine"
	"github.com/edgecache/edgecache/domain/events"
	"github.com/edgecache/edgecache/domain/instance"
	"github.com/edgecache/edgecache/domain/pubsub"
	"github.com/edgecache/edgecache/domain/ratelimit"
	"github.com/edgecache/edgecache/infrastructure/logging"
	"github.com/edgecache/edgecache/infrastructure/metrics"
)

// testServer bundles the collaborators a Handler needs, with a fresh
// Prometheus registry per test so collector registration never collides
// across the package's test functions.
type testServer struct {
	handler     http.Handler
	shared      *engine.Engine
	provisioner *instance.StaticProvisioner
	router      *instance.Router
	broker      *pubsub.Broker
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()

	shared := engine.New(engine.DefaultConfig(), events.New())
	shared.StartReaper()
	t.Cleanup(shared.Close)

	provisioner := instance.NewStaticProvisioner()
	router := instance.NewRouter(shared, provisioner, nil)
	broker := pubsub.New()
	limiter := ratelimit.New()
	t.Cleanup(limiter.Close)

	logger := logging.New("test", "error", "json")
	m := metrics.NewWithRegistry("edgecache_test", prometheus.NewRegistry())

	allOpts := append([]Option{WithMetrics(m)}, opts...)
	handler := NewHandler(shared, router, provisioner, broker, limiter, logger, allOpts...)

	return &testServer{
		handler:     handler,
		shared:      shared,
		provisioner: provisioner,
		router:      router,
		broker:      broker,
	}
}

func (ts *testServer) do(method, target string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) doRequest(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func httptestNewRequestWithOwner(method, target, owner string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("X-Owner-Address", owner)
	return req
}
