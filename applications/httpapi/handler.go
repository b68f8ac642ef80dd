// Package httpapi exposes the cache engine, pub/sub broker, and instance
// router over a JSON HTTP surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/edgecache/edgecache/domain/cache"
	"github.com/edgecache/edgecache/domain/engine"
	"github.com/edgecache/edgecache/domain/instance"
	"github.com/edgecache/edgecache/domain/pubsub"
	"github.com/edgecache/edgecache/domain/ratelimit"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
	"github.com/edgecache/edgecache/infrastructure/httputil"
	"github.com/edgecache/edgecache/infrastructure/logging"
	"github.com/edgecache/edgecache/infrastructure/metrics"
	"github.com/edgecache/edgecache/infrastructure/middleware"
	"github.com/edgecache/edgecache/pkg/version"
)

const defaultNamespace = "default"

// fullEngine is the complete per-namespace command surface the handlers
// dispatch to. *engine.Engine satisfies it directly; a TEE-wrapped instance
// only satisfies the narrower instance.CacheEngine (Get/Set), so handlers
// that need the rest of the surface reject TEE-wrapped namespaces.
type fullEngine interface {
	instance.CacheEngine

	Del(namespace string, keys ...string) int
	Exists(namespace string, keys ...string) int
	Incr(namespace, key string, by int64) (int64, error)
	Decr(namespace, key string, by int64) (int64, error)
	Append(namespace, key, value string) (int, error)
	Expire(namespace, key string, ttlSeconds int64) (bool, error)
	Persist(namespace, key string) bool
	TTL(namespace, key string) int64

	HSet(namespace, key, field, value string) (bool, error)
	HGet(namespace, key, field string) (string, bool, error)
	HGetAll(namespace, key string) (cache.HashView, error)
	HMSet(namespace, key string, fields map[string]string) error

	LPush(namespace, key string, values ...string) (int, error)
	RPush(namespace, key string, values ...string) (int, error)
	LPop(namespace, key string) (string, bool, error)
	RPop(namespace, key string) (string, bool, error)
	LRange(namespace, key string, start, stop int) ([]string, error)
	LLen(namespace, key string) (int, error)

	SAdd(namespace, key string, members ...string) (int, error)
	SRem(namespace, key string, members ...string) (int, error)
	SMembers(namespace, key string) ([]string, error)
	SIsMember(namespace, key, member string) (bool, error)
	SCard(namespace, key string) (int, error)

	ZAdd(namespace, key string, members []cache.ZMember) (int, error)
	ZRange(namespace, key string, start, stop int) ([]cache.ZMember, error)
	ZCard(namespace, key string) (int, error)

	Keys(namespace, pattern string) ([]string, error)
	FlushDb(namespace string)
}

// Handler bundles the HTTP endpoints for the cache service.
type Handler struct {
	shared      *engine.Engine
	router      *instance.Router
	provisioner instance.Provisioner
	broker      *pubsub.Broker
	limiter     *ratelimit.Limiter
	metrics     *metrics.Metrics
	logger      *logging.Logger
	ownerHeader string
	health      *middleware.HealthChecker
}

// Option customizes Handler construction.
type Option func(*Handler)

// WithOwnerHeader overrides the default owner-address header name.
func WithOwnerHeader(header string) Option {
	return func(h *Handler) {
		if strings.TrimSpace(header) != "" {
			h.ownerHeader = header
		}
	}
}

// WithMetrics wires a metrics collector used for the instrumentation
// middleware and for stats introspection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithHealthCheck registers an additional named liveness check (e.g. the
// worker-location registry's heartbeat) alongside the engine/provisioner/
// broker checks NewHandler wires by default.
func WithHealthCheck(name string, check func() error) Option {
	return func(h *Handler) {
		if h.health == nil {
			h.health = middleware.NewHealthChecker(version.FullVersion())
		}
		h.health.RegisterCheck(name, check)
	}
}

// NewHandler builds the full cache service mux and wraps it with the
// fixed-window rate limiter only. The rest of the middleware chain
// (recovery, request id, CORS, body limit, burst limiter, metrics) is
// applied by the caller.
func NewHandler(
	shared *engine.Engine,
	router *instance.Router,
	provisioner instance.Provisioner,
	broker *pubsub.Broker,
	limiter *ratelimit.Limiter,
	logger *logging.Logger,
	opts ...Option,
) http.Handler {
	h := &Handler{
		shared:      shared,
		router:      router,
		provisioner: provisioner,
		broker:      broker,
		limiter:     limiter,
		logger:      logger,
		ownerHeader: httputil.OwnerAddressHeader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.health == nil {
		h.health = middleware.NewHealthChecker(version.FullVersion())
	}
	h.health.RegisterCheck("engine", func() error {
		if h.shared == nil {
			return errors.New("engine not configured")
		}
		if !h.shared.ReaperRunning() {
			return errors.New("TTL reaper is not running")
		}
		return nil
	})
	h.health.RegisterCheck("provisioner", func() error {
		if h.provisioner == nil {
			return errors.New("instance provisioner not configured")
		}
		return nil
	})
	h.health.RegisterCheck("pubsub", func() error {
		if h.broker == nil {
			return errors.New("pub/sub broker not configured")
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle("/cache/metrics", metrics.Handler())

	mountRoutes(mux,
		route{pattern: "/cache/set", method: http.MethodPost, handler: h.set},
		route{pattern: "/cache/get", method: http.MethodGet, handler: h.get},
		route{pattern: "/cache/del", method: http.MethodPost, handler: h.del},
		route{pattern: "/cache/mget", method: http.MethodPost, handler: h.mget},
		route{pattern: "/cache/mset", method: http.MethodPost, handler: h.mset},
		route{pattern: "/cache/incr", method: http.MethodPost, handler: h.incr},
		route{pattern: "/cache/decr", method: http.MethodPost, handler: h.decr},

		route{pattern: "/cache/ttl", method: http.MethodGet, handler: h.ttl},
		route{pattern: "/cache/expire", method: http.MethodPost, handler: h.expire},

		route{pattern: "/cache/hget", method: http.MethodGet, handler: h.hget},
		route{pattern: "/cache/hset", method: http.MethodPost, handler: h.hset},
		route{pattern: "/cache/hmset", method: http.MethodPost, handler: h.hmset},
		route{pattern: "/cache/hgetall", method: http.MethodGet, handler: h.hgetall},

		route{pattern: "/cache/lpush", method: http.MethodPost, handler: h.lpush},
		route{pattern: "/cache/rpush", method: http.MethodPost, handler: h.rpush},
		route{pattern: "/cache/lpop", method: http.MethodGet, handler: h.lpop},
		route{pattern: "/cache/rpop", method: http.MethodGet, handler: h.rpop},
		route{pattern: "/cache/lrange", method: http.MethodPost, handler: h.lrange},
		route{pattern: "/cache/llen", method: http.MethodGet, handler: h.llen},

		route{pattern: "/cache/sadd", method: http.MethodPost, handler: h.sadd},
		route{pattern: "/cache/srem", method: http.MethodPost, handler: h.srem},
		route{pattern: "/cache/smembers", method: http.MethodGet, handler: h.smembers},
		route{pattern: "/cache/sismember", method: http.MethodGet, handler: h.sismember},
		route{pattern: "/cache/scard", method: http.MethodGet, handler: h.scard},

		route{pattern: "/cache/zadd", method: http.MethodPost, handler: h.zadd},
		route{pattern: "/cache/zrange", method: http.MethodGet, handler: h.zrange},
		route{pattern: "/cache/zcard", method: http.MethodGet, handler: h.zcard},

		route{pattern: "/cache/keys", method: http.MethodGet, handler: h.keys},
		route{pattern: "/cache/clear", method: http.MethodDelete, handler: h.clear},

		route{pattern: "/cache/publish", method: http.MethodPost, handler: h.publish},
		route{pattern: "/cache/pubsub/channels", method: http.MethodGet, handler: h.pubsubChannels},
		route{pattern: "/cache/pubsub/numsub", method: http.MethodPost, handler: h.pubsubNumSub},
		route{pattern: "/cache/pubsub/numpat", method: http.MethodGet, handler: h.pubsubNumPat},

		route{pattern: "/cache/plans", method: http.MethodGet, handler: h.plans},

		route{pattern: "/cache/health", method: http.MethodGet, handler: h.serveHealth},
		route{pattern: "/cache/stats", method: http.MethodGet, handler: h.stats},
	)
	// /cache/instances and /cache/instances/:id share a prefix; dispatch by
	// method and path shape inside one handler.
	mux.HandleFunc("/cache/instances/", h.instanceResource)
	mux.HandleFunc("/cache/instances", h.instances)

	return h.rateLimited(mux)
}

// rateLimited wraps next with the fixed-window ceiling, attaching the
// documented X-RateLimit-* headers to every non-exempt response and
// refusing with 429 once a caller's window is exhausted.
func (h *Handler) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter == nil || ratelimit.Exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		key := ratelimit.ResolveKey(httputil.OwnerAddress(r, h.ownerHeader), clientIP(r))
		result := h.limiter.Allow(key)

		w.Header().Set("X-RateLimit-Limit", itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", itoa(int(result.ResetAt.Unix())))

		if !result.Allowed {
			writeServiceError(w, r, h.metrics, apperrors.RateLimited(result.Limit, result.RetryAfterSecs))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// ---------------------------------------------------------------------------
// Shared request/response helpers
// ---------------------------------------------------------------------------

func namespaceParam(r *http.Request, body namespaced) string {
	if body != nil {
		if ns := strings.TrimSpace(body.namespaceField()); ns != "" {
			return ns
		}
	}
	if ns := strings.TrimSpace(r.URL.Query().Get("namespace")); ns != "" {
		return ns
	}
	return defaultNamespace
}

// namespaced is implemented by request payloads that carry an optional
// namespace field, so namespaceParam can read it generically.
type namespaced interface {
	namespaceField() string
}

type namespaceOnly struct {
	Namespace string `json:"namespace"`
}

func (n namespaceOnly) namespaceField() string { return n.Namespace }

func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return apperrors.InvalidOperation("malformed request body: " + err.Error())
	}
	return nil
}

// resolveEngine resolves the namespace's engine and requires the full
// per-key command surface (rejecting TEE-wrapped namespaces for anything
// beyond Get/Set).
func (h *Handler) resolveEngine(r *http.Request, namespace string) (fullEngine, error) {
	resolved, err := h.router.Resolve(r.Context(), namespace)
	if err != nil {
		return nil, err
	}
	fe, ok := resolved.(fullEngine)
	if !ok {
		return nil, apperrors.InvalidOperation("operation not supported on a TEE-wrapped instance")
	}
	return fe, nil
}

// resolveNarrowEngine resolves the namespace's engine for Get/Set only,
// which TEE-wrapped instances support directly.
func (h *Handler) resolveNarrowEngine(r *http.Request, namespace string) (instance.CacheEngine, error) {
	return h.router.Resolve(r.Context(), namespace)
}

func (h *Handler) authorizeSubscription(r *http.Request, namespace string) error {
	if h.router == nil {
		return nil
	}
	return h.router.AuthorizeSubscription(r.Context(), namespace)
}

// requireOwner checks the caller-asserted owner-address header against
// expectedOwner for destructive per-instance operations. An empty
// expectedOwner means the instance has no registered owner and the check is
// skipped.
func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request, expectedOwner string) bool {
	if expectedOwner == "" {
		return true
	}
	got := httputil.OwnerAddress(r, h.ownerHeader)
	if got == "" || !middleware.IsValidHex(got) {
		httputil.Unauthorized(w, "owner address header is missing or not hex-encoded")
		return false
	}
	if !httputil.RequireOwnerAddress(w, r, h.ownerHeader, expectedOwner) {
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, m *metrics.Metrics, err error) {
	serviceErr := apperrors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = apperrors.Internal("internal error", err)
	}
	if m != nil {
		m.RecordError("edgecache", string(serviceErr.Code))
	}
	httputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	httputil.WriteJSON(w, status, v)
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	h.health.Handler().ServeHTTP(w, r)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats := h.shared.Stats()
	writeJSON(w, http.StatusOK, stats)
}
