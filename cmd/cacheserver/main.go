// Command cacheserver runs the multi-tenant in-memory cache service: the
// command engine, the instance router, the pub/sub broker, and the worker
// location registry, all exposed over the JSON HTTP surface in
// applications/httpapi.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/edgecache/edgecache/applications/httpapi"
	"github.com/edgecache/edgecache/domain/engine"
	"github.com/edgecache/edgecache/domain/events"
	"github.com/edgecache/edgecache/domain/instance"
	"github.com/edgecache/edgecache/domain/pubsub"
	"github.com/edgecache/edgecache/domain/ratelimit"
	"github.com/edgecache/edgecache/domain/registry"
	"github.com/edgecache/edgecache/domain/tee"
	"github.com/edgecache/edgecache/infrastructure/logging"
	"github.com/edgecache/edgecache/infrastructure/metrics"
	"github.com/edgecache/edgecache/infrastructure/middleware"
	"github.com/edgecache/edgecache/infrastructure/utils"
	"github.com/edgecache/edgecache/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewFromEnv("cacheserver")
	ctx := context.Background()

	bus := events.New()
	shared := engine.New(engine.Config{
		MaxMemoryMB:       cfg.Cache.MaxMemoryMB,
		DefaultTTLSeconds: cfg.Cache.DefaultTTLSeconds,
		MaxTTLSeconds:     cfg.Cache.MaxTTLSeconds,
		ReaperInterval:    time.Duration(cfg.Cache.ReaperInterval) * time.Second,
	}, bus)
	shared.StartReaper()

	provisioner := instance.NewStaticProvisioner()

	var teeFactory func(instance.CacheEngine) instance.CacheEngine
	if cfg.TEE.Enabled {
		keyMaterial := utils.GetEnv("TEE_KEY_MATERIAL", cfg.TEE.KeySource)
		teeFactory = func(inner instance.CacheEngine) instance.CacheEngine {
			decorator, decErr := tee.NewDecorator(inner, keyMaterial)
			if decErr != nil {
				logger.Error(ctx, "construct TEE decorator, falling back to the unwrapped engine", decErr, nil)
				return inner
			}
			return decorator
		}
	}

	router := instance.NewRouter(shared, provisioner, teeFactory)

	broker := pubsub.New()
	limiter := ratelimit.New()
	defer limiter.Close()

	m := metrics.New("cacheserver")

	reg := newRegistry(cfg, shared, logger)
	if reg != nil {
		reg.Start(ctx)
		defer reg.Close()
	}

	handlerOpts := []httpapi.Option{
		httpapi.WithOwnerHeader(cfg.Auth.OwnerAddressHeader),
		httpapi.WithMetrics(m),
	}
	if reg != nil {
		handlerOpts = append(handlerOpts, httpapi.WithHealthCheck("registry", func() error {
			if !reg.Alive() {
				return fmt.Errorf("worker-location registry heartbeat is stale")
			}
			return nil
		}))
	}
	handler := httpapi.NewHandler(shared, router, provisioner, broker, limiter, logger, handlerOpts...)

	burstCfg := middleware.DefaultRateLimiterConfig(logger)
	burstCfg.Window = time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	burstCfg.RequestsPerSecond = cfg.RateLimit.MaxRequests
	burstCfg.Burst = cfg.RateLimit.MaxRequests
	burstLimiter := middleware.NewRateLimiterFromConfig(burstCfg)
	defer middleware.StartCleanupFromConfig(burstLimiter, burstCfg)()

	chain := buildMiddlewareChain(handler, logger, m, burstLimiter, cfg.Auth)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           chain,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	shutdown := middleware.NewGracefulShutdown(server, shutdownTimeout)
	shutdown.OnShutdown(func() {
		shared.Close()
		if reg != nil {
			reg.Close()
		}
		limiter.Close()
	})
	shutdown.ListenForSignals()

	logger.Info(ctx, "cacheserver listening", map[string]interface{}{"addr": addr})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal(ctx, "server error", err)
	}
	shutdown.Wait()
}

// buildMiddlewareChain wraps handler with the documented outer-to-inner
// chain: panic recovery, request-id propagation, CORS, body-size limiting,
// token-bucket burst smoothing, and Prometheus instrumentation. The
// authoritative fixed-window ceiling is applied inside httpapi.NewHandler,
// where the caller key can be resolved against the owner-address header;
// burstLimiter only smooths short spikes ahead of it and never loosens what
// that ceiling refuses.
func buildMiddlewareChain(next http.Handler, logger *logging.Logger, m *metrics.Metrics, burstLimiter *middleware.RateLimiter, auth config.AuthConfig) http.Handler {
	wrapped := m.InstrumentHandler("cacheserver", next)
	wrapped = middleware.NewTimeoutMiddleware(25 * time.Second).Handler(wrapped)
	wrapped = burstLimiter.Handler(wrapped)
	wrapped = middleware.NewBodyLimitMiddleware(8 << 20).Handler(wrapped)
	if secret := strings.TrimSpace(auth.JWTSecret); secret != "" {
		wrapped = middleware.NewOwnerTokenMiddleware([]byte(secret), auth.OwnerAddressHeader).Handler(wrapped)
	}
	wrapped = middleware.NewSecurityHeadersMiddleware(nil).Handler(wrapped)
	wrapped = middleware.NewCORSMiddleware(&middleware.CORSConfig{
		AllowedOrigins:   corsAllowedOrigins(),
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Owner-Address", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Trace-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAgeSeconds:    3600,
	}).Handler(wrapped)
	wrapped = middleware.NewRequestIDMiddleware().Handler(wrapped)
	wrapped = middleware.NewRecoveryMiddleware(logger).Handler(wrapped)
	return wrapped
}

func corsAllowedOrigins() []string {
	raw := utils.GetEnv("CORS_ALLOWED_ORIGINS", "")
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return utils.Unique(out)
}

// newRegistry wires the Worker Location Registry on top of the shared
// engine, with an optional Redis-backed persistent tier for cold lookups
// when REGISTRY_STORE_ADDR is configured.
func newRegistry(cfg *config.Config, shared *engine.Engine, logger *logging.Logger) *registry.Registry {
	host, _ := os.Hostname()
	podID := utils.Coalesce(os.Getenv("POD_ID"), host)

	var store registry.PersistentStore
	if addr := strings.TrimSpace(cfg.Registry.PersistentStoreAddr); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		store = registry.NewRedisStore(client)
	}

	zlog := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return registry.New(registry.Config{
		PodID:    podID,
		Region:   utils.GetEnv("POD_REGION", ""),
		Endpoint: utils.GetEnv("POD_ENDPOINT", ""),
	}, shared, store, zlog)
}
