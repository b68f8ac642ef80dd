// Package registry implements the Worker Location Registry: a
// higher-layer service built on top of the cache engine itself, which
// lets worker processes discover which pods currently have a given
// worker's code warm across a horizontally scaled fleet. All registry
// state is stored as ordinary cache keys under the reserved
// "worker-registry" namespace -- the registry has no storage of its own
// beyond a small local in-memory map and an optional external persistent
// store for cold lookups.
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/edgecache/edgecache/domain/cache"
	"github.com/edgecache/edgecache/domain/engine"
	"github.com/rs/zerolog"
)

// Namespace is the reserved cache namespace every registry key lives
// under.
const Namespace = "worker-registry"

const (
	heartbeatTTL = 30 * time.Second
	workersTTL   = 30 * time.Second
	metaTTL      = 5 * time.Minute
	locationTTL  = 60 * time.Second

	staleHeartbeat = 60 * time.Second
)

// CacheEngine is the narrow surface the registry rides on top of.
type CacheEngine interface {
	Get(namespace, key string) (string, bool, error)
	Set(namespace, key, value string, opts engine.SetOptions) (bool, error)
}

// WorkerDefinition is the serialized description of one worker, whatever a
// deployment system hands the registry.
type WorkerDefinition struct {
	WorkerID string            `json:"workerId"`
	CodeCID  string            `json:"codeCid"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PodStanza is one pod's warmth record for a worker.
type PodStanza struct {
	PodID             string `json:"podId"`
	Region            string `json:"region"`
	Endpoint          string `json:"endpoint"`
	LastHeartbeat     int64  `json:"lastHeartbeat"`
	ActiveInvocations int    `json:"activeInvocations"`
}

// LocationEntry is the per-worker warm-pod record stored at
// location:<workerId>.
type LocationEntry struct {
	WorkerID  string            `json:"workerId"`
	CodeCID   string            `json:"codeCid"`
	WarmPods  []PodStanza       `json:"warmPods"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	UpdatedAt int64             `json:"updatedAt"`
}

type heartbeatRecord struct {
	PodID       string `json:"podId"`
	Region      string `json:"region"`
	Endpoint    string `json:"endpoint"`
	WorkerCount int    `json:"workerCount"`
	Timestamp   int64  `json:"timestamp"`
}

// PersistentStore is the external collaborator the registry consults on a
// local+cache miss. It mirrors the narrow {get, getByCid, listActive}
// surface described for worker definitions.
type PersistentStore interface {
	Get(ctx context.Context, workerID string) (*WorkerDefinition, error)
	GetByCID(ctx context.Context, cid string) (*WorkerDefinition, error)
	ListActive(ctx context.Context) ([]WorkerDefinition, error)
}

// Config identifies this pod: its id, region and endpoint.
type Config struct {
	PodID    string
	Region   string
	Endpoint string
}

// Registry tracks, for this pod, which worker definitions are loaded
// locally, and coordinates with peer pods through the shared cache.
type Registry struct {
	mu    sync.RWMutex
	cfg   Config
	cache CacheEngine
	store PersistentStore
	log   zerolog.Logger

	local            map[string]*WorkerDefinition
	ownedWorkers     map[string]struct{} // workers this pod currently hosts
	invocationCounts map[string]int

	stop chan struct{}
	done chan struct{}
}

// New constructs a registry. store may be nil if no persistent tier is
// configured; lookups then stop at the cache tier.
func New(cfg Config, cacheEngine CacheEngine, store PersistentStore, log zerolog.Logger) *Registry {
	return &Registry{
		cfg:          cfg,
		cache:        cacheEngine,
		store:        store,
		log:          log.With().Str("component", "worker-registry").Str("pod_id", cfg.PodID).Logger(),
		local:        make(map[string]*WorkerDefinition),
		ownedWorkers: make(map[string]struct{}),
	}
}

// Alive reports whether this pod's own heartbeat key is currently present
// in the cache, for use as a liveness check: the 30s background loop
// refreshes it on every tick, so a missing key means the loop has stalled
// or never started.
func (r *Registry) Alive() bool {
	_, ok, err := r.cache.Get(Namespace, heartbeatKey(r.cfg.PodID))
	return err == nil && ok
}

// RegisterLocalWorker marks a worker as hosted on this pod and seeds the
// local cache entry for it.
func (r *Registry) RegisterLocalWorker(def WorkerDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[def.WorkerID] = &def
	r.ownedWorkers[def.WorkerID] = struct{}{}
}

func setJSON(c CacheEngine, namespace, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = c.Set(namespace, key, string(data), engine.SetOptions{HasTTL: true, TTL: int64(ttl.Seconds())})
	return err
}

func getJSON(c CacheEngine, namespace, key string, v interface{}) (bool, error) {
	raw, found, err := c.Get(namespace, key)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, err
	}
	return true, nil
}

func nowMs() int64 { return cache.NowMs() }
