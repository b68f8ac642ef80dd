// Package engine implements the command engine: Redis-family semantics over
// six data-structure kinds with explicit memory and TTL enforcement. Each
// mutating command runs inside the engine's single critical section, which
// also serializes against the TTL reaper and the eviction loop.
package engine

import (
	"strconv"
	"sync"
	"time"

	"github.com/edgecache/edgecache/domain/cache"
	"github.com/edgecache/edgecache/domain/events"
	"github.com/edgecache/edgecache/domain/lru"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

// Config bounds one engine instance's resource accounting.
type Config struct {
	MaxMemoryMB       int
	DefaultTTLSeconds int64
	MaxTTLSeconds     int64
	ReaperInterval    time.Duration
}

// DefaultConfig mirrors the documented defaults: 256MB budget, 1h default
// TTL, 30-day TTL ceiling, 10s reaper sweep.
func DefaultConfig() Config {
	return Config{
		MaxMemoryMB:       256,
		DefaultTTLSeconds: 3600,
		MaxTTLSeconds:     30 * 24 * 3600,
		ReaperInterval:    10 * time.Second,
	}
}

// Stats is a point-in-time snapshot of global engine counters.
type Stats struct {
	Evictions       int64
	ExpiredKeys     int64
	TotalKeys       int64
	UsedBytes       int64
	NamespaceHits   map[string]int64
	NamespaceMisses map[string]int64
	NamespaceBytes  map[string]int64
	NamespaceKeys   map[string]int64
}

// Engine owns a set of namespaces, the process-wide LRU index covering
// every entry across them, and the global counters the command surface and
// metrics exporter read.
type Engine struct {
	mu sync.Mutex

	cfg   Config
	bus   *events.Bus
	clock func() int64

	namespaces map[string]*cache.Namespace
	index      *lru.Index

	usedBytes   int64
	evictions   int64
	expiredKeys int64

	stopReaper chan struct{}
	reaperDone chan struct{}
}

// New constructs an engine with the given config and event bus. Passing a
// nil bus is fine; emissions become no-ops.
func New(cfg Config, bus *events.Bus) *Engine {
	if bus == nil {
		bus = events.New()
	}
	if cfg.ReaperInterval <= 0 {
		cfg.ReaperInterval = 10 * time.Second
	}
	return &Engine{
		cfg:        cfg,
		bus:        bus,
		clock:      cache.NowMs,
		namespaces: make(map[string]*cache.Namespace),
		index:      lru.New(),
	}
}

// maxMemoryBytes returns the configured memory ceiling in bytes.
func (e *Engine) maxMemoryBytes() int64 {
	return int64(e.cfg.MaxMemoryMB) * 1024 * 1024
}

func (e *Engine) now() int64 {
	return e.clock()
}

func (e *Engine) emit(ev events.Event) {
	if e.bus != nil {
		e.bus.Emit(ev)
	}
}

// namespace returns the namespace, creating it lazily when create is true.
// Must be called with e.mu held.
func (e *Engine) namespace(name string, create bool) *cache.Namespace {
	ns, ok := e.namespaces[name]
	if !ok {
		if !create {
			return nil
		}
		ns = &cache.Namespace{Name: name, Entries: make(map[string]*cache.Entry)}
		e.namespaces[name] = ns
	}
	return ns
}

// expireIfDue deletes an entry whose TTL has lapsed, mirroring the lazy
// expiry path every read command applies before reporting a hit. Returns
// true if the entry was expired and removed.
func (e *Engine) expireIfDue(ns *cache.Namespace, key string, entry *cache.Entry) bool {
	if !entry.Expired(e.now()) {
		return false
	}
	e.removeEntryLocked(ns, key, entry)
	e.expiredKeys++
	e.emit(events.KeyExpireEvent(ns.Name, key))
	return true
}

// removeEntryLocked deletes an entry, its LRU node, and reconciles
// usedBytes. Must be called with e.mu held.
func (e *Engine) removeEntryLocked(ns *cache.Namespace, key string, entry *cache.Entry) {
	delete(ns.Entries, key)
	ns.UsedBytes -= int64(len(entry.Data))
	e.usedBytes -= int64(len(entry.Data))
	e.index.Remove(lru.Key{Namespace: ns.Name, Name: key})
}

// resolveTTL validates a caller-supplied TTL in seconds against the
// configured ceiling and converts it to an absolute expiresAt in ms. When
// hasTTL is false the configured default applies (no expiry if that default
// is not positive); otherwise a negative ttlSeconds means "no expiry".
func (e *Engine) resolveTTL(ttlSeconds int64, hasTTL bool) (int64, error) {
	if !hasTTL {
		if e.cfg.DefaultTTLSeconds <= 0 {
			return cache.NoExpiry, nil
		}
		return e.now() + e.cfg.DefaultTTLSeconds*1000, nil
	}
	if ttlSeconds < 0 {
		return cache.NoExpiry, nil
	}
	if e.cfg.MaxTTLSeconds > 0 && ttlSeconds > e.cfg.MaxTTLSeconds {
		return 0, apperrors.TTLExceeded(e.cfg.MaxTTLSeconds)
	}
	return e.now() + ttlSeconds*1000, nil
}

// applyAccounting updates both namespace- and engine-level usedBytes after
// a mutation changed an entry's encoded size from oldLen to newLen, then
// runs the eviction loop to bring the engine back under budget.
func (e *Engine) applyAccounting(ns *cache.Namespace, oldLen, newLen int) error {
	delta := int64(newLen - oldLen)
	ns.UsedBytes += delta
	e.usedBytes += delta
	return e.evictUntilWithinBudgetLocked()
}

// evictUntilWithinBudgetLocked drains the LRU head while the engine is over
// its memory budget. If draining exhausts every node without freeing enough
// space, it returns MemoryLimit without having rolled back the caller's own
// accounting -- callers that need rollback-on-failure handle that
// themselves by capturing usedBytes before the mutation.
func (e *Engine) evictUntilWithinBudgetLocked() error {
	budget := e.maxMemoryBytes()
	if budget <= 0 {
		return nil
	}
	for e.usedBytes > budget {
		k, ok := e.index.EvictOldest()
		if !ok {
			return apperrors.MemoryLimit("", budget)
		}
		ns, exists := e.namespaces[k.Namespace]
		if !exists {
			continue
		}
		entry, exists := ns.Entries[k.Name]
		if !exists {
			continue
		}
		delete(ns.Entries, k.Name)
		ns.UsedBytes -= int64(len(entry.Data))
		e.usedBytes -= int64(len(entry.Data))
		e.evictions++
		e.emit(events.KeyEvictEvent(ns.Name, k.Name))
	}
	return nil
}

// touch moves a key to the LRU tail and bumps per-entry access stats.
func (e *Engine) touch(ns *cache.Namespace, key string, entry *cache.Entry) {
	entry.LastAccessedAt = e.now()
	entry.AccessCount++
	e.index.Touch(lru.Key{Namespace: ns.Name, Name: key})
}

// Stats returns a snapshot of global counters for the /cache/stats and
// /cache/metrics endpoints.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{
		Evictions:       e.evictions,
		ExpiredKeys:     e.expiredKeys,
		UsedBytes:       e.usedBytes,
		NamespaceHits:   make(map[string]int64, len(e.namespaces)),
		NamespaceMisses: make(map[string]int64, len(e.namespaces)),
		NamespaceBytes:  make(map[string]int64, len(e.namespaces)),
		NamespaceKeys:   make(map[string]int64, len(e.namespaces)),
	}
	for name, ns := range e.namespaces {
		s.TotalKeys += int64(len(ns.Entries))
		s.NamespaceHits[name] = ns.Hits
		s.NamespaceMisses[name] = ns.Misses
		s.NamespaceBytes[name] = ns.UsedBytes
		s.NamespaceKeys[name] = int64(len(ns.Entries))
	}
	return s
}

// NamespaceNames lists every namespace currently materialized.
func (e *Engine) NamespaceNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.namespaces))
	for name := range e.namespaces {
		names = append(names, name)
	}
	return names
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
