package engine

import (
	"time"

	"github.com/edgecache/edgecache/domain/events"
	"github.com/edgecache/edgecache/domain/lru"
)

// StartReaper launches the periodic TTL sweep as a background goroutine. It
// runs until Close is called. Between sweeps, lazy expiry on every read
// path already guarantees correctness; the reaper only bounds memory held
// by entries nobody has touched since they expired.
func (e *Engine) StartReaper() {
	e.mu.Lock()
	if e.stopReaper != nil {
		e.mu.Unlock()
		return
	}
	e.stopReaper = make(chan struct{})
	e.reaperDone = make(chan struct{})
	stop := e.stopReaper
	done := e.reaperDone
	interval := e.cfg.ReaperInterval
	e.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.sweep()
			}
		}
	}()
}

// ReaperRunning reports whether the periodic TTL sweep goroutine is
// currently active, for use as a liveness check.
func (e *Engine) ReaperRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopReaper != nil
}

// Close stops the reaper goroutine, if running, and waits for it to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	stop := e.stopReaper
	done := e.reaperDone
	e.stopReaper = nil
	e.reaperDone = nil
	e.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// sweep enumerates every namespace for expired entries and removes them.
// A panic from a single entry's handling is recovered so the reaper can
// never take the process down; that entry is skipped for this sweep.
func (e *Engine) sweep() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	for name, ns := range e.namespaces {
		expired := make([]string, 0)
		for key, entry := range ns.Entries {
			if entry.Expired(now) {
				expired = append(expired, key)
			}
		}
		for _, key := range expired {
			e.sweepOneLocked(name, key)
		}
	}
}

// sweepOneLocked expires a single key; guarded by a recover so a
// per-entry failure never aborts the rest of the sweep. Must be called
// with e.mu held.
func (e *Engine) sweepOneLocked(namespace, key string) {
	defer func() { _ = recover() }()

	ns, ok := e.namespaces[namespace]
	if !ok {
		return
	}
	entry, ok := ns.Entries[key]
	if !ok {
		return
	}
	delete(ns.Entries, key)
	ns.UsedBytes -= int64(len(entry.Data))
	e.usedBytes -= int64(len(entry.Data))
	e.index.Remove(lru.Key{Namespace: namespace, Name: key})
	e.expiredKeys++
	e.emit(events.KeyExpireEvent(namespace, key))
}
