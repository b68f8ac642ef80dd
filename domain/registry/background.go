package registry

import (
	"context"
	"time"
)

func heartbeatKey(podID string) string { return "heartbeat:" + podID }
func workersKey(podID string) string   { return "workers:" + podID }

// Start launches the two background loops documented for the registry: a
// 30s heartbeat/location-refresh loop and a 60s persistent-store resync
// loop. Call Close to stop both.
func (r *Registry) Start(ctx context.Context) {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go r.runLoop(ctx, 30*time.Second, r.heartbeatTick)
	go r.runLoop(ctx, 60*time.Second, r.resyncTick)
}

// Close stops the background loops.
func (r *Registry) Close() {
	if r.stop == nil {
		return
	}
	close(r.stop)
}

func (r *Registry) runLoop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// heartbeatTick sends this pod's heartbeat, re-uploads its worker-id list,
// and refreshes every location:<id> entry this pod owns by merging in its
// own pod stanza.
func (r *Registry) heartbeatTick(ctx context.Context) {
	r.mu.RLock()
	workerIDs := make([]string, 0, len(r.ownedWorkers))
	for id := range r.ownedWorkers {
		workerIDs = append(workerIDs, id)
	}
	r.mu.RUnlock()

	hb := heartbeatRecord{
		PodID:       r.cfg.PodID,
		Region:      r.cfg.Region,
		Endpoint:    r.cfg.Endpoint,
		WorkerCount: len(workerIDs),
		Timestamp:   nowMs(),
	}
	if err := setJSON(r.cache, Namespace, heartbeatKey(r.cfg.PodID), hb, heartbeatTTL); err != nil {
		r.log.Warn().Err(err).Msg("heartbeat publish failed")
	}
	if err := setJSON(r.cache, Namespace, workersKey(r.cfg.PodID), workerIDs, workersTTL); err != nil {
		r.log.Warn().Err(err).Msg("worker-id list publish failed")
	}

	for _, id := range workerIDs {
		r.refreshLocation(id)
	}
}

// refreshLocation merges this pod's stanza into workerID's location entry,
// dropping any stanza from this pod that was already there (it is about to
// be replaced with a fresh heartbeat timestamp).
func (r *Registry) refreshLocation(workerID string) {
	var entry LocationEntry
	found, err := getJSON(r.cache, Namespace, locationKey(workerID), &entry)
	if err != nil {
		r.log.Warn().Err(err).Str("worker_id", workerID).Msg("location refresh read failed")
		return
	}
	if !found {
		entry = LocationEntry{WorkerID: workerID}
	}

	pods := entry.WarmPods[:0:0]
	for _, pod := range entry.WarmPods {
		if pod.PodID == r.cfg.PodID {
			continue
		}
		pods = append(pods, pod)
	}
	pods = append(pods, PodStanza{
		PodID:             r.cfg.PodID,
		Region:            r.cfg.Region,
		Endpoint:          r.cfg.Endpoint,
		LastHeartbeat:     nowMs(),
		ActiveInvocations: r.activeInvocations(workerID),
	})
	entry.WarmPods = pods
	entry.UpdatedAt = nowMs()

	if err := setJSON(r.cache, Namespace, locationKey(workerID), entry, locationTTL); err != nil {
		r.log.Warn().Err(err).Str("worker_id", workerID).Msg("location refresh write failed")
	}
}

// activeInvocations reports how many invocations this pod currently has in
// flight for workerID; the registry itself does not track this directly,
// so it defers to whatever the hosting process last reported.
func (r *Registry) activeInvocations(workerID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.invocationCounts[workerID]
}

// SetActiveInvocations records workerID's current in-flight invocation
// count on this pod, consumed by the next heartbeat's location refresh.
func (r *Registry) SetActiveInvocations(workerID string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invocationCounts == nil {
		r.invocationCounts = make(map[string]int)
	}
	r.invocationCounts[workerID] = count
}

// resyncTick re-syncs from the persistent store to pick up newly-deployed
// workers this pod has not yet observed through the cache/local tiers.
func (r *Registry) resyncTick(ctx context.Context) {
	if r.store == nil {
		return
	}
	defs, err := r.store.ListActive(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("persistent store resync failed")
		return
	}
	for i := range defs {
		def := defs[i]
		r.mu.RLock()
		_, known := r.local[def.WorkerID]
		r.mu.RUnlock()
		if known {
			continue
		}
		r.rememberLocally(&def)
		if err := setJSON(r.cache, Namespace, metaKey(def.WorkerID), &def, metaTTL); err != nil {
			r.log.Warn().Err(err).Str("worker_id", def.WorkerID).Msg("resync cache populate failed")
		}
	}
}
