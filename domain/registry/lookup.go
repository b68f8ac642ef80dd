package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Source classifies where a GetWorker hit was satisfied from.
type Source string

const (
	SourceMemory     Source = "memory"
	SourceCache      Source = "cache"
	SourcePersistent Source = "persistent"
	SourceMiss       Source = "miss"
)

// LookupResult carries a worker definition plus which tier answered and
// whether the answer required a cold-start (a cache or persistent-store
// round trip rather than a local hit).
type LookupResult struct {
	Definition *WorkerDefinition
	Source     Source
	ColdStart  bool
}

func metaKey(workerID string) string { return "meta:" + workerID }

// GetWorker resolves a worker definition through the documented tiers:
// local memory, then the shared cache, then an optional persistent store
// with bounded retry. Each tier that answers populates the faster tiers
// above it.
func (r *Registry) GetWorker(ctx context.Context, workerID string) (LookupResult, error) {
	r.mu.RLock()
	if def, ok := r.local[workerID]; ok {
		r.mu.RUnlock()
		return LookupResult{Definition: def, Source: SourceMemory}, nil
	}
	r.mu.RUnlock()

	var fromCache WorkerDefinition
	found, err := getJSON(r.cache, Namespace, metaKey(workerID), &fromCache)
	if err != nil {
		return LookupResult{}, err
	}
	if found {
		r.rememberLocally(&fromCache)
		return LookupResult{Definition: &fromCache, Source: SourceCache, ColdStart: true}, nil
	}

	if r.store == nil {
		return LookupResult{Source: SourceMiss}, nil
	}

	def, err := r.fetchFromStoreWithRetry(ctx, workerID)
	if err != nil {
		r.log.Warn().Err(err).Str("worker_id", workerID).Msg("persistent store lookup failed")
		return LookupResult{Source: SourceMiss}, nil
	}
	if def == nil {
		return LookupResult{Source: SourceMiss}, nil
	}

	if err := setJSON(r.cache, Namespace, metaKey(def.WorkerID), def, metaTTL); err != nil {
		r.log.Warn().Err(err).Msg("failed to populate cache tier after persistent-store hit")
	}
	r.rememberLocally(def)
	return LookupResult{Definition: def, Source: SourcePersistent, ColdStart: true}, nil
}

func (r *Registry) rememberLocally(def *WorkerDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local[def.WorkerID] = def
}

// fetchFromStoreWithRetry retries up to 3 times with exponential backoff
// starting at 100ms, doubling each attempt, capped at 2000ms.
func (r *Registry) fetchFromStoreWithRetry(ctx context.Context, workerID string) (*WorkerDefinition, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.Multiplier = 2
	policy.MaxInterval = 2 * time.Second
	policy.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not wall time

	var def *WorkerDefinition
	operation := func() error {
		d, err := r.store.Get(ctx, workerID)
		if err != nil {
			return err
		}
		def = d
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, 3), ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch worker %s from persistent store: %w", workerID, err)
	}
	return def, nil
}

func locationKey(workerID string) string { return "location:" + workerID }

// FindWarmPods returns the live (non-stale) pods hosting workerID, sorted
// with the preferred region first and ascending active-invocation count as
// the tiebreak. Returns an empty slice if no location record exists.
func (r *Registry) FindWarmPods(workerID, preferredRegion string) ([]PodStanza, error) {
	var entry LocationEntry
	found, err := getJSON(r.cache, Namespace, locationKey(workerID), &entry)
	if err != nil || !found {
		return []PodStanza{}, err
	}

	now := nowMs()
	staleCutoff := staleHeartbeat.Milliseconds()
	live := make([]PodStanza, 0, len(entry.WarmPods))
	for _, pod := range entry.WarmPods {
		if now-pod.LastHeartbeat > staleCutoff {
			continue
		}
		live = append(live, pod)
	}

	sort.SliceStable(live, func(i, j int) bool {
		iPreferred := preferredRegion != "" && live[i].Region == preferredRegion
		jPreferred := preferredRegion != "" && live[j].Region == preferredRegion
		if iPreferred != jPreferred {
			return iPreferred
		}
		return live[i].ActiveInvocations < live[j].ActiveInvocations
	})
	return live, nil
}
