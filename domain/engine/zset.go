package engine

import (
	"sort"

	"github.com/edgecache/edgecache/domain/cache"
	"github.com/edgecache/edgecache/domain/events"
	"github.com/edgecache/edgecache/domain/lru"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

func (e *Engine) loadZSet(ns *cache.Namespace, key string) (cache.ZSetView, *cache.Entry, bool, error) {
	entry, ok := ns.Entries[key]
	if ok && e.expireIfDue(ns, key, entry) {
		ok = false
		entry = nil
	}
	if !ok {
		return cache.ZSetView{}, nil, false, nil
	}
	if entry.Kind != cache.KindZSet {
		return nil, nil, false, apperrors.InvalidOperation("key does not hold a zset")
	}
	view, err := decodeZSet(entry.Data)
	if err != nil {
		return nil, nil, false, apperrors.InvalidOperation("corrupt zset entry")
	}
	return view, entry, true, nil
}

func (e *Engine) saveZSet(ns *cache.Namespace, key string, view cache.ZSetView, existing *cache.Entry) error {
	newData := encodeZSet(view)
	oldLen := 0
	expiresAt := int64(cache.NoExpiry)
	createdAt := e.now()
	if existing != nil {
		oldLen = len(existing.Data)
		expiresAt = existing.ExpiresAt
		createdAt = existing.CreatedAt
	}
	ns.Entries[key] = &cache.Entry{
		Data:           newData,
		Kind:           cache.KindZSet,
		CreatedAt:      createdAt,
		ExpiresAt:      expiresAt,
		LastAccessedAt: e.now(),
	}
	if err := e.applyAccounting(ns, oldLen, len(newData)); err != nil {
		return err
	}
	e.index.Touch(lru.Key{Namespace: ns.Name, Name: key})
	return nil
}

// sortStable orders members by ascending score, preserving relative order
// of equal-score members (insertion-order stability).
func sortStable(view cache.ZSetView) {
	sort.SliceStable(view, func(i, j int) bool {
		return view[i].Score < view[j].Score
	})
}

// ZAdd sets (or replaces) member's score. Returns the count of genuinely
// new members; replacing an existing member's score does not count.
func (e *Engine) ZAdd(namespace, key string, members []cache.ZMember) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, true)
	view, existing, _, err := e.loadZSet(ns, key)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, m := range members {
		idx := indexOfMember(view, m.Member)
		if idx >= 0 {
			view[idx].Score = m.Score
			continue
		}
		view = append(view, m)
		added++
	}
	sortStable(view)
	if err := e.saveZSet(ns, key, view, existing); err != nil {
		return 0, err
	}
	e.emit(events.KeySetEvent(namespace, key))
	return added, nil
}

func indexOfMember(view cache.ZSetView, member string) int {
	for i, m := range view {
		if m.Member == member {
			return i
		}
	}
	return -1
}

// ZRange returns members in [start,stop] positional order, Redis-style
// (negative indices count from the end).
func (e *Engine) ZRange(namespace, key string, start, stop int) ([]cache.ZMember, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return []cache.ZMember{}, nil
	}
	view, _, exists, err := e.loadZSet(ns, key)
	if err != nil || !exists {
		return []cache.ZMember{}, err
	}
	lo, hi := clampRange(start, stop, len(view))
	if lo > hi {
		return []cache.ZMember{}, nil
	}
	out := make([]cache.ZMember, hi-lo+1)
	copy(out, view[lo:hi+1])
	return out, nil
}

// ZRangeByScore returns every member whose score falls in [min,max]
// inclusive, in ascending score order.
func (e *Engine) ZRangeByScore(namespace, key string, min, max float64) ([]cache.ZMember, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return []cache.ZMember{}, nil
	}
	view, _, exists, err := e.loadZSet(ns, key)
	if err != nil || !exists {
		return []cache.ZMember{}, err
	}
	out := make([]cache.ZMember, 0)
	for _, m := range view {
		if m.Score >= min && m.Score <= max {
			out = append(out, m)
		}
	}
	return out, nil
}

// ZRem removes members by identity, returning the count actually removed.
func (e *Engine) ZRem(namespace, key string, members ...string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return 0, nil
	}
	view, existing, exists, err := e.loadZSet(ns, key)
	if err != nil || !exists {
		return 0, err
	}
	toRemove := make(map[string]struct{}, len(members))
	for _, m := range members {
		toRemove[m] = struct{}{}
	}
	kept := view[:0:0]
	removed := 0
	for _, m := range view {
		if _, drop := toRemove[m.Member]; drop {
			removed++
			continue
		}
		kept = append(kept, m)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := e.saveZSet(ns, key, kept, existing); err != nil {
		return 0, err
	}
	return removed, nil
}

// ZScore returns the score of member, if present.
func (e *Engine) ZScore(namespace, key, member string) (float64, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return 0, false, nil
	}
	view, _, exists, err := e.loadZSet(ns, key)
	if err != nil || !exists {
		return 0, false, err
	}
	idx := indexOfMember(view, member)
	if idx < 0 {
		return 0, false, nil
	}
	return view[idx].Score, true, nil
}

// ZCard returns the cardinality of the zset at key.
func (e *Engine) ZCard(namespace, key string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return 0, nil
	}
	view, _, _, err := e.loadZSet(ns, key)
	if err != nil {
		return 0, err
	}
	return len(view), nil
}
