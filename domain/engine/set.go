package engine

import (
	"math/rand"

	"github.com/edgecache/edgecache/domain/cache"
	"github.com/edgecache/edgecache/domain/events"
	"github.com/edgecache/edgecache/domain/lru"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

func (e *Engine) loadSet(ns *cache.Namespace, key string) (cache.SetView, *cache.Entry, bool, error) {
	entry, ok := ns.Entries[key]
	if ok && e.expireIfDue(ns, key, entry) {
		ok = false
		entry = nil
	}
	if !ok {
		return cache.SetView{}, nil, false, nil
	}
	if entry.Kind != cache.KindSet {
		return nil, nil, false, apperrors.InvalidOperation("key does not hold a set")
	}
	view, err := decodeSet(entry.Data)
	if err != nil {
		return nil, nil, false, apperrors.InvalidOperation("corrupt set entry")
	}
	return view, entry, true, nil
}

func (e *Engine) saveSet(ns *cache.Namespace, key string, view cache.SetView, existing *cache.Entry) error {
	newData := encodeSet(view)
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
		Kind:           cache.KindSet,
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

// SAdd adds members to the set at key, returning the count of members that
// were actually new.
func (e *Engine) SAdd(namespace, key string, members ...string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, true)
	view, existing, _, err := e.loadSet(ns, key)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, m := range members {
		if _, ok := view[m]; !ok {
			view[m] = struct{}{}
			added++
		}
	}
	if err := e.saveSet(ns, key, view, existing); err != nil {
		return 0, err
	}
	e.emit(events.KeySetEvent(namespace, key))
	return added, nil
}

// SRem removes members from the set, returning the count actually removed.
func (e *Engine) SRem(namespace, key string, members ...string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return 0, nil
	}
	view, existing, exists, err := e.loadSet(ns, key)
	if err != nil || !exists {
		return 0, err
	}
	removed := 0
	for _, m := range members {
		if _, ok := view[m]; ok {
			delete(view, m)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := e.saveSet(ns, key, view, existing); err != nil {
		return 0, err
	}
	return removed, nil
}

// SMembers returns every member of the set at key.
func (e *Engine) SMembers(namespace, key string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return []string{}, nil
	}
	view, _, _, err := e.loadSet(ns, key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(view))
	for m := range view {
		out = append(out, m)
	}
	return out, nil
}

// SIsMember reports whether member belongs to the set at key.
func (e *Engine) SIsMember(namespace, key, member string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return false, nil
	}
	view, _, exists, err := e.loadSet(ns, key)
	if err != nil || !exists {
		return false, err
	}
	_, ok := view[member]
	return ok, nil
}

// SCard returns the cardinality of the set at key.
func (e *Engine) SCard(namespace, key string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return 0, nil
	}
	view, _, _, err := e.loadSet(ns, key)
	if err != nil {
		return 0, err
	}
	return len(view), nil
}

// SPop selects a member uniformly at random, removes it, and returns it.
// The randomness source is not cryptographic.
func (e *Engine) SPop(namespace, key string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return "", false, nil
	}
	view, existing, exists, err := e.loadSet(ns, key)
	if err != nil || !exists || len(view) == 0 {
		return "", false, err
	}
	member := randomMember(view)
	delete(view, member)
	if err := e.saveSet(ns, key, view, existing); err != nil {
		return "", false, err
	}
	return member, true, nil
}

// SRandMember selects a member uniformly at random without removing it.
func (e *Engine) SRandMember(namespace, key string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return "", false, nil
	}
	view, _, exists, err := e.loadSet(ns, key)
	if err != nil || !exists || len(view) == 0 {
		return "", false, err
	}
	return randomMember(view), true, nil
}

func randomMember(view cache.SetView) string {
	target := rand.Intn(len(view))
	i := 0
	for m := range view {
		if i == target {
			return m
		}
		i++
	}
	return ""
}
