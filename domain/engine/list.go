package engine

import (
	"github.com/edgecache/edgecache/domain/cache"
	"github.com/edgecache/edgecache/domain/events"
	"github.com/edgecache/edgecache/domain/lru"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

func (e *Engine) loadList(ns *cache.Namespace, key string) (cache.ListView, *cache.Entry, bool, error) {
	entry, ok := ns.Entries[key]
	if ok && e.expireIfDue(ns, key, entry) {
		ok = false
		entry = nil
	}
	if !ok {
		return cache.ListView{}, nil, false, nil
	}
	if entry.Kind != cache.KindList {
		return nil, nil, false, apperrors.InvalidOperation("key does not hold a list")
	}
	view, err := decodeList(entry.Data)
	if err != nil {
		return nil, nil, false, apperrors.InvalidOperation("corrupt list entry")
	}
	return view, entry, true, nil
}

func (e *Engine) saveList(ns *cache.Namespace, key string, view cache.ListView, existing *cache.Entry) error {
	newData := encodeList(view)
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
		Kind:           cache.KindList,
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

// LPush prepends values (each one at the head, in argument order, so the
// last argument ends up closest to the head) and returns the new length.
func (e *Engine) LPush(namespace, key string, values ...string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, true)
	view, existing, _, err := e.loadList(ns, key)
	if err != nil {
		return 0, err
	}
	for _, v := range values {
		view = append(cache.ListView{v}, view...)
	}
	if err := e.saveList(ns, key, view, existing); err != nil {
		return 0, err
	}
	e.emit(events.KeySetEvent(namespace, key))
	return len(view), nil
}

// RPush appends values at the tail and returns the new length.
func (e *Engine) RPush(namespace, key string, values ...string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, true)
	view, existing, _, err := e.loadList(ns, key)
	if err != nil {
		return 0, err
	}
	view = append(view, values...)
	if err := e.saveList(ns, key, view, existing); err != nil {
		return 0, err
	}
	e.emit(events.KeySetEvent(namespace, key))
	return len(view), nil
}

// LPop removes and returns the head element.
func (e *Engine) LPop(namespace, key string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return "", false, nil
	}
	view, existing, exists, err := e.loadList(ns, key)
	if err != nil || !exists || len(view) == 0 {
		return "", false, err
	}
	v := view[0]
	view = view[1:]
	if err := e.saveList(ns, key, view, existing); err != nil {
		return "", false, err
	}
	e.emit(events.KeyDeleteEvent(namespace, key))
	return v, true, nil
}

// RPop removes and returns the tail element.
func (e *Engine) RPop(namespace, key string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return "", false, nil
	}
	view, existing, exists, err := e.loadList(ns, key)
	if err != nil || !exists || len(view) == 0 {
		return "", false, err
	}
	last := len(view) - 1
	v := view[last]
	view = view[:last]
	if err := e.saveList(ns, key, view, existing); err != nil {
		return "", false, err
	}
	e.emit(events.KeyDeleteEvent(namespace, key))
	return v, true, nil
}

// LRange returns the inclusive [start,stop] slice, Redis-style: negative
// indices count from the end.
func (e *Engine) LRange(namespace, key string, start, stop int) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return []string{}, nil
	}
	view, _, exists, err := e.loadList(ns, key)
	if err != nil || !exists {
		return []string{}, err
	}
	lo, hi := clampRange(start, stop, len(view))
	if lo > hi {
		return []string{}, nil
	}
	out := make([]string, hi-lo+1)
	copy(out, view[lo:hi+1])
	return out, nil
}

// clampRange normalizes Redis-style start/stop (negative counts from the
// end) into a valid [lo,hi] bound inside [0,length). Returns lo>hi when the
// resulting range is empty.
func clampRange(start, stop, length int) (lo, hi int) {
	if length == 0 {
		return 0, -1
	}
	if start < 0 {
		start = length + start
	}
	if stop < 0 {
		stop = length + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if start > stop || start >= length {
		return 0, -1
	}
	return start, stop
}

// LTrim retains the inclusive [start,stop] slice, discarding the rest. An
// out-of-range trim results in an empty list.
func (e *Engine) LTrim(namespace, key string, start, stop int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return nil
	}
	view, existing, exists, err := e.loadList(ns, key)
	if err != nil || !exists {
		return err
	}
	lo, hi := clampRange(start, stop, len(view))
	var trimmed cache.ListView
	if lo <= hi {
		trimmed = append(cache.ListView{}, view[lo:hi+1]...)
	} else {
		trimmed = cache.ListView{}
	}
	return e.saveList(ns, key, trimmed, existing)
}

// LLen returns the length of the list at key, 0 if absent.
func (e *Engine) LLen(namespace, key string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return 0, nil
	}
	view, _, _, err := e.loadList(ns, key)
	if err != nil {
		return 0, err
	}
	return len(view), nil
}
