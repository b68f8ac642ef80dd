package engine

import (
	"strconv"

	"github.com/edgecache/edgecache/domain/cache"
	"github.com/edgecache/edgecache/domain/events"
	"github.com/edgecache/edgecache/domain/lru"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

// loadHash fetches and decodes an existing hash entry, applying lazy expiry.
// Returns an empty view with exists=false when the key is absent; errors if
// the key holds a different kind.
func (e *Engine) loadHash(ns *cache.Namespace, key string) (cache.HashView, *cache.Entry, bool, error) {
	entry, ok := ns.Entries[key]
	if ok && e.expireIfDue(ns, key, entry) {
		ok = false
		entry = nil
	}
	if !ok {
		return cache.HashView{}, nil, false, nil
	}
	if entry.Kind != cache.KindHash {
		return nil, nil, false, apperrors.InvalidOperation("key does not hold a hash")
	}
	view, err := decodeHashEntry(entry)
	if err != nil {
		return nil, nil, false, apperrors.InvalidOperation("corrupt hash entry")
	}
	return view, entry, true, nil
}

func decodeHashEntry(entry *cache.Entry) (cache.HashView, error) {
	return decodeHash(entry.Data)
}

// saveHash re-encodes the hash view, applies the size delta and eviction
// loop, and moves the key to the LRU tail.
func (e *Engine) saveHash(ns *cache.Namespace, key string, view cache.HashView, existing *cache.Entry) error {
	newData := encodeHash(view)
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
		Kind:           cache.KindHash,
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

// HSet sets field=value in the hash at key, creating the hash if absent.
// Returns true if the field was new.
func (e *Engine) HSet(namespace, key, field, value string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, true)
	view, existing, _, err := e.loadHash(ns, key)
	if err != nil {
		return false, err
	}
	_, hadField := view[field]
	view[field] = value
	if err := e.saveHash(ns, key, view, existing); err != nil {
		return false, err
	}
	e.emit(events.KeySetEvent(namespace, key))
	return !hadField, nil
}

// HGet returns the value of field in the hash at key.
func (e *Engine) HGet(namespace, key, field string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return "", false, nil
	}
	view, _, exists, err := e.loadHash(ns, key)
	if err != nil || !exists {
		return "", false, err
	}
	v, ok := view[field]
	return v, ok, nil
}

// HGetAll returns the full field->value view of the hash at key.
func (e *Engine) HGetAll(namespace, key string) (cache.HashView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return cache.HashView{}, nil
	}
	view, _, _, err := e.loadHash(ns, key)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// HMSet sets multiple fields at once, atomically with respect to readers.
func (e *Engine) HMSet(namespace, key string, fields map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, true)
	view, existing, _, err := e.loadHash(ns, key)
	if err != nil {
		return err
	}
	for f, v := range fields {
		view[f] = v
	}
	if err := e.saveHash(ns, key, view, existing); err != nil {
		return err
	}
	e.emit(events.KeySetEvent(namespace, key))
	return nil
}

// HIncrBy increments an integer-parsable field by delta, creating the field
// (and hash) at 0 if absent.
func (e *Engine) HIncrBy(namespace, key, field string, delta int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, true)
	view, existing, _, err := e.loadHash(ns, key)
	if err != nil {
		return 0, err
	}
	var current int64
	if raw, ok := view[field]; ok {
		parsed, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			return 0, apperrors.InvalidOperation("field is not an integer")
		}
		current = parsed
	}
	newValue := current + delta
	view[field] = strconv.FormatInt(newValue, 10)
	if err := e.saveHash(ns, key, view, existing); err != nil {
		return 0, err
	}
	e.emit(events.KeySetEvent(namespace, key))
	return newValue, nil
}
