package engine

import (
	"strconv"

	"github.com/edgecache/edgecache/domain/cache"
	"github.com/edgecache/edgecache/domain/events"
	"github.com/edgecache/edgecache/domain/lru"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

// SetOptions carries the optional flags Set() honors.
type SetOptions struct {
	NX     bool
	XX     bool
	HasTTL bool
	TTL    int64 // seconds
}

// Get reads a string entry, applying lazy expiry. found is false on miss,
// on a namespace that was never created, or on an expired entry.
func (e *Engine) Get(namespace, key string) (value string, found bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ns := e.namespace(namespace, false)
	if ns == nil {
		return "", false, nil
	}
	entry, ok := ns.Entries[key]
	if !ok {
		ns.recordMiss()
		return "", false, nil
	}
	if e.expireIfDue(ns, key, entry) {
		ns.recordMiss()
		return "", false, nil
	}
	if entry.Kind != cache.KindString {
		return "", false, apperrors.InvalidOperation("key does not hold a string")
	}
	e.touch(ns, key, entry)
	ns.recordHit()
	e.emit(events.KeyGetEvent(namespace, key))
	return string(entry.Data), true, nil
}

// Set writes a string value honoring NX/XX/TTL. NX fails (returns false) if
// the key already exists; XX fails if it's absent; neither is an error, in
// line with SetNx's documented neutral-result boundary behavior.
func (e *Engine) Set(namespace, key, value string, opts SetOptions) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ns := e.namespace(namespace, true)
	existing, exists := ns.Entries[key]
	if exists && e.expireIfDue(ns, key, existing) {
		exists = false
		existing = nil
	}
	if opts.NX && exists {
		return false, nil
	}
	if opts.XX && !exists {
		return false, nil
	}

	expiresAt, err := e.resolveTTL(opts.TTL, opts.HasTTL)
	if err != nil {
		return false, err
	}

	oldLen := 0
	if exists {
		oldLen = len(existing.Data)
	}
	newData := []byte(value)
	now := e.now()
	entry := &cache.Entry{
		Data:           newData,
		Kind:           cache.KindString,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		LastAccessedAt: now,
	}
	if exists {
		entry.CreatedAt = existing.CreatedAt
	}
	ns.Entries[key] = entry
	if err := e.applyAccounting(ns, oldLen, len(newData)); err != nil {
		// Roll back: the budget could not accommodate this write.
		if exists {
			ns.Entries[key] = existing
			ns.UsedBytes += int64(oldLen) - int64(len(newData))
			e.usedBytes += int64(oldLen) - int64(len(newData))
		} else {
			delete(ns.Entries, key)
			ns.UsedBytes -= int64(len(newData))
			e.usedBytes -= int64(len(newData))
		}
		return false, err
	}
	e.index.Touch(lru.Key{Namespace: namespace, Name: key})
	e.emit(events.KeySetEvent(namespace, key))
	return true, nil
}

// Del removes zero or more keys, returning the count actually deleted.
func (e *Engine) Del(namespace string, keys ...string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	ns := e.namespace(namespace, false)
	if ns == nil {
		return 0
	}
	deleted := 0
	for _, key := range keys {
		entry, ok := ns.Entries[key]
		if !ok {
			continue
		}
		e.removeEntryLocked(ns, key, entry)
		deleted++
		e.emit(events.KeyDeleteEvent(namespace, key))
	}
	return deleted
}

// Exists counts how many of the given keys are live (present, not expired).
func (e *Engine) Exists(namespace string, keys ...string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	ns := e.namespace(namespace, false)
	if ns == nil {
		return 0
	}
	count := 0
	for _, key := range keys {
		entry, ok := ns.Entries[key]
		if !ok {
			continue
		}
		if e.expireIfDue(ns, key, entry) {
			continue
		}
		count++
	}
	return count
}

// incrDecr implements both Incr and Decr: parses the current value as a
// signed integer (absent treated as 0), applies delta, rewrites the string
// form preserving the existing TTL.
func (e *Engine) incrDecr(namespace, key string, delta int64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ns := e.namespace(namespace, true)
	entry, exists := ns.Entries[key]
	if exists && e.expireIfDue(ns, key, entry) {
		exists = false
		entry = nil
	}

	var current int64
	expiresAt := cache.NoExpiry
	oldLen := 0
	if exists {
		if entry.Kind != cache.KindString {
			return 0, apperrors.InvalidOperation("key does not hold a string")
		}
		parsed, err := strconv.ParseInt(string(entry.Data), 10, 64)
		if err != nil {
			return 0, apperrors.InvalidOperation("value is not an integer")
		}
		current = parsed
		expiresAt = entry.ExpiresAt
		oldLen = len(entry.Data)
	}

	newValue := current + delta
	newData := []byte(strconv.FormatInt(newValue, 10))
	now := e.now()
	newEntry := &cache.Entry{
		Data:           newData,
		Kind:           cache.KindString,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		LastAccessedAt: now,
	}
	if exists {
		newEntry.CreatedAt = entry.CreatedAt
	}
	ns.Entries[key] = newEntry
	if err := e.applyAccounting(ns, oldLen, len(newData)); err != nil {
		return 0, err
	}
	e.index.Touch(lru.Key{Namespace: namespace, Name: key})
	e.emit(events.KeySetEvent(namespace, key))
	return newValue, nil
}

// Incr adds by (which may be negative) to the integer value at key.
func (e *Engine) Incr(namespace, key string, by int64) (int64, error) {
	return e.incrDecr(namespace, key, by)
}

// Decr subtracts by from the integer value at key.
func (e *Engine) Decr(namespace, key string, by int64) (int64, error) {
	return e.incrDecr(namespace, key, -by)
}

// Append concatenates value onto the existing string (or creates it),
// keeping the existing TTL, and returns the new total length.
func (e *Engine) Append(namespace, key, value string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ns := e.namespace(namespace, true)
	entry, exists := ns.Entries[key]
	if exists && e.expireIfDue(ns, key, entry) {
		exists = false
		entry = nil
	}

	oldLen := 0
	expiresAt := cache.NoExpiry
	var base []byte
	if exists {
		if entry.Kind != cache.KindString {
			return 0, apperrors.InvalidOperation("key does not hold a string")
		}
		base = entry.Data
		oldLen = len(base)
		expiresAt = entry.ExpiresAt
	}
	newData := append(append([]byte{}, base...), []byte(value)...)
	now := e.now()
	newEntry := &cache.Entry{
		Data:           newData,
		Kind:           cache.KindString,
		CreatedAt:      now,
		ExpiresAt:      expiresAt,
		LastAccessedAt: now,
	}
	if exists {
		newEntry.CreatedAt = entry.CreatedAt
	}
	ns.Entries[key] = newEntry
	if err := e.applyAccounting(ns, oldLen, len(newData)); err != nil {
		return 0, err
	}
	e.index.Touch(lru.Key{Namespace: namespace, Name: key})
	e.emit(events.KeySetEvent(namespace, key))
	return len(newData), nil
}

// Expire sets a relative TTL (seconds) on an existing key. Returns false if
// the key is absent.
func (e *Engine) Expire(namespace, key string, ttlSeconds int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setExpiryLocked(namespace, key, func() (int64, error) {
		return e.resolveTTL(ttlSeconds, true)
	})
}

// ExpireAt sets an absolute expiry (epoch ms) on an existing key.
func (e *Engine) ExpireAt(namespace, key string, atMs int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setExpiryLocked(namespace, key, func() (int64, error) {
		return atMs, nil
	})
}

func (e *Engine) setExpiryLocked(namespace, key string, resolve func() (int64, error)) (bool, error) {
	ns := e.namespace(namespace, false)
	if ns == nil {
		return false, nil
	}
	entry, ok := ns.Entries[key]
	if !ok {
		return false, nil
	}
	if e.expireIfDue(ns, key, entry) {
		return false, nil
	}
	expiresAt, err := resolve()
	if err != nil {
		return false, err
	}
	entry.ExpiresAt = expiresAt
	return true, nil
}

// Persist removes the TTL from a key, making it live forever. Returns false
// if the key was absent or already had no TTL.
func (e *Engine) Persist(namespace, key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return false
	}
	entry, ok := ns.Entries[key]
	if !ok {
		return false
	}
	if e.expireIfDue(ns, key, entry) {
		return false
	}
	if entry.ExpiresAt == cache.NoExpiry {
		return false
	}
	entry.ExpiresAt = cache.NoExpiry
	return true
}

// TTL returns remaining seconds, -1 for no expiry, or -2 if absent.
func (e *Engine) TTL(namespace, key string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return -2
	}
	entry, ok := ns.Entries[key]
	if !ok {
		return -2
	}
	if e.expireIfDue(ns, key, entry) {
		return -2
	}
	return entry.TTLSeconds(e.now())
}

// PTTL is TTL expressed in milliseconds.
func (e *Engine) PTTL(namespace, key string) int64 {
	seconds := e.TTL(namespace, key)
	if seconds < 0 {
		return seconds
	}
	return seconds * 1000
}
