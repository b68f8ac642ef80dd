package engine

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/edgecache/edgecache/domain/cache"
	"github.com/edgecache/edgecache/domain/events"
	"github.com/edgecache/edgecache/domain/lru"
)

// globToRegexp converts a Redis-style glob (`*` any run, `?` single char)
// into an anchored regular expression.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Keys returns every live key in namespace matching pattern.
func (e *Engine) Keys(namespace, pattern string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return []string{}, nil
	}
	re, err := globToRegexp(pattern)
	if err != nil {
		return nil, err
	}
	now := e.now()
	out := make([]string, 0, len(ns.Entries))
	for k, entry := range ns.Entries {
		if entry.Expired(now) {
			continue
		}
		if re.MatchString(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Scan returns a deterministic ordered page of live keys matching pattern.
// cursor is the offset into the sorted keyspace to resume from, encoded as
// a decimal string; the returned nextCursor is "0" once exhausted.
func (e *Engine) Scan(namespace, cursor, pattern string, count int) (keys []string, nextCursor string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return []string{}, "0", nil
	}
	re, err := globToRegexp(pattern)
	if err != nil {
		return nil, "0", err
	}
	now := e.now()
	all := make([]string, 0, len(ns.Entries))
	for k, entry := range ns.Entries {
		if entry.Expired(now) {
			continue
		}
		if re.MatchString(k) {
			all = append(all, k)
		}
	}
	sort.Strings(all)

	offset, perr := strconv.Atoi(cursor)
	if perr != nil || offset < 0 {
		offset = 0
	}
	if count <= 0 {
		count = 10
	}
	if offset >= len(all) {
		return []string{}, "0", nil
	}
	end := offset + count
	if end >= len(all) {
		return all[offset:], "0", nil
	}
	return all[offset:end], strconv.Itoa(end), nil
}

// Type returns the kind tag of key, or "none" if absent/expired.
func (e *Engine) Type(namespace, key string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return "none"
	}
	entry, ok := ns.Entries[key]
	if !ok {
		return "none"
	}
	if e.expireIfDue(ns, key, entry) {
		return "none"
	}
	return entry.Kind.String()
}

// Rename atomically swaps old to new, carrying over TTL and size. The
// renamed key enters the LRU tail, same as any freshly touched key.
func (e *Engine) Rename(namespace, oldKey, newKey string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return nil
	}
	entry, ok := ns.Entries[oldKey]
	if !ok {
		return nil
	}
	if e.expireIfDue(ns, oldKey, entry) {
		return nil
	}
	if existing, exists := ns.Entries[newKey]; exists {
		e.removeEntryLocked(ns, newKey, existing)
	}
	delete(ns.Entries, oldKey)
	ns.Entries[newKey] = entry
	e.index.Remove(lru.Key{Namespace: namespace, Name: oldKey})
	e.index.Touch(lru.Key{Namespace: namespace, Name: newKey})
	e.emit(events.KeySetEvent(namespace, newKey))
	e.emit(events.KeyDeleteEvent(namespace, oldKey))
	return nil
}

// FlushDb drops every key in namespace. A missing namespace is a silent
// no-op.
func (e *Engine) FlushDb(namespace string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns, ok := e.namespaces[namespace]
	if !ok {
		return
	}
	for key, entry := range ns.Entries {
		e.usedBytes -= int64(len(entry.Data))
		e.index.Remove(lru.Key{Namespace: namespace, Name: key})
	}
	delete(e.namespaces, namespace)
}

// FlushAll drops every namespace.
func (e *Engine) FlushAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.namespaces = make(map[string]*cache.Namespace)
	e.usedBytes = 0
	e.index = lru.New()
}
