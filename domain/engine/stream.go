package engine

import (
	"fmt"
	"strings"

	"github.com/edgecache/edgecache/domain/cache"
	"github.com/edgecache/edgecache/domain/events"
	"github.com/edgecache/edgecache/domain/lru"
	apperrors "github.com/edgecache/edgecache/infrastructure/errors"
)

// streamRetentionCap bounds how many entries a stream keeps; the oldest are
// dropped on overflow.
const streamRetentionCap = 10000

func (e *Engine) loadStream(ns *cache.Namespace, key string) (cache.StreamView, *cache.Entry, bool, error) {
	entry, ok := ns.Entries[key]
	if ok && e.expireIfDue(ns, key, entry) {
		ok = false
		entry = nil
	}
	if !ok {
		return cache.StreamView{Entries: []cache.StreamEntry{}}, nil, false, nil
	}
	if entry.Kind != cache.KindStream {
		return cache.StreamView{}, nil, false, apperrors.InvalidOperation("key does not hold a stream")
	}
	view, err := decodeStream(entry.Data)
	if err != nil {
		return cache.StreamView{}, nil, false, apperrors.InvalidOperation("corrupt stream entry")
	}
	return view, entry, true, nil
}

func (e *Engine) saveStream(ns *cache.Namespace, key string, view cache.StreamView, existing *cache.Entry) error {
	newData := encodeStream(view)
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
		Kind:           cache.KindStream,
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

// XAdd appends fields as a new entry with id "{epochMs}-{seqInStream}",
// dropping the oldest entry once the stream exceeds its retention cap.
func (e *Engine) XAdd(namespace, key string, fields map[string]string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, true)
	view, existing, _, err := e.loadStream(ns, key)
	if err != nil {
		return "", err
	}
	view.Seq++
	id := fmt.Sprintf("%d-%d", e.now(), view.Seq)
	view.Entries = append(view.Entries, cache.StreamEntry{ID: id, Fields: fields})
	if len(view.Entries) > streamRetentionCap {
		view.Entries = view.Entries[len(view.Entries)-streamRetentionCap:]
	}
	if err := e.saveStream(ns, key, view, existing); err != nil {
		return "", err
	}
	e.emit(events.KeySetEvent(namespace, key))
	return id, nil
}

// XRange returns entries with id in [start,end] inclusive, ordered oldest
// first, comparing ids lexicographically as strings. "-" and "+" are
// open-ended sentinels for start/end respectively. count, if positive, caps
// the number of entries returned.
func (e *Engine) XRange(namespace, key, start, end string, count int) ([]cache.StreamEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ns := e.namespace(namespace, false)
	if ns == nil {
		return []cache.StreamEntry{}, nil
	}
	view, _, exists, err := e.loadStream(ns, key)
	if err != nil || !exists {
		return []cache.StreamEntry{}, err
	}
	out := make([]cache.StreamEntry, 0, len(view.Entries))
	for _, entry := range view.Entries {
		if start != "-" && strings.Compare(entry.ID, start) < 0 {
			continue
		}
		if end != "+" && strings.Compare(entry.ID, end) > 0 {
			continue
		}
		out = append(out, entry)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out, nil
}
