// Package cache holds the data-structure engine's value representation: the
// closed set of entry kinds, the byte-accounted Entry itself, and the codecs
// that turn typed views (hashes, lists, sets, zsets, streams) into the bytes
// an Entry carries.
package cache

import "time"

// Kind tags the six data structures the engine understands. It never
// mutates after an Entry is created; a command against the wrong Kind fails
// with InvalidOperation rather than coercing the value.
type Kind byte

const (
	KindString Kind = iota
	KindHash
	KindList
	KindSet
	KindZSet
	KindStream
)

// String renders the kind the way Type() reports it over the wire.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindHash:
		return "hash"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindZSet:
		return "zset"
	case KindStream:
		return "stream"
	default:
		return "none"
	}
}

// NoExpiry marks an Entry with no TTL. Stored as the maximum representable
// millisecond timestamp so ordinary comparisons (`now > expiresAt`) work
// without a sentinel branch.
const NoExpiry int64 = 1<<63 - 1

// Entry is one value living in a Namespace. Size accounting is always
// len(data); composite kinds are re-encoded in full on every mutation and
// the size delta applied to the namespace's usedBytes in the same critical
// section that performs the mutation.
type Entry struct {
	Data           []byte
	Kind           Kind
	CreatedAt      int64
	ExpiresAt      int64
	LastAccessedAt int64
	AccessCount    int64
}

// NowMs returns the current time as milliseconds since epoch, the unit
// every timestamp field in this package uses.
func NowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// Expired reports whether the entry's TTL has lapsed as of now.
func (e *Entry) Expired(nowMs int64) bool {
	return nowMs > e.ExpiresAt
}

// TTLSeconds returns the Redis-style TTL/PTTL encoding: -2 would be reported
// by the caller when the key is altogether absent, -1 means no expiry, and
// otherwise the remaining whole seconds.
func (e *Entry) TTLSeconds(nowMs int64) int64 {
	if e.ExpiresAt == NoExpiry {
		return -1
	}
	remaining := e.ExpiresAt - nowMs
	if remaining < 0 {
		remaining = 0
	}
	return remaining / 1000
}

// touch records a read/write access: bumps lastAccessedAt and accessCount.
func (e *Entry) touch(nowMs int64) {
	e.LastAccessedAt = nowMs
	e.AccessCount++
}
