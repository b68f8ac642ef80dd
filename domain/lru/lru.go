// Package lru provides the process-wide recency index shared by every
// namespace inside one engine: a single doubly-linked list over
// (namespace,key) tuples with a side map for O(1) lookup, so the most
// recently touched key is always at the tail and eviction always drains
// from the head.
package lru

import (
	"math"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Key identifies one live entry across every namespace an engine owns.
type Key struct {
	Namespace string
	Name      string
}

// Index is a bare ordering structure: it never evicts on its own. Its
// backing simplelru.LRU is sized to effectively never fill, since eviction
// here is driven by the engine's memory budget (see engine package), not by
// an entry count ceiling.
type Index struct {
	lru *simplelru.LRU[Key, struct{}]
}

// New constructs an empty recency index.
func New() *Index {
	// simplelru requires a positive bound; MaxInt keeps it from ever
	// auto-evicting on Add so the engine remains the sole evictor.
	l, _ := simplelru.NewLRU[Key, struct{}](math.MaxInt32, nil)
	return &Index{lru: l}
}

// Touch inserts or moves a key to the tail (most recently used position).
func (idx *Index) Touch(k Key) {
	idx.lru.Add(k, struct{}{})
}

// Remove deletes a key's node, if present.
func (idx *Index) Remove(k Key) {
	idx.lru.Remove(k)
}

// Contains reports whether a node exists for the key.
func (idx *Index) Contains(k Key) bool {
	return idx.lru.Contains(k)
}

// Len returns the number of tracked nodes.
func (idx *Index) Len() int {
	return idx.lru.Len()
}

// Oldest returns the head (least recently used) key without removing it.
// The second return value is false when the index is empty.
func (idx *Index) Oldest() (Key, bool) {
	k, _, ok := idx.lru.GetOldest()
	return k, ok
}

// EvictOldest detaches and returns the head node. The second return value
// is false when the index is empty, meaning no further draining is
// possible.
func (idx *Index) EvictOldest() (Key, bool) {
	k, _, ok := idx.lru.RemoveOldest()
	return k, ok
}
