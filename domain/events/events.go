// Package events implements the process-local event bus every engine
// critical section emits into: a synchronous listener set, invoked inline
// with the mutation that produced the event. Listeners must be
// non-blocking; a panicking listener is recovered and skipped so a bad
// subscriber can never take down the emitting engine.
package events

import (
	"sync"

	"github.com/edgecache/edgecache/domain/cache"
)

// Type is one of the ten named lifecycle events the bus carries.
type Type string

const (
	KeySet            Type = "KeySet"
	KeyGet            Type = "KeyGet"
	KeyDelete         Type = "KeyDelete"
	KeyExpire         Type = "KeyExpire"
	KeyEvict          Type = "KeyEvict"
	InstanceCreate    Type = "InstanceCreate"
	InstanceDelete    Type = "InstanceDelete"
	NodeJoin          Type = "NodeJoin"
	NodeLeave         Type = "NodeLeave"
	AttestationRefresh Type = "AttestationRefresh"
)

// Event carries whichever identifiers apply to its Type; fields that don't
// apply are left zero.
type Event struct {
	Type       Type
	Timestamp  int64
	Namespace  string
	Key        string
	NodeID     string
	InstanceID string
}

// Listener receives emitted events. It must not block or call back into the
// engine that is emitting (the call happens inside that engine's critical
// section).
type Listener func(Event)

// Bus is a simple process-local listener set.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a listener. It returns an unsubscribe function.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
	idx := len(b.listeners) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.listeners) {
			b.listeners[idx] = nil
		}
	}
}

// Emit invokes every live listener synchronously in registration order. A
// panicking listener is recovered and does not affect the remaining
// listeners or the caller.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	listeners := make([]Listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, l := range listeners {
		if l == nil {
			continue
		}
		invokeListener(l, e)
	}
}

func invokeListener(l Listener, e Event) {
	defer func() {
		_ = recover()
	}()
	l(e)
}

func newEvent(typ Type, namespace, key string) Event {
	return Event{
		Type:      typ,
		Timestamp: cache.NowMs(),
		Namespace: namespace,
		Key:       key,
	}
}

// KeySetEvent builds a KeySet event for the given namespace/key.
func KeySetEvent(namespace, key string) Event { return newEvent(KeySet, namespace, key) }

// KeyGetEvent builds a KeyGet event for the given namespace/key.
func KeyGetEvent(namespace, key string) Event { return newEvent(KeyGet, namespace, key) }

// KeyDeleteEvent builds a KeyDelete event for the given namespace/key.
func KeyDeleteEvent(namespace, key string) Event { return newEvent(KeyDelete, namespace, key) }

// KeyExpireEvent builds a KeyExpire event for the given namespace/key.
func KeyExpireEvent(namespace, key string) Event { return newEvent(KeyExpire, namespace, key) }

// KeyEvictEvent builds a KeyEvict event for the given namespace/key.
func KeyEvictEvent(namespace, key string) Event { return newEvent(KeyEvict, namespace, key) }

// InstanceCreateEvent builds an InstanceCreate event for the given instance id.
func InstanceCreateEvent(instanceID string) Event {
	e := newEvent(InstanceCreate, "", "")
	e.InstanceID = instanceID
	return e
}

// InstanceDeleteEvent builds an InstanceDelete event for the given instance id.
func InstanceDeleteEvent(instanceID string) Event {
	e := newEvent(InstanceDelete, "", "")
	e.InstanceID = instanceID
	return e
}

// NodeJoinEvent builds a NodeJoin event for the given node id.
func NodeJoinEvent(nodeID string) Event {
	e := newEvent(NodeJoin, "", "")
	e.NodeID = nodeID
	return e
}

// NodeLeaveEvent builds a NodeLeave event for the given node id.
func NodeLeaveEvent(nodeID string) Event {
	e := newEvent(NodeLeave, "", "")
	e.NodeID = nodeID
	return e
}

// AttestationRefreshEvent builds an AttestationRefresh event for the given node id.
func AttestationRefreshEvent(nodeID string) Event {
	e := newEvent(AttestationRefresh, "", "")
	e.NodeID = nodeID
	return e
}
