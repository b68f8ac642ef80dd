// Package pubsub implements the channel and pattern subscription broker:
// exact-channel subscriber sets, glob-pattern subscriber sets, and
// best-effort fan-out on Publish. The broker is process-local; it never
// calls back into the cache engine and is never called while the engine's
// critical section is held.
package pubsub

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// sinkTimeout bounds how long a single subscriber's sink write may block.
// A write that blows past this is treated as a failed sink and the
// subscriber is dropped.
const sinkTimeout = 200 * time.Millisecond

// Subscriber is a single registered sink. Publish writes messages to Sink
// in publisher order; a write error or timeout removes the subscriber.
type Subscriber struct {
	ID   string
	Sink func(channel, message string) error
}

// Broker holds the exact-channel and glob-pattern subscription tables.
type Broker struct {
	mu       sync.Mutex
	channels map[string]map[string]*Subscriber
	patterns map[string]map[string]*Subscriber
}

// New returns an empty broker.
func New() *Broker {
	return &Broker{
		channels: make(map[string]map[string]*Subscriber),
		patterns: make(map[string]map[string]*Subscriber),
	}
}

// Subscribe registers sub on an exact channel name.
func (b *Broker) Subscribe(channel string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.channels[channel]
	if !ok {
		set = make(map[string]*Subscriber)
		b.channels[channel] = set
	}
	set[sub.ID] = sub
}

// PSubscribe registers sub on a glob pattern (`*` any run, `?` single char).
func (b *Broker) PSubscribe(pattern string, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.patterns[pattern]
	if !ok {
		set = make(map[string]*Subscriber)
		b.patterns[pattern] = set
	}
	set[sub.ID] = sub
}

// Unsubscribe removes subscriberID from every channel and pattern set. It
// is called once, before a subscriber's read loop returns, per the
// ownership rule that the broker owns every subscription record.
func (b *Broker) Unsubscribe(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, set := range b.channels {
		delete(set, subscriberID)
	}
	for _, set := range b.patterns {
		delete(set, subscriberID)
	}
}

// Publish delivers message to every exact subscriber of channel plus every
// pattern subscriber whose glob matches channel, and returns the total
// number of subscribers the message was actually delivered to. A failing
// sink write drops that subscriber; it never fails the Publish call itself.
func (b *Broker) Publish(channel, message string) int {
	recipients := b.matchingSubscribers(channel)
	delivered := 0
	for _, sub := range recipients {
		if deliverWithTimeout(sub, channel, message) {
			delivered++
		} else {
			b.Unsubscribe(sub.ID)
		}
	}
	return delivered
}

func (b *Broker) matchingSubscribers(channel string) []*Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]*Subscriber)
	if set, ok := b.channels[channel]; ok {
		for id, sub := range set {
			seen[id] = sub
		}
	}
	for pattern, set := range b.patterns {
		if !globMatch(pattern, channel) {
			continue
		}
		for id, sub := range set {
			seen[id] = sub
		}
	}
	out := make([]*Subscriber, 0, len(seen))
	for _, sub := range seen {
		out = append(out, sub)
	}
	return out
}

// deliverWithTimeout writes message to sub's sink, bounding the wait so a
// single slow subscriber cannot stall Publish for everyone else.
func deliverWithTimeout(sub *Subscriber, channel, message string) bool {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errPanicked
			}
		}()
		done <- sub.Sink(channel, message)
	}()
	select {
	case err := <-done:
		return err == nil
	case <-time.After(sinkTimeout):
		return false
	}
}

var errPanicked = &sinkError{"subscriber sink panicked"}

type sinkError struct{ msg string }

func (e *sinkError) Error() string { return e.msg }

// Channels lists every exact channel with at least one subscriber,
// optionally filtered by a glob pattern.
func (b *Broker) Channels(pattern string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.channels))
	for ch, set := range b.channels {
		if len(set) == 0 {
			continue
		}
		if pattern != "" && !globMatch(pattern, ch) {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// NumSub returns the exact-channel subscriber count for each requested
// channel, keyed by channel name.
func (b *Broker) NumSub(channels ...string) map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(channels))
	for _, ch := range channels {
		out[ch] = len(b.channels[ch])
	}
	return out
}

// NumPat returns the number of distinct pattern subscriptions registered.
func (b *Broker) NumPat() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.patterns)
}

func globMatch(pattern, name string) bool {
	re, err := globToRegexp(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

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
