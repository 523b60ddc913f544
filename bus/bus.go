// Package bus is the in-process message bus connecting the bar feed,
// the strategy engine, and the execution simulator. Subjects are dotted
// names in the NATS style ("md.bars.SPY", "strategy.signals.x"); a
// subscription may end in ".*" to match any final token.
package bus

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("bus closed")

// Event is the unit passed through the bus. Payloads stay JSON bytes so
// consumers own their own decoding (and their own malformed-message
// handling).
type Event struct {
	Subject string
	Data    []byte
}

// Bus fans events out to matching subscriptions. Publish never blocks:
// when a subscriber's queue is full the event is dropped for that
// subscriber and counted.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

// Subscription delivers matching events on C until unsubscribed.
type Subscription struct {
	bus     *Bus
	subject string
	C       chan Event
	once    sync.Once
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers interest in a subject, which may end in ".*".
func (b *Bus) Subscribe(subject string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	sub := &Subscription{
		bus:     b,
		subject: subject,
		C:       make(chan Event, b.buffer),
	}
	b.subs[sub] = struct{}{}
	return sub, nil
}

// Unsubscribe removes the subscription and closes its channel. Safe to
// call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.C)
	})
}

// Publish delivers the event to every matching subscriber without
// blocking. Returns ErrClosed after Close.
func (b *Bus) Publish(subject string, data []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	ev := Event{Subject: subject, Data: data}
	for sub := range b.subs {
		if !match(sub.subject, subject) {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Dropped reports how many events were discarded on full queues.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close rejects further publishes and closes all subscriber channels.
// Channels are closed after b.mu is released: a concurrent Unsubscribe
// holds its sync.Once while waiting for b.mu, so closing under the lock
// would deadlock the two lock orders against each other.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
		delete(b.subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.C) })
	}
}

// match reports whether a subscription pattern covers a concrete
// subject. Only a trailing "*" token is treated as a wildcard.
func match(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	if !strings.HasSuffix(pattern, ".*") {
		return false
	}
	prefix := pattern[:len(pattern)-1] // keep the dot
	if !strings.HasPrefix(subject, prefix) {
		return false
	}
	rest := subject[len(prefix):]
	return rest != "" && !strings.Contains(rest, ".")
}

// LastToken returns the final dotted token of a subject, e.g. the
// strategy id of "strategy.signals.my_strat".
func LastToken(subject string) string {
	if i := strings.LastIndexByte(subject, '.'); i >= 0 {
		return subject[i+1:]
	}
	return subject
}
