// Package events carries the monitor's notifications to reporting clients.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies the type of an Event.
type Kind string

const (
	// ResultUpdated carries one endpoint's probe result for the round.
	ResultUpdated Kind = "result"
	// LogLine narrates start/stop, switches, errors and manual changes.
	LogLine Kind = "log"
	// StatusChanged reports a new active pair.
	StatusChanged Kind = "status"
)

// Event is a single notification. Fields not relevant to Kind are zero.
type Event struct {
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`

	// ResultUpdated
	Endpoint    string        `json:"endpoint,omitempty"`
	LatencyText string        `json:"latency,omitempty"`
	Status      string        `json:"status,omitempty"`
	Latency     time.Duration `json:"-"`
	Reachable   bool          `json:"reachable,omitempty"`

	// LogLine and StatusChanged
	Text string `json:"text,omitempty"`

	// StatusChanged
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
}

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(e Event)
}

// Bus fans events out to subscribers. Publish never blocks: an event is
// dropped for any subscriber whose buffer is full.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	dropped atomic.Uint64
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Publish delivers e to every subscriber that has buffer room.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber with a buffer of size buf. The returned
// cancel func unregisters it and closes the channel; it is safe to call
// more than once.
func (b *Bus) Subscribe(buf int) (<-chan Event, func()) {
	ch := make(chan Event, buf)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was
// full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Consume calls fn for every event received on ch until ch is closed or ctx
// is done.
func Consume(ctx context.Context, ch <-chan Event, fn func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			fn(e)
		}
	}
}
