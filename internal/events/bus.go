// Package events fans session events out to independent subscribers.
//
// Publish never blocks. Each subscriber owns a bounded channel and receives
// events in publication order; when its buffer is full the event is dropped
// for that subscriber only and a warning is logged.
package events

import (
	"sync"

	"github.com/sirupsen/logrus"

	"wagate/internal/domain"
)

// DefaultBuffer is the channel capacity used when Subscribe gets a
// non-positive size.
const DefaultBuffer = 64

// Bus is a publish/subscribe hub for domain events.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan domain.Event
	next   uint64
	closed bool
	log    *logrus.Entry
}

// New returns an empty bus.
func New(log *logrus.Entry) *Bus {
	return &Bus{subs: make(map[uint64]chan domain.Event), log: log}
}

// Subscribe registers a subscriber. The returned cancel func removes it and
// closes its channel; calling it more than once is safe.
func (b *Bus) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan domain.Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber without blocking.
func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			entry := b.log.WithFields(logrus.Fields{
				"subscriber": id,
				"event":      ev.EventName(),
			})
			// A dropped inbound message is lost for good; status and QR
			// events are superseded by the next one.
			if msg, ok := ev.(domain.MessageReceived); ok {
				entry.WithFields(logrus.Fields{
					"from": msg.Message.SenderID,
					"id":   msg.Message.ID,
				}).Error("Subscriber buffer full, inbound message dropped")
				continue
			}
			entry.Warn("Subscriber buffer full, dropping event")
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel and later publications are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Compile-time assertion that Bus implements domain.EventPublisher.
var _ domain.EventPublisher = (*Bus)(nil)
