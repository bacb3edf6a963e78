package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Handler receives an event. Handlers run synchronously on the emitting
// goroutine and must not block or call back into the engine.
type Handler func(Event)

// Subscription is an opaque handle returned by Subscribe and consumed by
// Unsubscribe.
type Subscription struct {
	id   uuid.UUID
	kind Kind
}

// Bus is a synchronous publish/subscribe fan-out keyed by event kind.
// The zero value is not usable; construct with NewBus.
type Bus struct {
	mu   sync.RWMutex
	subs map[Kind]map[uuid.UUID]Handler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Kind]map[uuid.UUID]Handler),
	}
}

// Subscribe registers a handler for the given kind. Use KindAny to receive
// every event. The returned Subscription unregisters the handler when passed
// to Unsubscribe.
func (b *Bus) Subscribe(kind Kind, h Handler) Subscription {
	sub := Subscription{id: uuid.New(), kind: kind}

	b.mu.Lock()
	defer b.mu.Unlock()

	handlers, ok := b.subs[kind]
	if !ok {
		handlers = make(map[uuid.UUID]Handler)
		b.subs[kind] = handlers
	}
	handlers[sub.id] = h

	logrus.WithFields(logrus.Fields{
		"function": "Subscribe",
		"kind":     kind,
		"sub_id":   sub.id.String(),
	}).Debug("Event handler subscribed")

	return sub
}

// Unsubscribe removes a previously registered handler. Unsubscribing an
// unknown or already removed subscription is a no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.subs[sub.kind]; ok {
		delete(handlers, sub.id)
		if len(handlers) == 0 {
			delete(b.subs, sub.kind)
		}
	}
}

// Emit delivers the event to every handler subscribed to its kind, then to
// every catch-all handler. Delivery order within a kind is unspecified.
func (b *Bus) Emit(ev Event) {
	if ev == nil {
		return
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.EventKind()])+len(b.subs[KindAny]))
	for _, h := range b.subs[ev.EventKind()] {
		handlers = append(handlers, h)
	}
	for _, h := range b.subs[KindAny] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// EmitAll delivers a batch of events in order.
func (b *Bus) EmitAll(evs ...Event) {
	for _, ev := range evs {
		b.Emit(ev)
	}
}
