package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Handler reacts to one delivered event
type Handler func(ctx context.Context, event Event)

// Bus fans events out to subscribers. Each handler runs on its own goroutine
// so a slow Discord post never holds up the scoring pipeline.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	inflight sync.WaitGroup
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers handler for eventType
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler")
}

// SubscribeMany registers one handler for several event types
func (b *Bus) SubscribeMany(eventTypes []EventType, handler Handler) {
	for _, eventType := range eventTypes {
		b.Subscribe(eventType, handler)
	}
}

// HasSubscribers reports whether anything listens for eventType
func (b *Bus) HasSubscribers(eventType EventType) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType]) > 0
}

// Emit delivers event to every handler asynchronously. A panicking handler
// is logged and does not affect the others.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type()]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		log.WithField("eventType", event.Type()).Debug("No handlers for event")
		return
	}

	b.inflight.Add(len(handlers))
	for i, handler := range handlers {
		go b.dispatch(ctx, event, handler, i)
	}
}

func (b *Bus) dispatch(ctx context.Context, event Event, handler Handler, index int) {
	defer b.inflight.Done()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"eventType":    event.Type(),
				"handlerIndex": index,
				"panic":        r,
			}).Error("Event handler panicked")
		}
	}()
	handler(ctx, event)
}

// Publish emits an event outside of any unit of work
func (b *Bus) Publish(e Event) {
	b.Emit(context.Background(), e)
}

// Drain waits for running handlers to return, or for ctx to end
func (b *Bus) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TransactionalBus holds events until the owning unit of work commits
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

// NewTransactionalBus wraps real for one unit of work
func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

// Publish stashes e until Flush
func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Pending returns how many events wait for commit
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// Flush emits pending events in publish order; called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	log.WithField("pendingEventCount", len(b.pending)).Debug("Flushing committed events")

	// Handlers outlive the transaction context
	eventCtx := context.WithoutCancel(ctx)
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard drops pending events after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
