package events

import (
	"context"
	"sync"
)

// EventHandler consumes one published event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans ticket lifecycle events out to subscribers. Subscribers are
// best-effort projections (event log, outbound workers); a failing handler
// never blocks the mutation that raised the event, and never stops the
// remaining handlers from running.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

type memoryDispatcher struct {
	mu          sync.RWMutex
	subscribers map[EventType][]EventHandler
}

var _ Dispatcher = (*memoryDispatcher)(nil)

// NewInMemoryDispatcher builds the synchronous in-process dispatcher.
func NewInMemoryDispatcher() Dispatcher {
	return &memoryDispatcher{subscribers: make(map[EventType][]EventHandler)}
}

func (d *memoryDispatcher) Publish(ctx context.Context, event Event) error {
	// Snapshot under the read lock so a handler subscribing mid-publish
	// cannot mutate the slice being walked.
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.subscribers[event.Type]...)
	d.mu.RUnlock()

	for _, handle := range handlers {
		_ = handle(ctx, event)
	}
	return nil
}

func (d *memoryDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[eventType] = append(d.subscribers[eventType], handler)
}
