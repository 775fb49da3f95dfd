package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Bus manages event distribution to subscribers with filtering support.
//
// Thread Safety:
//   - All methods are safe for concurrent use
//   - Multiple goroutines can publish and subscribe simultaneously
//   - Non-blocking publish prevents slow subscribers from affecting publishers
//
// Slow Consumer Handling:
//   - Subscribers receive events through buffered channels
//   - If a subscriber's buffer is full, events are dropped for that subscriber
//   - Other subscribers are not affected by slow consumers
type Bus interface {
	// Publish sends an event to all matching subscribers.
	// Returns an error only if the bus is closed. Never blocks on slow
	// subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe creates a subscription with optional filtering. The
	// cleanup function must be called to prevent resource leaks.
	Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func())

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// DefaultBus implements Bus with buffered channels and non-blocking sends.
type DefaultBus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscription
	bufferSize  int
	closed      bool
	dropped     atomic.Int64
}

// subscription represents a single subscriber with filtering and lifecycle
// management.
type subscription struct {
	id      string
	ch      chan Event
	filter  Filter
	ctx     context.Context
	cancel  context.CancelFunc
	dropped atomic.Int64
}

const defaultBufferSize = 100

// NewBus creates an event bus. bufferSize <= 0 selects the default.
func NewBus(bufferSize int) *DefaultBus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &DefaultBus{
		subscribers: make(map[string]*subscription),
		bufferSize:  bufferSize,
	}
}

// Publish sends an event to all matching subscribers. If a subscriber's
// channel is full the event is dropped for that subscriber so one slow
// consumer never blocks the publisher or its peers.
func (b *DefaultBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	for _, sub := range b.subscribers {
		select {
		case <-sub.ctx.Done():
			continue
		default:
		}

		if !sub.filter.Matches(event) {
			continue
		}

		select {
		case sub.ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			sub.dropped.Add(1)
			b.dropped.Add(1)
		}
	}

	return nil
}

// Subscribe creates a new subscription. Pass Filter{} to receive all
// events; bufferSize <= 0 selects the bus default.
func (b *DefaultBus) Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bufferSize <= 0 {
		bufferSize = b.bufferSize
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		id:     generateSubscriberID(),
		ch:     make(chan Event, bufferSize),
		filter: filter,
		ctx:    subCtx,
		cancel: cancel,
	}
	b.subscribers[sub.id] = sub

	cleanup := func() {
		b.unsubscribe(sub.id)
	}
	return sub.ch, cleanup
}

// unsubscribe removes a subscription and closes its channel.
func (b *DefaultBus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return
	}

	sub.cancel()
	close(sub.ch)
	delete(b.subscribers, id)
}

// Close shuts down the bus and closes all subscriber channels.
// Idempotent; multiple calls are safe.
func (b *DefaultBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for id, sub := range b.subscribers {
		sub.cancel()
		close(sub.ch)
		delete(b.subscribers, id)
	}
	return nil
}

// SubscriberCount returns the current number of active subscribers.
func (b *DefaultBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// DroppedCount returns the total number of events dropped across all
// subscribers since the bus was created, including subscribers that have
// since unsubscribed.
func (b *DefaultBus) DroppedCount() int64 {
	return b.dropped.Load()
}

var subscriberCounter uint64

func generateSubscriberID() string {
	n := atomic.AddUint64(&subscriberCounter, 1)
	return fmt.Sprintf("sub-%d-%d", time.Now().UnixNano(), n)
}

var _ Bus = (*DefaultBus)(nil)
