package hooks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultQueueSize is the async event buffer length.
const DefaultQueueSize = 1000

// Subscription is a handle for a registered subscriber.
type Subscription struct {
	ID          string
	Event       HookEvent
	Callback    func(*EventContext)
	Filter      func(*EventContext) bool
	Unsubscribe func()
}

// EventBus manages event distribution to subscribers.
type EventBus struct {
	subscribers map[HookEvent][]*Subscription
	mu          sync.RWMutex
	eventQueue  chan *EventContext
	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}

	shutdownOnce sync.Once
	dropped      uint64
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	bus := &EventBus{
		subscribers: make(map[HookEvent][]*Subscription),
		eventQueue:  make(chan *EventContext, DefaultQueueSize),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	go bus.processQueue()

	return bus
}

// Subscribe registers a callback for a specific event type.
func (b *EventBus) Subscribe(event HookEvent, callback func(*EventContext)) *Subscription {
	return b.SubscribeWithFilter(event, callback, nil)
}

// SubscribeWithFilter registers a callback with an optional filter function.
func (b *EventBus) SubscribeWithFilter(event HookEvent, callback func(*EventContext), filter func(*EventContext) bool) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		ID:       uuid.NewString(),
		Event:    event,
		Callback: callback,
		Filter:   filter,
	}

	sub.Unsubscribe = func() {
		b.unsubscribe(sub)
	}

	b.subscribers[event] = append(b.subscribers[event], sub)
	return sub
}

func (b *EventBus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[sub.Event]
	for i, s := range subs {
		if s.ID == sub.ID {
			b.subscribers[sub.Event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

// Publish distributes an event to all subscribers synchronously.
func (b *EventBus) Publish(ctx *EventContext) {
	if ctx == nil {
		return
	}

	b.mu.RLock()
	subs := b.subscribers[ctx.Event]
	// Copy slice to avoid holding lock during execution
	activeSubs := make([]*Subscription, len(subs))
	copy(activeSubs, subs)
	b.mu.RUnlock()

	for _, sub := range activeSubs {
		if sub.Filter == nil || sub.Filter(ctx) {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Errorf("Panic in event subscriber for %s: %v", ctx.Event, r)
					}
				}()
				sub.Callback(ctx)
			}()
		}
	}
}

// PublishAsync queues an event for delivery. Events are dropped when the
// queue is full or the bus has been shut down.
func (b *EventBus) PublishAsync(ctx *EventContext) {
	if ctx == nil {
		return
	}

	select {
	case <-b.ctx.Done():
		return
	default:
	}

	select {
	case <-b.ctx.Done():
	case b.eventQueue <- ctx:
	default:
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
		log.Warnf("Event queue full, dropping event: %s", ctx.Event)
	}
}

// Dropped returns the number of events dropped because the queue was full.
func (b *EventBus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

func (b *EventBus) processQueue() {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			b.drain()
			return
		case event := <-b.eventQueue:
			b.Publish(event)
		}
	}
}

// drain delivers events that were queued before shutdown.
func (b *EventBus) drain() {
	for {
		select {
		case event := <-b.eventQueue:
			b.Publish(event)
		default:
			return
		}
	}
}

// Shutdown stops the event bus after delivering already queued events.
// The queue channel is never closed so late publishers cannot panic.
func (b *EventBus) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.cancel()
		<-b.done
	})
}
