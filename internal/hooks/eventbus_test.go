package hooks

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var called bool
	sub := bus.Subscribe(EventRoutingDecision, func(ctx *EventContext) {
		called = true
	})

	if sub == nil || sub.ID == "" {
		t.Fatal("Subscribe returned an invalid subscription")
	}
	if sub.Event != EventRoutingDecision {
		t.Errorf("Expected event %s, got %s", EventRoutingDecision, sub.Event)
	}

	bus.Publish(&EventContext{Event: EventRoutingDecision, Timestamp: time.Now(), Handler: "nani_kahaniyan"})

	if !called {
		t.Error("Callback should have been called")
	}
}

func TestEventBus_UniqueSubscriptionIDs(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		sub := bus.Subscribe(EventRoutingDecision, func(*EventContext) {})
		if seen[sub.ID] {
			t.Fatalf("duplicate subscription id %s", sub.ID)
		}
		seen[sub.ID] = true
	}
}

func TestEventBus_SubscribeWithFilter(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var calledCount int32
	bus.SubscribeWithFilter(EventCapabilityUnavailable, func(ctx *EventContext) {
		atomic.AddInt32(&calledCount, 1)
	}, func(ctx *EventContext) bool {
		return ctx.Method == "classifier"
	})

	bus.Publish(&EventContext{Event: EventCapabilityUnavailable, Method: "similarity"})
	bus.Publish(&EventContext{Event: EventCapabilityUnavailable, Method: "classifier"})

	if got := atomic.LoadInt32(&calledCount); got != 1 {
		t.Errorf("Expected 1 callback call, got %d", got)
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var count int32
	sub := bus.Subscribe(EventClarificationNeeded, func(*EventContext) { atomic.AddInt32(&count, 1) })
	other := bus.Subscribe(EventClarificationNeeded, func(*EventContext) { atomic.AddInt32(&count, 10) })

	sub.Unsubscribe()
	bus.Publish(&EventContext{Event: EventClarificationNeeded})

	if got := atomic.LoadInt32(&count); got != 10 {
		t.Errorf("Expected only the remaining subscriber to run, got %d", got)
	}
	other.Unsubscribe()
}

func TestEventBus_PanicRecovery(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var called bool
	bus.Subscribe(EventRoutingFailed, func(*EventContext) { panic("boom") })
	bus.Subscribe(EventRoutingFailed, func(*EventContext) { called = true })

	bus.Publish(&EventContext{Event: EventRoutingFailed})

	if !called {
		t.Error("A panicking subscriber must not stop delivery to the others")
	}
}

func TestEventBus_PublishAsync(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var wg sync.WaitGroup
	wg.Add(5)
	bus.Subscribe(EventRoutingDecision, func(*EventContext) { wg.Done() })

	for i := 0; i < 5; i++ {
		bus.PublishAsync(&EventContext{Event: EventRoutingDecision})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async events were not delivered")
	}
}

func TestEventBus_ShutdownDrainsAndIgnoresLatePublishers(t *testing.T) {
	bus := NewEventBus()

	var count int32
	bus.Subscribe(EventEvaluationCompleted, func(*EventContext) { atomic.AddInt32(&count, 1) })

	for i := 0; i < 10; i++ {
		bus.PublishAsync(&EventContext{Event: EventEvaluationCompleted})
	}
	bus.Shutdown()
	bus.Shutdown()

	if got := atomic.LoadInt32(&count); got != 10 {
		t.Errorf("Expected queued events to be delivered before shutdown, got %d", got)
	}

	// must not panic
	bus.PublishAsync(&EventContext{Event: EventEvaluationCompleted})
	bus.PublishAsync(nil)
}
