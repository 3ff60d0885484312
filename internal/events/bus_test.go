package events

import (
	"context"
	"testing"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus(nil)

	var first, second int
	bus.Subscribe(func(_ context.Context, e ActivationCompleted) {
		first++
		if e.PurchaseID != 11 {
			t.Errorf("unexpected purchase id: %d", e.PurchaseID)
		}
	})
	bus.Subscribe(func(_ context.Context, _ ActivationCompleted) {
		second++
	})

	bus.Publish(context.Background(), ActivationCompleted{PurchaseID: 11, UserID: 3})

	if first != 1 || second != 1 {
		t.Fatalf("expected both subscribers invoked once: first=%d second=%d", first, second)
	}
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus(nil)

	bus.Subscribe(func(_ context.Context, _ ActivationCompleted) {
		panic("subscriber blew up")
	})

	var called bool
	bus.Subscribe(func(_ context.Context, _ ActivationCompleted) {
		called = true
	})

	bus.Publish(context.Background(), ActivationCompleted{PurchaseID: 1})

	if !called {
		t.Fatalf("second subscriber must still run after a panic")
	}
}
