package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ActivationCompleted is published after a purchase activation effect
// has been applied. Downstream collaborators (receipt email, analytics)
// subscribe here instead of being referenced from the activation path,
// which keeps the dependency graph acyclic.
type ActivationCompleted struct {
	PurchaseID   int64
	UserID       int64
	PurchaseType string
	ListingID    *int64
	Message      string
}

type Handler func(ctx context.Context, event ActivationCompleted)

// Bus is a minimal in-process publish/subscribe hub. Publishing is
// synchronous; a panicking subscriber is logged and must never fail the
// publishing operation.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	log      *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log}
}

func (b *Bus) Subscribe(h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

func (b *Bus) Publish(ctx context.Context, event ActivationCompleted) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, event ActivationCompleted) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("activation event subscriber panicked",
				zap.Int64("purchase_id", event.PurchaseID),
				zap.Any("panic", r),
			)
		}
	}()
	h(ctx, event)
}
