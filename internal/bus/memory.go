package bus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/event"
)

// Compile-time check: MemoryBus implements Bus.
var _ Bus = (*MemoryBus)(nil)

const defaultDrainTimeout = 10 * time.Second

// MemoryBus delivers events in-process. Each handler runs in its own
// goroutine so Publish never blocks on subscribers.
type MemoryBus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers []Handler
	closed   bool
	inflight sync.WaitGroup
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBus{logger: logger}
}

// Publish fans e out to all subscribers. Handlers see a context detached
// from the caller's cancellation.
func (b *MemoryBus) Publish(ctx context.Context, e event.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	hctx := context.WithoutCancel(ctx)
	for _, h := range b.handlers {
		b.inflight.Add(1)
		go func(h Handler) {
			defer b.inflight.Done()
			if err := h(hctx, e); err != nil {
				b.logger.Warn("event handler failed",
					zap.String("event_id", e.ID),
					zap.String("kind", string(e.Kind)),
					zap.Error(err),
				)
			}
		}(h)
	}
	return nil
}

// Subscribe registers h for all subsequent events.
func (b *MemoryBus) Subscribe(_ context.Context, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.handlers = append(b.handlers, h)
	return nil
}

// Drain waits up to timeout for in-flight handlers. It reports whether all finished.
func (b *MemoryBus) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close rejects new events and waits for in-flight handlers.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if !b.Drain(defaultDrainTimeout) {
		b.logger.Warn("bus drain timeout reached, some handlers may not have completed")
	}

	b.mu.Lock()
	b.handlers = nil
	b.mu.Unlock()
	return nil
}
