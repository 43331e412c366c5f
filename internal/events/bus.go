package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrderPaid            = "order.paid"
	TypeTransferOrderCreated = "order.transfer_created"
)

// Event is a fact about an order that already happened and was persisted.
type Event struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	OrderID         uuid.UUID `json:"orderId"`
	CommerceOrderID string    `json:"commerceOrderId"`
	Amount          int64     `json:"amount"`
	Source          string    `json:"source,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}

func NewEvent(typ string, orderID uuid.UUID, commerceOrderID string, amount int64, source string) Event {
	return Event{
		ID:              uuid.NewString(),
		Type:            typ,
		OrderID:         orderID,
		CommerceOrderID: commerceOrderID,
		Amount:          amount,
		Source:          source,
		OccurredAt:      time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

type Handler func(ctx context.Context, e Event) error

// Mirror forwards events to an external broker.
type Mirror interface {
	Mirror(ctx context.Context, e Event) error
}

// Bus delivers events to in-process handlers on a single worker goroutine.
// Publish never blocks the caller on a handler.
type Bus struct {
	logger   *slog.Logger
	queue    chan Event
	mu       sync.RWMutex
	handlers map[string][]Handler
	mirror   Mirror

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

func NewBus(buffer int, logger *slog.Logger, mirror Mirror) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		logger:   logger,
		queue:    make(chan Event, buffer),
		handlers: map[string][]Handler{},
		mirror:   mirror,
	}
}

func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

func (b *Bus) Publish(ctx context.Context, e Event) {
	select {
	case b.queue <- e:
	default:
		// queue full: hand off without blocking the request path
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.dispatch(context.WithoutCancel(ctx), e)
		}()
	}
}

func (b *Bus) Start() {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case e := <-b.queue:
				b.dispatch(ctx, e)
			case <-ctx.Done():
				b.drain()
				return
			}
		}
	}()
}

// Stop stops the worker after the queued events were delivered or ctx expires.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("events: stop timed out with undelivered events")
	}
}

func (b *Bus) drain() {
	for {
		select {
		case e := <-b.queue:
			b.dispatch(context.Background(), e)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, e Event) {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[e.Type]...)
	b.mu.RUnlock()

	for _, h := range hs {
		if err := b.safeCall(ctx, h, e); err != nil {
			b.logger.Error("event handler failed",
				"event_type", e.Type, "event_id", e.ID, "commerce_order_id", e.CommerceOrderID, "error", err.Error())
		}
	}

	if b.mirror != nil {
		if err := b.mirror.Mirror(ctx, e); err != nil {
			b.logger.Warn("event mirror failed", "event_type", e.Type, "event_id", e.ID, "error", err.Error())
		}
	}
}

func (b *Bus) safeCall(ctx context.Context, h Handler, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("handler panicked")
			b.logger.Error("event handler panic", "event_type", e.Type, "panic", r)
		}
	}()
	return h(ctx, e)
}

var _ Publisher = (*Bus)(nil)
