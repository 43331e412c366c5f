package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingMirror struct {
	mu     sync.Mutex
	events []Event
}

func (m *recordingMirror) Mirror(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *recordingMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestBus_DeliversToSubscribersAndMirror(t *testing.T) {
	mirror := &recordingMirror{}
	bus := NewBus(4, discardLogger(), mirror)

	got := make(chan Event, 1)
	bus.Subscribe(TypeOrderPaid, func(_ context.Context, e Event) error {
		got <- e
		return nil
	})
	bus.Start()
	defer func() { _ = bus.Stop(context.Background()) }()

	e := NewEvent(TypeOrderPaid, uuid.New(), "ORD-1", 12990, "webhook")
	bus.Publish(context.Background(), e)

	select {
	case received := <-got:
		assert.Equal(t, e.ID, received.ID)
		assert.Equal(t, "ORD-1", received.CommerceOrderID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	assert.Eventually(t, func() bool { return mirror.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBus_HandlerErrorsAndPanicsDoNotStopDelivery(t *testing.T) {
	bus := NewBus(4, discardLogger(), nil)

	var mu sync.Mutex
	delivered := 0
	bus.Subscribe(TypeOrderPaid, func(context.Context, Event) error { return errors.New("smtp down") })
	bus.Subscribe(TypeOrderPaid, func(context.Context, Event) error { panic("boom") })
	bus.Subscribe(TypeOrderPaid, func(context.Context, Event) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})
	bus.Start()

	for i := 0; i < 3; i++ {
		bus.Publish(context.Background(), NewEvent(TypeOrderPaid, uuid.New(), "ORD", 1, "webhook"))
	}
	require.NoError(t, bus.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, delivered)
}

func TestBus_StopDrainsQueue(t *testing.T) {
	bus := NewBus(16, discardLogger(), nil)

	var mu sync.Mutex
	seen := 0
	bus.Subscribe(TypeTransferOrderCreated, func(context.Context, Event) error {
		mu.Lock()
		seen++
		mu.Unlock()
		return nil
	})

	for i := 0; i < 10; i++ {
		bus.Publish(context.Background(), NewEvent(TypeTransferOrderCreated, uuid.New(), "ORD", 1, ""))
	}
	bus.Start()
	require.NoError(t, bus.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, seen)
}

func TestBus_IgnoresUnsubscribedTypes(t *testing.T) {
	bus := NewBus(1, discardLogger(), nil)
	bus.Start()
	bus.Publish(context.Background(), NewEvent("unknown", uuid.New(), "ORD", 0, ""))
	assert.NoError(t, bus.Stop(context.Background()))
}
