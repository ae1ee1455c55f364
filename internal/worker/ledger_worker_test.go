package worker

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/fulfillment-service/internal/events"
	"github.com/spec-kit/fulfillment-service/internal/observability"
)

type recordingMessenger struct {
	mu      sync.Mutex
	channel map[string][]string
}

func (m *recordingMessenger) SendDirect(context.Context, string, string) error { return nil }

func (m *recordingMessenger) SendChannel(_ context.Context, channelID, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.channel == nil {
		m.channel = make(map[string][]string)
	}
	m.channel[channelID] = append(m.channel[channelID], body)
	return nil
}

func TestLedgerWorker(t *testing.T) {
	ctx := context.Background()
	messenger := &recordingMessenger{}
	dispatcher := events.NewInMemoryDispatcher()

	ledger := NewLedgerWorker(messenger, "chan-ledger", zap.NewNop())
	ledger.Register(dispatcher)

	_ = dispatcher.Publish(ctx, events.Event{
		Type: events.EventOrderConfirmed,
		Payload: events.OrderConfirmedPayload{
			OrderKey:    "ORD-1",
			WorkerID:    "worker-1",
			PayoutCents: 10000,
			Currency:    "USD",
		},
	})
	_ = dispatcher.Publish(ctx, events.Event{
		Type: events.EventOrderCancelled,
		Payload: events.OrderCancelledPayload{
			OrderKey:    "ORD-2",
			Reason:      "not as described",
			RefundType:  "PARTIAL",
			RefundCents: 4000,
			Currency:    "USD",
		},
	})
	// Unrelated events are ignored.
	_ = dispatcher.Publish(ctx, events.Event{Type: events.EventWorkStarted})

	lines := messenger.channel["chan-ledger"]
	if len(lines) != 2 {
		t.Fatalf("ledger lines = %d, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "PAYOUT") || !strings.Contains(lines[0], "$100.00") {
		t.Fatalf("payout line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "CANCEL") || !strings.Contains(lines[1], "$40.00") {
		t.Fatalf("cancel line = %q", lines[1])
	}
}

func TestRegisterMetricsSubscriber(t *testing.T) {
	ctx := context.Background()
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	RegisterMetricsSubscriber(dispatcher, metrics)

	_ = dispatcher.Publish(ctx, events.Event{Type: events.EventItemReserved})
	_ = dispatcher.Publish(ctx, events.Event{Type: events.EventItemReserved})
	_ = dispatcher.Publish(ctx, events.Event{Type: events.EventOrderCreated})

	if got := metrics.EventCount(string(events.EventItemReserved)); got != 2 {
		t.Fatalf("item_reserved count = %d, want 2", got)
	}
	if got := metrics.EventCount(string(events.EventOrderCreated)); got != 1 {
		t.Fatalf("order_created count = %d, want 1", got)
	}
}
