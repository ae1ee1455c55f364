package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/fulfillment-service/internal/chat"
	"github.com/spec-kit/fulfillment-service/internal/events"
	"github.com/spec-kit/fulfillment-service/internal/observability"
)

// LedgerWorker mirrors money-moving events into the storefront's ledger
// channel so staff have a running record outside the database.
type LedgerWorker struct {
	messenger chat.Messenger
	channelID string
	logger    *zap.Logger
}

// NewLedgerWorker constructs the worker.
func NewLedgerWorker(messenger chat.Messenger, channelID string, logger *zap.Logger) *LedgerWorker {
	return &LedgerWorker{messenger: messenger, channelID: channelID, logger: logger}
}

// Register subscribes the worker to the events it records.
func (w *LedgerWorker) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventOrderConfirmed, w.handleConfirmed)
	dispatcher.Subscribe(events.EventOrderCancelled, w.handleCancelled)
}

func (w *LedgerWorker) handleConfirmed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OrderConfirmedPayload)
	if !ok {
		return nil
	}
	body := fmt.Sprintf("PAYOUT | order %s | worker %s | %s %s",
		payload.OrderKey, payload.WorkerID, formatCents(payload.PayoutCents), payload.Currency)
	return w.post(ctx, body)
}

func (w *LedgerWorker) handleCancelled(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OrderCancelledPayload)
	if !ok {
		return nil
	}
	body := fmt.Sprintf("CANCEL | order %s | refund %s (%s %s) | %s",
		payload.OrderKey, payload.RefundType, formatCents(payload.RefundCents), payload.Currency, payload.Reason)
	return w.post(ctx, body)
}

func (w *LedgerWorker) post(ctx context.Context, body string) error {
	if w.channelID == "" {
		return nil
	}
	if err := w.messenger.SendChannel(ctx, w.channelID, body); err != nil {
		w.logger.Warn("ledger post failed", zap.Error(err))
	}
	return nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// RegisterMetricsSubscriber counts every published domain event.
func RegisterMetricsSubscriber(dispatcher events.Dispatcher, metrics *observability.Metrics) {
	types := []events.EventType{
		events.EventOrderCreated,
		events.EventWorkStarted,
		events.EventWorkCompleted,
		events.EventOrderConfirmed,
		events.EventOrderCancelled,
		events.EventIssueReported,
		events.EventIssueResolved,
		events.EventItemReserved,
		events.EventItemSold,
		events.EventItemReleased,
	}
	for _, t := range types {
		eventType := t
		dispatcher.Subscribe(eventType, func(context.Context, events.Event) error {
			metrics.RecordEvent(string(eventType))
			return nil
		})
	}
}
