package events

import (
	"time"

	"github.com/spec-kit/fulfillment-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventOrderCreated   EventType = "order_created"
	EventWorkStarted    EventType = "work_started"
	EventWorkCompleted  EventType = "work_completed"
	EventOrderConfirmed EventType = "order_confirmed"
	EventOrderCancelled EventType = "order_cancelled"
	EventIssueReported  EventType = "issue_reported"
	EventIssueResolved  EventType = "issue_resolved"
	EventItemReserved   EventType = "item_reserved"
	EventItemSold       EventType = "item_sold"
	EventItemReleased   EventType = "item_released"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	OrderID   string      `json:"order_id,omitempty"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OrderStatusChangedPayload payload.
type OrderStatusChangedPayload struct {
	OrderKey  string             `json:"order_key"`
	OldStatus domain.OrderStatus `json:"old_status"`
	NewStatus domain.OrderStatus `json:"new_status"`
	Reason    string             `json:"reason,omitempty"`
}

// OrderConfirmedPayload payload.
type OrderConfirmedPayload struct {
	OrderKey    string `json:"order_key"`
	WorkerID    string `json:"worker_id"`
	PayoutCents int64  `json:"payout_cents"`
	Currency    string `json:"currency"`
}

// OrderCancelledPayload payload.
type OrderCancelledPayload struct {
	OrderKey    string            `json:"order_key"`
	Reason      string            `json:"reason"`
	RefundType  domain.RefundType `json:"refund_type"`
	RefundCents int64             `json:"refund_cents"`
	Currency    string            `json:"currency"`
}

// IssueReportedPayload payload.
type IssueReportedPayload struct {
	IssueID     string `json:"issue_id"`
	Description string `json:"description"`
}

// IssueResolvedPayload payload.
type IssueResolvedPayload struct {
	IssueID    string `json:"issue_id"`
	Resolution string `json:"resolution"`
}

// ItemEventPayload payload for reservation lifecycle events.
type ItemEventPayload struct {
	ItemID     string `json:"item_id"`
	TicketID   string `json:"ticket_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
}
