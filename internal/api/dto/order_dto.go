package dto

import (
	"time"

	"github.com/spec-kit/fulfillment-service/internal/domain"
)

// CreateOrderRequest payload.
type CreateOrderRequest struct {
	ChannelID    string `json:"channel_id"`
	TicketID     string `json:"ticket_id,omitempty"`
	ValueCents   int64  `json:"value_cents"`
	DepositCents int64  `json:"deposit_cents"`
	Currency     string `json:"currency,omitempty"`
}

// CompleteWorkRequest payload.
type CompleteWorkRequest struct {
	Notes string `json:"notes"`
}

// ConfirmCompletionRequest payload.
type ConfirmCompletionRequest struct {
	Feedback      string `json:"feedback,omitempty"`
	ActionToken   string `json:"action_token,omitempty"`
	AdminOverride bool   `json:"admin_override,omitempty"`
}

// CancelOrderRequest payload.
type CancelOrderRequest struct {
	Reason      string            `json:"reason"`
	RefundType  domain.RefundType `json:"refund_type"`
	RefundCents *int64            `json:"refund_cents,omitempty"`
}

// OrderResponse represents an order.
type OrderResponse struct {
	ID                 string             `json:"id"`
	OrderNo            int64              `json:"order_no"`
	ExternalKey        string             `json:"external_key"`
	Status             domain.OrderStatus `json:"status"`
	ValueCents         int64              `json:"value_cents"`
	DepositCents       int64              `json:"deposit_cents"`
	Currency           string             `json:"currency"`
	CustomerID         string             `json:"customer_id"`
	WorkerID           *string            `json:"worker_id,omitempty"`
	SupportID          *string            `json:"support_id,omitempty"`
	ChannelID          string             `json:"channel_id"`
	CompletionNotes    string             `json:"completion_notes,omitempty"`
	CancellationReason string             `json:"cancellation_reason,omitempty"`
	RefundType         *domain.RefundType `json:"refund_type,omitempty"`
	RefundCents        *int64             `json:"refund_cents,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
	CancelledAt        *time.Time         `json:"cancelled_at,omitempty"`
}
