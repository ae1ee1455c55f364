package domain

import "time"

// OrderStatus enumerates lifecycle states for orders.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusInProgress      OrderStatus = "IN_PROGRESS"
	OrderStatusAwaitingConfirm OrderStatus = "AWAITING_CONFIRM"
	OrderStatusDisputed        OrderStatus = "DISPUTED"
	OrderStatusCompleted       OrderStatus = "COMPLETED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is permitted.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// RefundType enumerates cancellation refund modes.
type RefundType string

const (
	RefundTypeFull    RefundType = "FULL"
	RefundTypePartial RefundType = "PARTIAL"
	RefundTypeNone    RefundType = "NONE"
)

// Order is the aggregate for a paid unit of work.
type Order struct {
	ID                 string
	OrderNo            int64
	ExternalKey        string
	Status             OrderStatus
	ValueCents         int64
	DepositCents       int64
	Currency           string
	CustomerID         string
	WorkerID           *string
	SupportID          *string
	ChannelID          string
	CompletionNotes    string
	CancellationReason string
	RefundType         *RefundType
	RefundCents        *int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
}

// OrderHistory is an audit entry recorded for every status transition.
type OrderHistory struct {
	ID        string
	OrderID   string
	ActorID   string
	OldStatus OrderStatus
	NewStatus OrderStatus
	Reason    string
	CreatedAt time.Time
}

// Payout records the committed payout decision made when an order completes.
type Payout struct {
	ID          string
	OrderID     string
	WorkerID    string
	AmountCents int64
	Currency    string
	CreatedAt   time.Time
}
