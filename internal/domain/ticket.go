package domain

import "time"

// TicketType enumerates conversation kinds.
type TicketType string

const (
	TicketTypeServiceOrder TicketType = "SERVICE_ORDER"
	TicketTypeItemPurchase TicketType = "ITEM_PURCHASE"
	TicketTypeSupport      TicketType = "SUPPORT"
)

// Ticket binds a conversation channel to the order/item/customer it concerns.
// Closing a ticket never implicitly mutates order or item state.
type Ticket struct {
	ID         string
	Type       TicketType
	CustomerID string
	OrderID    *string
	ItemID     *string
	ChannelID  string
	Open       bool
	Delivered  bool
	Details    TicketDetails
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ClosedAt   *time.Time
}

// TicketDetails is the tagged per-type schema. Exactly one branch is set,
// matching Ticket.Type, so intake fields are typed rather than a
// string-keyed bag.
type TicketDetails struct {
	ServiceOrder *ServiceOrderDetails `json:"service_order,omitempty"`
	ItemPurchase *ItemPurchaseDetails `json:"item_purchase,omitempty"`
	Support      *SupportDetails      `json:"support,omitempty"`
}

// ServiceOrderDetails captures intake fields for a service purchase.
type ServiceOrderDetails struct {
	ServiceName  string `json:"service_name"`
	Requirements string `json:"requirements"`
	Deadline     string `json:"deadline,omitempty"`
}

// ItemPurchaseDetails captures intake fields for a unique-item purchase.
type ItemPurchaseDetails struct {
	ItemCategory  string `json:"item_category"`
	PaymentMethod string `json:"payment_method"`
}

// SupportDetails captures intake fields for a general support thread.
type SupportDetails struct {
	Topic   string `json:"topic"`
	Summary string `json:"summary"`
}
