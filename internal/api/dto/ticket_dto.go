package dto

import (
	"time"

	"github.com/spec-kit/fulfillment-service/internal/domain"
)

// OpenTicketRequest payload.
type OpenTicketRequest struct {
	Type      domain.TicketType    `json:"type"`
	ChannelID string               `json:"channel_id"`
	Details   domain.TicketDetails `json:"details"`
}

// TicketResponse represents a conversation binding.
type TicketResponse struct {
	ID         string               `json:"id"`
	Type       domain.TicketType    `json:"type"`
	CustomerID string               `json:"customer_id"`
	OrderID    *string              `json:"order_id,omitempty"`
	ItemID     *string              `json:"item_id,omitempty"`
	ChannelID  string               `json:"channel_id"`
	Open       bool                 `json:"open"`
	Delivered  bool                 `json:"delivered"`
	Details    domain.TicketDetails `json:"details"`
	CreatedAt  time.Time            `json:"created_at"`
	ClosedAt   *time.Time           `json:"closed_at,omitempty"`
}

// BindingResponse resolves a channel to its ticket/order/item.
type BindingResponse struct {
	Ticket TicketResponse `json:"ticket"`
	Order  *OrderResponse `json:"order,omitempty"`
	Item   *ItemResponse  `json:"item,omitempty"`
}
