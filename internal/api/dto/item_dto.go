package dto

import (
	"time"

	"github.com/spec-kit/fulfillment-service/internal/domain"
)

// ReserveItemRequest payload.
type ReserveItemRequest struct {
	TicketID string `json:"ticket_id"`
}

// FinalizeSaleRequest payload.
type FinalizeSaleRequest struct {
	TicketID   string `json:"ticket_id"`
	CustomerID string `json:"customer_id"`
}

// ItemResponse represents a unique inventory unit.
type ItemResponse struct {
	ID                 string           `json:"id"`
	Category           string           `json:"category"`
	PriceCents         int64            `json:"price_cents"`
	Currency           string           `json:"currency"`
	State              domain.ItemState `json:"state"`
	ReservedTicketID   *string          `json:"reserved_ticket_id,omitempty"`
	ReservedCustomerID *string          `json:"reserved_customer_id,omitempty"`
	ReservedAt         *time.Time       `json:"reserved_at,omitempty"`
	SoldToCustomerID   *string          `json:"sold_to_customer_id,omitempty"`
	SoldAt             *time.Time       `json:"sold_at,omitempty"`
}
