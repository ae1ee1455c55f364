package domain

import "time"

// ItemState describes which leg of the tri-state an item currently occupies.
// An item is exactly one of available, reserved, or sold.
type ItemState string

const (
	ItemStateAvailable ItemState = "AVAILABLE"
	ItemStateReserved  ItemState = "RESERVED"
	ItemStateSold      ItemState = "SOLD"
)

// Item is a unique, non-fungible inventory unit sellable to exactly one buyer.
type Item struct {
	ID                 string
	Category           string
	PriceCents         int64
	Currency           string
	Available          bool
	ReservedTicketID   *string
	ReservedCustomerID *string
	ReservedAt         *time.Time
	Sold               bool
	SoldToCustomerID   *string
	SoldAt             *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// State derives the tri-state from the underlying flags.
func (i *Item) State() ItemState {
	switch {
	case i.Sold:
		return ItemStateSold
	case i.ReservedTicketID != nil:
		return ItemStateReserved
	default:
		return ItemStateAvailable
	}
}
