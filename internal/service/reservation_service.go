package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/fulfillment-service/internal/domain"
	"github.com/spec-kit/fulfillment-service/internal/events"
	"github.com/spec-kit/fulfillment-service/internal/repository"
	apperrors "github.com/spec-kit/fulfillment-service/pkg/util/errorutil"
)

// ReservationGuard enforces that a unique item has at most one active claim.
// The repository's conditional statements are the authority: a rejected
// write is the correct outcome, never something to retry-and-overwrite.
type ReservationGuard struct {
	items      repository.ItemRepository
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ReservationDependencies bundles collaborators for the guard.
type ReservationDependencies struct {
	ItemRepo   repository.ItemRepository
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewReservationGuard constructs the guard.
func NewReservationGuard(deps ReservationDependencies) *ReservationGuard {
	return &ReservationGuard{
		items:      deps.ItemRepo,
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Reserve places an exclusive hold for the ticket/customer pair. Exactly one
// concurrent caller wins; the rest see ItemUnavailable.
func (g *ReservationGuard) Reserve(ctx context.Context, itemID, ticketID, customerID string) (*domain.Item, error) {
	item, err := g.items.Reserve(ctx, itemID, ticketID, customerID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrItemUnavailable):
			return nil, apperrors.NewItemUnavailable(
				"this item was just taken by another purchase; pick a different one",
				map[string]any{"item_id": itemID})
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("item", map[string]any{"item_id": itemID})
		default:
			return nil, apperrors.MapError(err)
		}
	}

	if ticketID != "" {
		if err := g.tickets.AttachItem(ctx, ticketID, itemID); err != nil {
			g.logger.Warn("failed to attach item to ticket",
				zap.String("ticket_id", ticketID), zap.String("item_id", itemID), zap.Error(err))
		}
	}

	g.publish(ctx, events.EventItemReserved, customerID, events.ItemEventPayload{
		ItemID:     itemID,
		TicketID:   ticketID,
		CustomerID: customerID,
	})
	return item, nil
}

// FinalizeSale converts the reservation into a terminal sale. Fails with
// ReservationMismatch when another holder is recorded, so a race can never
// deliver to the wrong party. The owning ticket is marked delivered so a
// later ticket-close does not erroneously release the item.
func (g *ReservationGuard) FinalizeSale(ctx context.Context, itemID, ticketID, customerID, supportActorID string) (*domain.Item, error) {
	item, err := g.items.FinalizeSale(ctx, itemID, ticketID, customerID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationMismatch):
			return nil, apperrors.NewReservationMismatch(
				"this item is held by a different ticket; re-check the reservation before delivering",
				map[string]any{"item_id": itemID})
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("item", map[string]any{"item_id": itemID})
		default:
			return nil, apperrors.MapError(err)
		}
	}

	if err := g.tickets.MarkDelivered(ctx, ticketID); err != nil {
		g.logger.Warn("failed to mark ticket delivered",
			zap.String("ticket_id", ticketID), zap.String("item_id", itemID), zap.Error(err))
	}

	actor := customerID
	if supportActorID != "" {
		actor = supportActorID
	}
	g.publish(ctx, events.EventItemSold, actor, events.ItemEventPayload{
		ItemID:     itemID,
		TicketID:   ticketID,
		CustomerID: customerID,
	})
	return item, nil
}

// Release clears the hold and restores availability. Idempotent: releasing
// an available or sold item is a no-op and never resurrects a sold item.
func (g *ReservationGuard) Release(ctx context.Context, itemID string) (*domain.Item, error) {
	before, err := g.items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("item", map[string]any{"item_id": itemID})
		}
		return nil, apperrors.MapError(err)
	}

	item, err := g.items.Release(ctx, itemID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if before.State() == domain.ItemStateReserved {
		g.publish(ctx, events.EventItemReleased, "", events.ItemEventPayload{ItemID: itemID})
	}
	return item, nil
}

func (g *ReservationGuard) publish(ctx context.Context, eventType events.EventType, actorID string, payload any) {
	if g.dispatcher == nil {
		return
	}
	_ = g.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
