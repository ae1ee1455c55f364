package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/fulfillment-service/internal/domain"
	"github.com/spec-kit/fulfillment-service/internal/repository"
	apperrors "github.com/spec-kit/fulfillment-service/pkg/util/errorutil"
)

// Binding is the resolved view of what a conversation channel refers to.
type Binding struct {
	Ticket *domain.Ticket
	Order  *domain.Order
	Item   *domain.Item
}

// TicketBindingService maps conversation channels to the order, ticket, and
// optionally reserved item they concern. All other components resolve
// "which order does this conversation refer to" through it.
type TicketBindingService struct {
	tickets repository.TicketRepository
	orders  repository.OrderRepository
	items   repository.ItemRepository
	logger  *zap.Logger
}

// BindingDependencies bundles repositories for the binding service.
type BindingDependencies struct {
	TicketRepo repository.TicketRepository
	OrderRepo  repository.OrderRepository
	ItemRepo   repository.ItemRepository
	Logger     *zap.Logger
}

// NewTicketBindingService constructs the service.
func NewTicketBindingService(deps BindingDependencies) *TicketBindingService {
	return &TicketBindingService{
		tickets: deps.TicketRepo,
		orders:  deps.OrderRepo,
		items:   deps.ItemRepo,
		logger:  deps.Logger,
	}
}

// TicketOpenInput describes a new conversation binding. Details must match
// the ticket type; the tagged schema keeps intake fields typed.
type TicketOpenInput struct {
	Type       domain.TicketType
	CustomerID string
	ChannelID  string
	Details    domain.TicketDetails
}

// OpenTicket creates the binding for a new conversation.
func (s *TicketBindingService) OpenTicket(ctx context.Context, input TicketOpenInput) (*domain.Ticket, error) {
	if input.CustomerID == "" || input.ChannelID == "" {
		return nil, apperrors.NewValidationError("customer and channel are required", nil)
	}
	if err := validateDetails(input.Type, input.Details); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Type:       input.Type,
		CustomerID: input.CustomerID,
		ChannelID:  input.ChannelID,
		Open:       true,
		Details:    input.Details,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ResolveChannel returns the binding for a conversation channel.
func (s *TicketBindingService) ResolveChannel(ctx context.Context, channelID string) (*Binding, error) {
	ticket, err := s.tickets.GetByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"channel_id": channelID})
		}
		return nil, apperrors.MapError(err)
	}

	binding := &Binding{Ticket: ticket}
	if ticket.OrderID != nil {
		order, err := s.orders.GetByID(ctx, *ticket.OrderID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		binding.Order = order
	}
	if ticket.ItemID != nil {
		item, err := s.items.GetByID(ctx, *ticket.ItemID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MapError(err)
		}
		binding.Item = item
	}
	return binding, nil
}

// CloseTicket ends the conversation binding. Closing never implicitly
// mutates order or item state; those are explicit, prior steps.
func (s *TicketBindingService) CloseTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !ticket.Open {
		return ticket, nil
	}

	closed, err := s.tickets.Close(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if closed.ItemID != nil && !closed.Delivered {
		s.logger.Info("ticket closed with an undelivered reserved item; release it explicitly if abandoned",
			zap.String("ticket_id", closed.ID), zap.String("item_id", *closed.ItemID))
	}
	return closed, nil
}

func validateDetails(ticketType domain.TicketType, details domain.TicketDetails) error {
	switch ticketType {
	case domain.TicketTypeServiceOrder:
		if details.ServiceOrder == nil || details.ServiceOrder.ServiceName == "" {
			return apperrors.NewValidationError("service order tickets need a service name", nil)
		}
	case domain.TicketTypeItemPurchase:
		if details.ItemPurchase == nil || details.ItemPurchase.ItemCategory == "" {
			return apperrors.NewValidationError("item purchase tickets need an item category", nil)
		}
	case domain.TicketTypeSupport:
		if details.Support == nil || details.Support.Topic == "" {
			return apperrors.NewValidationError("support tickets need a topic", nil)
		}
	default:
		return apperrors.NewValidationError("unknown ticket type", nil)
	}
	return nil
}
