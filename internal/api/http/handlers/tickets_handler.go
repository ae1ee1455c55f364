package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fulfillment-service/internal/api/dto"
	"github.com/spec-kit/fulfillment-service/internal/auth"
	"github.com/spec-kit/fulfillment-service/internal/domain"
	"github.com/spec-kit/fulfillment-service/internal/service"
	apperrors "github.com/spec-kit/fulfillment-service/pkg/util/errorutil"
)

// TicketsHandler exposes conversation binding operations.
type TicketsHandler struct {
	bindings *service.TicketBindingService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(bindings *service.TicketBindingService) *TicketsHandler {
	return &TicketsHandler{bindings: bindings}
}

// OpenTicket POST /tickets.
func (h *TicketsHandler) OpenTicket(c *fiber.Ctx) error {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.OpenTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.bindings.OpenTicket(c.Context(), service.TicketOpenInput{
		Type:       req.Type,
		CustomerID: member.ID,
		ChannelID:  req.ChannelID,
		Details:    req.Details,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ResolveChannel GET /channels/:id/binding.
func (h *TicketsHandler) ResolveChannel(c *fiber.Ctx) error {
	binding, err := h.bindings.ResolveChannel(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.BindingResponse{Ticket: ticketResponse(binding.Ticket)}
	if binding.Order != nil {
		order := orderResponse(binding.Order)
		resp.Order = &order
	}
	if binding.Item != nil {
		item := itemResponse(binding.Item)
		resp.Item = &item
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CloseTicket POST /tickets/:id/close. Closing is idempotent and never
// touches the bound order or item.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	ticket, err := h.bindings.CloseTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:         ticket.ID,
		Type:       ticket.Type,
		CustomerID: ticket.CustomerID,
		OrderID:    ticket.OrderID,
		ItemID:     ticket.ItemID,
		ChannelID:  ticket.ChannelID,
		Open:       ticket.Open,
		Delivered:  ticket.Delivered,
		Details:    ticket.Details,
		CreatedAt:  ticket.CreatedAt,
		ClosedAt:   ticket.ClosedAt,
	}
}
