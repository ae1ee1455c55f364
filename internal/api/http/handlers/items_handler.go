package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fulfillment-service/internal/api/dto"
	"github.com/spec-kit/fulfillment-service/internal/auth"
	"github.com/spec-kit/fulfillment-service/internal/domain"
	"github.com/spec-kit/fulfillment-service/internal/service"
	apperrors "github.com/spec-kit/fulfillment-service/pkg/util/errorutil"
)

// ItemsHandler exposes reservation operations on unique inventory.
type ItemsHandler struct {
	guard *service.ReservationGuard
}

// NewItemsHandler constructs handler.
func NewItemsHandler(guard *service.ReservationGuard) *ItemsHandler {
	return &ItemsHandler{guard: guard}
}

// Reserve POST /items/:id/reserve.
func (h *ItemsHandler) Reserve(c *fiber.Ctx) error {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ReserveItemRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TicketID == "" {
		return apperrors.NewValidationError("ticket_id is required", nil)
	}
	item, err := h.guard.Reserve(c.Context(), c.Params("id"), req.TicketID, member.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": itemResponse(item)})
}

// FinalizeSale POST /items/:id/finalize. Staff only.
func (h *ItemsHandler) FinalizeSale(c *fiber.Ctx) error {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.FinalizeSaleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TicketID == "" || req.CustomerID == "" {
		return apperrors.NewValidationError("ticket_id and customer_id are required", nil)
	}
	item, err := h.guard.FinalizeSale(c.Context(), c.Params("id"), req.TicketID, req.CustomerID, member.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": itemResponse(item)})
}

// Release POST /items/:id/release. Staff only. Releasing a sold or already
// available item is a no-op that returns the current state.
func (h *ItemsHandler) Release(c *fiber.Ctx) error {
	item, err := h.guard.Release(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": itemResponse(item)})
}

func itemResponse(item *domain.Item) dto.ItemResponse {
	return dto.ItemResponse{
		ID:                 item.ID,
		Category:           item.Category,
		PriceCents:         item.PriceCents,
		Currency:           item.Currency,
		State:              item.State(),
		ReservedTicketID:   item.ReservedTicketID,
		ReservedCustomerID: item.ReservedCustomerID,
		ReservedAt:         item.ReservedAt,
		SoldToCustomerID:   item.SoldToCustomerID,
		SoldAt:             item.SoldAt,
	}
}
