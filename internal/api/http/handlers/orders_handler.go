package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/fulfillment-service/internal/api/dto"
	"github.com/spec-kit/fulfillment-service/internal/auth"
	"github.com/spec-kit/fulfillment-service/internal/domain"
	"github.com/spec-kit/fulfillment-service/internal/service"
	apperrors "github.com/spec-kit/fulfillment-service/pkg/util/errorutil"
)

// OrdersHandler exposes lifecycle operations.
type OrdersHandler struct {
	lifecycle *service.OrderLifecycleService
	roles     *service.RoleResolver
	tokens    service.ActionTokens
	logger    *zap.Logger
}

// NewOrdersHandler constructs handler.
func NewOrdersHandler(lifecycle *service.OrderLifecycleService, roles *service.RoleResolver, tokens service.ActionTokens, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{lifecycle: lifecycle, roles: roles, tokens: tokens, logger: logger}
}

// CreateOrder POST /orders.
func (h *OrdersHandler) CreateOrder(c *fiber.Ctx) error {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	order, err := h.lifecycle.CreateOrder(c.Context(), service.OrderCreateInput{
		CustomerID:   member.ID,
		ChannelID:    req.ChannelID,
		ValueCents:   req.ValueCents,
		DepositCents: req.DepositCents,
		Currency:     req.Currency,
		TicketID:     req.TicketID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": orderResponse(order)})
}

// GetOrder GET /orders/:id.
func (h *OrdersHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.lifecycle.GetOrder(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": orderResponse(order)})
}

// StartWork POST /orders/:id/start.
func (h *OrdersHandler) StartWork(c *fiber.Ctx) error {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	order, err := h.lifecycle.StartWork(c.Context(), c.Params("id"), member.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": orderResponse(order)})
}

// CompleteWork POST /orders/:id/complete.
func (h *OrdersHandler) CompleteWork(c *fiber.Ctx) error {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CompleteWorkRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	order, err := h.lifecycle.CompleteWork(c.Context(), c.Params("id"), member.ID, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": orderResponse(order)})
}

// ConfirmCompletion POST /orders/:id/confirm.
func (h *OrdersHandler) ConfirmCompletion(c *fiber.Ctx) error {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ConfirmCompletionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	orderID := c.Params("id")
	if req.ActionToken != "" {
		proceed, err := h.consumeAction(c, req.ActionToken, service.ActionScopeConfirm, orderID)
		if err != nil {
			return err
		}
		if !proceed {
			return c.SendStatus(http.StatusNoContent)
		}
	}

	isOverride := false
	if req.AdminOverride {
		privileged, err := h.roles.HasStaffPrivilege(c.Context(), member.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if !privileged {
			return apperrors.NewPermissionDenied("override confirmation requires the admin or support role")
		}
		isOverride = true
	}

	order, err := h.lifecycle.ConfirmCompletion(c.Context(), orderID, member.ID, req.Feedback, isOverride)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": orderResponse(order)})
}

// CancelOrder POST /orders/:id/cancel.
func (h *OrdersHandler) CancelOrder(c *fiber.Ctx) error {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CancelOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Reason == "" {
		return apperrors.NewValidationError("a cancellation reason is required", nil)
	}

	privileged, err := h.roles.HasStaffPrivilege(c.Context(), member.ID)
	if err != nil {
		return apperrors.MapError(err)
	}

	order, err := h.lifecycle.CancelOrder(c.Context(), c.Params("id"),
		service.Actor{ID: member.ID, IsStaff: privileged},
		service.CancelInput{
			Reason:      req.Reason,
			RefundType:  req.RefundType,
			RefundCents: req.RefundCents,
		})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": orderResponse(order)})
}

// consumeAction redeems a conversational action token. An expired token is
// benign: the prompting message is gone, so there is nobody to answer.
func (h *OrdersHandler) consumeAction(c *fiber.Ctx, token string, scope service.ActionScope, orderID string) (bool, error) {
	claim, err := h.tokens.Consume(c.Context(), token)
	if err != nil {
		if apperrors.IsBenign(err) {
			h.logger.Debug("expired action token", zap.String("order_id", orderID), zap.String("scope", string(scope)))
			return false, nil
		}
		return false, apperrors.MapError(err)
	}
	if claim.OrderID != orderID || claim.Scope != scope {
		return false, apperrors.NewValidationError("this action does not belong to the given order", nil)
	}
	return true, nil
}

func orderResponse(order *domain.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:                 order.ID,
		OrderNo:            order.OrderNo,
		ExternalKey:        order.ExternalKey,
		Status:             order.Status,
		ValueCents:         order.ValueCents,
		DepositCents:       order.DepositCents,
		Currency:           order.Currency,
		CustomerID:         order.CustomerID,
		WorkerID:           order.WorkerID,
		SupportID:          order.SupportID,
		ChannelID:          order.ChannelID,
		CompletionNotes:    order.CompletionNotes,
		CancellationReason: order.CancellationReason,
		RefundType:         order.RefundType,
		RefundCents:        order.RefundCents,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
		CompletedAt:        order.CompletedAt,
		CancelledAt:        order.CancelledAt,
	}
}
