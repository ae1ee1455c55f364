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

// DisputesHandler exposes issue reporting and the three resolution paths.
type DisputesHandler struct {
	disputes *service.DisputeService
	tokens   service.ActionTokens
	logger   *zap.Logger
}

// NewDisputesHandler constructs handler.
func NewDisputesHandler(disputes *service.DisputeService, tokens service.ActionTokens, logger *zap.Logger) *DisputesHandler {
	return &DisputesHandler{disputes: disputes, tokens: tokens, logger: logger}
}

// ReportIssue POST /orders/:id/issues.
func (h *DisputesHandler) ReportIssue(c *fiber.Ctx) error {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ReportIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Description == "" {
		return apperrors.NewValidationError("a description of the problem is required", nil)
	}

	orderID := c.Params("id")
	if req.ActionToken != "" {
		claim, err := h.tokens.Consume(c.Context(), req.ActionToken)
		if err != nil {
			if apperrors.IsBenign(err) {
				h.logger.Debug("expired report-issue token", zap.String("order_id", orderID))
				return c.SendStatus(http.StatusNoContent)
			}
			return apperrors.MapError(err)
		}
		if claim.OrderID != orderID || claim.Scope != service.ActionScopeReportIssue {
			return apperrors.NewValidationError("this action does not belong to the given order", nil)
		}
	}

	issue, err := h.disputes.ReportIssue(c.Context(), orderID, member.ID, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": issueResponse(issue)})
}

// ApproveWork POST /issues/:id/approve-work.
func (h *DisputesHandler) ApproveWork(c *fiber.Ctx) error {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ApproveWorkRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	issue, err := h.disputes.ApproveWork(c.Context(), c.Params("id"), member.ID, req.Confirmation)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// RequestCorrections POST /issues/:id/request-corrections.
func (h *DisputesHandler) RequestCorrections(c *fiber.Ctx) error {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RequestCorrectionsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Instructions == "" {
		return apperrors.NewValidationError("correction instructions are required", nil)
	}
	issue, err := h.disputes.RequestCorrections(c.Context(), c.Params("id"), member.ID, req.Instructions)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// ApproveRefund POST /issues/:id/approve-refund.
func (h *DisputesHandler) ApproveRefund(c *fiber.Ctx) error {
	member, ok := auth.MemberFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ApproveRefundRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	issue, err := h.disputes.ApproveRefund(c.Context(), c.Params("id"), member.ID, req.Confirmation, req.RefundType, req.RefundCents)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

func issueResponse(issue *domain.Issue) dto.IssueResponse {
	return dto.IssueResponse{
		ID:          issue.ID,
		OrderID:     issue.OrderID,
		ReporterID:  issue.ReporterID,
		Description: issue.Description,
		Priority:    issue.Priority,
		Status:      issue.Status,
		Resolution:  issue.Resolution,
		ResolverID:  issue.ResolverID,
		ResolvedAt:  issue.ResolvedAt,
		CreatedAt:   issue.CreatedAt,
	}
}
