package dto

import (
	"time"

	"github.com/spec-kit/fulfillment-service/internal/domain"
)

// ReportIssueRequest payload.
type ReportIssueRequest struct {
	Description string `json:"description"`
	ActionToken string `json:"action_token,omitempty"`
}

// ApproveWorkRequest payload. Confirmation must be the exact word COMPLETE.
type ApproveWorkRequest struct {
	Confirmation string `json:"confirmation"`
}

// RequestCorrectionsRequest payload.
type RequestCorrectionsRequest struct {
	Instructions string `json:"instructions"`
}

// ApproveRefundRequest payload. Confirmation must be the exact word REFUND.
type ApproveRefundRequest struct {
	Confirmation string            `json:"confirmation"`
	RefundType   domain.RefundType `json:"refund_type"`
	RefundCents  *int64            `json:"refund_cents,omitempty"`
}

// IssueResponse represents a dispute.
type IssueResponse struct {
	ID          string               `json:"id"`
	OrderID     string               `json:"order_id"`
	ReporterID  string               `json:"reporter_id"`
	Description string               `json:"description"`
	Priority    domain.IssuePriority `json:"priority"`
	Status      domain.IssueStatus   `json:"status"`
	Resolution  *string              `json:"resolution,omitempty"`
	ResolverID  *string              `json:"resolver_id,omitempty"`
	ResolvedAt  *time.Time           `json:"resolved_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}
