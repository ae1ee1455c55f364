package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/fulfillment-service/internal/domain"
	"github.com/spec-kit/fulfillment-service/internal/events"
	"github.com/spec-kit/fulfillment-service/internal/repository"
	apperrors "github.com/spec-kit/fulfillment-service/pkg/util/errorutil"
)

// Confirmation phrases required on resolution paths, to reduce accidental
// adjudication from a mis-click.
const (
	PhraseApproveWork   = "COMPLETE"
	PhraseApproveRefund = "REFUND"
)

// DisputeService implements the three-outcome adjudication workflow. Side
// effects are applied in a fixed order on every path: lifecycle transition
// first, issue record second, notifications last. A failed issue update
// after a committed transition is a recoverable warning, never a rollback.
type DisputeService struct {
	issues    repository.IssueRepository
	lifecycle *OrderLifecycleService
	roles     *RoleResolver
	fanout    *NotificationFanout
	tokens    ActionTokens
	dispatch  events.Dispatcher
	logger    *zap.Logger
}

// DisputeDependencies bundles collaborators for the dispute workflow.
type DisputeDependencies struct {
	IssueRepo  repository.IssueRepository
	Lifecycle  *OrderLifecycleService
	Roles      *RoleResolver
	Fanout     *NotificationFanout
	Tokens     ActionTokens
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewDisputeService constructs the workflow.
func NewDisputeService(deps DisputeDependencies) *DisputeService {
	return &DisputeService{
		issues:    deps.IssueRepo,
		lifecycle: deps.Lifecycle,
		roles:     deps.Roles,
		fanout:    deps.Fanout,
		tokens:    deps.Tokens,
		dispatch:  deps.Dispatcher,
		logger:    deps.Logger,
	}
}

// ReportIssue files a dispute on an in-flight order. Only the order's
// customer can report; the order moves to DISPUTED and the stale
// confirm/report actions on the prior prompt are revoked so the same issue
// cannot be double-filed from an old render.
func (s *DisputeService) ReportIssue(ctx context.Context, orderID, reporterID, description string) (*domain.Issue, error) {
	order, err := s.lifecycle.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != reporterID {
		return nil, apperrors.NewPermissionDenied("only the order's customer can report an issue")
	}
	if strings.TrimSpace(description) == "" {
		return nil, apperrors.NewValidationError("describe the problem so staff can review it", nil)
	}

	order, err = s.lifecycle.MarkDisputed(ctx, orderID, reporterID)
	if err != nil {
		return nil, err
	}

	issue := &domain.Issue{
		OrderID:     order.ID,
		ReporterID:  reporterID,
		Description: strings.TrimSpace(description),
		Priority:    domain.IssuePriorityHigh,
		Status:      domain.IssueStatusOpen,
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		if errors.Is(err, repository.ErrOpenIssueExists) {
			return nil, apperrors.NewConflict("this order already has an open issue", nil)
		}
		// Order is already DISPUTED; staff recover via the dispute queue.
		s.logger.Warn("issue record failed after dispute transition",
			zap.String("order_id", order.ID), zap.Error(err))
		return nil, apperrors.MapError(err)
	}

	if s.tokens != nil {
		if err := s.tokens.Revoke(ctx, ActionScopeConfirm, order.ID); err != nil {
			s.logger.Warn("failed to revoke confirm action", zap.String("order_id", order.ID), zap.Error(err))
		}
		if err := s.tokens.Revoke(ctx, ActionScopeReportIssue, order.ID); err != nil {
			s.logger.Warn("failed to revoke report action", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	s.publish(ctx, events.EventIssueReported, order.ID, reporterID, events.IssueReportedPayload{
		IssueID:     issue.ID,
		Description: issue.Description,
	})
	s.fanout.Notify(ctx, order,
		fmt.Sprintf("An issue was reported on order %s: %s", order.ExternalKey, issue.Description),
		RecipientOrderChannel, RecipientStaffLog)
	return issue, nil
}

// ApproveWork resolves the dispute in the worker's favor: the order is
// confirmed on the customer's behalf and the payout proceeds.
func (s *DisputeService) ApproveWork(ctx context.Context, issueID, actorID, phrase string) (*domain.Issue, error) {
	if err := s.requireStaff(ctx, actorID); err != nil {
		return nil, err
	}
	if err := requirePhrase(phrase, PhraseApproveWork); err != nil {
		return nil, err
	}
	issue, order, err := s.loadOpenIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	// Staff confirms with the customer's identity substituted as confirmer.
	if _, err := s.lifecycle.ConfirmCompletion(ctx, order.ID, order.CustomerID,
		"approved by staff after dispute review", true); err != nil {
		return nil, err
	}

	return s.resolve(ctx, issue, order, actorID, "worker right")
}

// RequestCorrections resumes work with fix instructions. The issue stays
// open (IN_REVIEW) until a later confirmation or refund closes it.
func (s *DisputeService) RequestCorrections(ctx context.Context, issueID, actorID, instructions string) (*domain.Issue, error) {
	if err := s.requireStaff(ctx, actorID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(instructions) == "" {
		return nil, apperrors.NewValidationError(
			"describe what the worker needs to fix", nil)
	}
	issue, order, err := s.loadOpenIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	if _, err := s.lifecycle.ResumeWork(ctx, order.ID, actorID, instructions); err != nil {
		return nil, err
	}

	updated, err := s.issues.MarkInReview(ctx, issue.ID, actorID)
	if err != nil {
		// Transition is committed; surface the bookkeeping gap, keep going.
		s.logger.Warn("issue review update failed after corrections transition",
			zap.String("issue_id", issue.ID), zap.Error(err))
		return issue, nil
	}
	return updated, nil
}

// ApproveRefund resolves the dispute in the customer's favor via
// cancellation with a refund; any reserved item is released by the cancel.
func (s *DisputeService) ApproveRefund(ctx context.Context, issueID, actorID, phrase string, refundType domain.RefundType, refundCents *int64) (*domain.Issue, error) {
	if err := s.requireStaff(ctx, actorID); err != nil {
		return nil, err
	}
	if err := requirePhrase(phrase, PhraseApproveRefund); err != nil {
		return nil, err
	}
	issue, order, err := s.loadOpenIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.lifecycle.CancelOrder(ctx, order.ID, Actor{ID: actorID, IsStaff: true}, CancelInput{
		Reason:      "refund approved after dispute review",
		RefundType:  refundType,
		RefundCents: refundCents,
	})
	if err != nil {
		return nil, err
	}

	refund := int64(0)
	if cancelled.RefundCents != nil {
		refund = *cancelled.RefundCents
	}
	return s.resolve(ctx, issue, cancelled, actorID, describeRefund(refundType, refund))
}

func (s *DisputeService) resolve(ctx context.Context, issue *domain.Issue, order *domain.Order, actorID, resolution string) (*domain.Issue, error) {
	updated, err := s.issues.Resolve(ctx, issue.ID, resolution, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrIssueAlreadyResolved) {
			return nil, apperrors.NewConflict("this issue was already resolved", nil)
		}
		// Lifecycle transition is already committed; do not roll it back.
		s.logger.Warn("issue resolution record failed after lifecycle transition",
			zap.String("issue_id", issue.ID), zap.Error(err))
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventIssueResolved, order.ID, actorID, events.IssueResolvedPayload{
		IssueID:    updated.ID,
		Resolution: resolution,
	})
	s.fanout.Notify(ctx, order,
		fmt.Sprintf("The issue on order %s was resolved: %s", order.ExternalKey, resolution),
		RecipientCustomerDM, RecipientWorkerDM, RecipientStaffLog)
	return updated, nil
}

func (s *DisputeService) loadOpenIssue(ctx context.Context, issueID string) (*domain.Issue, *domain.Order, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	if issue.Status == domain.IssueStatusResolved {
		return nil, nil, apperrors.NewConflict("this issue was already resolved", nil)
	}
	order, err := s.lifecycle.GetOrder(ctx, issue.OrderID)
	if err != nil {
		return nil, nil, err
	}
	return issue, order, nil
}

func (s *DisputeService) requireStaff(ctx context.Context, actorID string) error {
	ok, err := s.roles.HasStaffPrivilege(ctx, actorID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !ok {
		return apperrors.NewPermissionDenied("resolving a dispute requires the admin or support role")
	}
	return nil
}

func (s *DisputeService) publish(ctx context.Context, eventType events.EventType, orderID, actorID string, payload any) {
	if s.dispatch == nil {
		return
	}
	_ = s.dispatch.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		OrderID:   orderID,
		ActorID:   actorID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func requirePhrase(got, want string) error {
	if strings.TrimSpace(got) != want {
		return apperrors.NewValidationError(
			fmt.Sprintf("type the exact word %s to confirm", want), nil)
	}
	return nil
}
