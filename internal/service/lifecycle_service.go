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

// Actor identifies the caller of a lifecycle operation.
type Actor struct {
	ID      string
	IsStaff bool
}

// allowedTransitions defines the valid status edges. Any transition outside
// this graph fails and leaves status unchanged.
var allowedTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:         {domain.OrderStatusInProgress, domain.OrderStatusCancelled},
	domain.OrderStatusInProgress:      {domain.OrderStatusAwaitingConfirm, domain.OrderStatusDisputed, domain.OrderStatusCancelled},
	domain.OrderStatusAwaitingConfirm: {domain.OrderStatusCompleted, domain.OrderStatusDisputed, domain.OrderStatusCancelled},
	domain.OrderStatusDisputed:        {domain.OrderStatusAwaitingConfirm, domain.OrderStatusInProgress, domain.OrderStatusCancelled},
	domain.OrderStatusCompleted:       {},
	domain.OrderStatusCancelled:       {},
}

// IsValidTransition reports whether the edge current -> next exists.
func IsValidTransition(current, next domain.OrderStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// OrderLifecycleService owns the order state graph. Every transition
// re-reads current status, validates the precondition, and then issues a
// conditional write; a write that loses the race surfaces as StaleState and
// the caller must re-render from current state.
type OrderLifecycleService struct {
	orders     repository.OrderRepository
	tickets    repository.TicketRepository
	history    repository.OrderHistoryRepository
	guard      *ReservationGuard
	fanout     *NotificationFanout
	tokens     ActionTokens
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	OrderRepo   repository.OrderRepository
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.OrderHistoryRepository
	Guard       *ReservationGuard
	Fanout      *NotificationFanout
	Tokens      ActionTokens
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewOrderLifecycleService constructs the service.
func NewOrderLifecycleService(deps LifecycleDependencies) *OrderLifecycleService {
	return &OrderLifecycleService{
		orders:     deps.OrderRepo,
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		guard:      deps.Guard,
		fanout:     deps.Fanout,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// OrderCreateInput describes an accepted purchase intent.
type OrderCreateInput struct {
	CustomerID   string
	ChannelID    string
	ValueCents   int64
	DepositCents int64
	Currency     string
	TicketID     string
}

// CreateOrder records a new PENDING order for an accepted purchase intent.
func (s *OrderLifecycleService) CreateOrder(ctx context.Context, input OrderCreateInput) (*domain.Order, error) {
	if input.CustomerID == "" || input.ChannelID == "" {
		return nil, apperrors.NewValidationError("customer and channel are required", nil)
	}
	if input.ValueCents < 0 || input.DepositCents < 0 {
		return nil, apperrors.NewValidationError("order value and deposit must not be negative", nil)
	}

	order := &domain.Order{
		ExternalKey:  generateOrderKey(),
		Status:       domain.OrderStatusPending,
		ValueCents:   input.ValueCents,
		DepositCents: input.DepositCents,
		Currency:     input.Currency,
		CustomerID:   input.CustomerID,
		ChannelID:    input.ChannelID,
	}
	if order.Currency == "" {
		order.Currency = "USD"
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperrors.MapError(err)
	}
	if input.TicketID != "" {
		if err := s.tickets.AttachOrder(ctx, input.TicketID, order.ID); err != nil {
			s.logger.Warn("failed to attach order to ticket",
				zap.String("ticket_id", input.TicketID), zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	s.publish(ctx, events.EventOrderCreated, order.ID, input.CustomerID, events.OrderStatusChangedPayload{
		OrderKey:  order.ExternalKey,
		NewStatus: order.Status,
	})
	s.fanout.Notify(ctx, order,
		fmt.Sprintf("Order %s created for %s.", order.ExternalKey, formatMoney(order.ValueCents)),
		RecipientOrderChannel, RecipientStaffLog)
	return order, nil
}

// GetOrder fetches an order by id.
func (s *OrderLifecycleService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("order", map[string]any{"order_id": orderID})
		}
		return nil, apperrors.MapError(err)
	}
	return order, nil
}

// StartWork moves a PENDING order to IN_PROGRESS, claiming the worker slot.
// A second worker accepting the same order loses: the conditional write is
// the single authority and a rejected write is the correct outcome.
func (s *OrderLifecycleService) StartWork(ctx context.Context, orderID, workerID string) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	assignedToCaller := order.WorkerID != nil && *order.WorkerID == workerID
	switch {
	case order.Status == domain.OrderStatusPending && (order.WorkerID == nil || assignedToCaller):
	case order.Status == domain.OrderStatusInProgress && assignedToCaller:
		// Re-click from the same worker: current state already matches.
		return order, nil
	default:
		return nil, apperrors.NewInvalidTransition(
			fmt.Sprintf("order %s is %s and cannot be started; refresh to see its current state",
				order.ExternalKey, order.Status),
			map[string]any{"status": order.Status})
	}

	updated, err := s.orders.StartWork(ctx, orderID, workerID)
	if err != nil {
		return nil, s.classifyTransitionError(err, order.ExternalKey)
	}

	s.recordHistory(ctx, updated, workerID, order.Status, "work started")
	s.publish(ctx, events.EventWorkStarted, updated.ID, workerID, events.OrderStatusChangedPayload{
		OrderKey:  updated.ExternalKey,
		OldStatus: order.Status,
		NewStatus: updated.Status,
	})
	s.fanout.Notify(ctx, updated,
		fmt.Sprintf("Work on order %s has started.", updated.ExternalKey),
		RecipientCustomerDM, RecipientOrderChannel, RecipientStaffLog)
	return updated, nil
}

// CompleteWork moves IN_PROGRESS to AWAITING_CONFIRM, storing delivery notes
// and prompting the customer to confirm or report an issue.
func (s *OrderLifecycleService) CompleteWork(ctx context.Context, orderID, workerID, notes string) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.WorkerID == nil || *order.WorkerID != workerID {
		return nil, apperrors.NewPermissionDenied("only the assigned worker can deliver this order")
	}
	if order.Status != domain.OrderStatusInProgress {
		return nil, apperrors.NewInvalidTransition(
			fmt.Sprintf("order %s is %s; only in-progress orders can be delivered", order.ExternalKey, order.Status),
			map[string]any{"status": order.Status})
	}

	trimmed := strings.TrimSpace(notes)
	updated, err := s.orders.SetStatus(ctx, orderID,
		[]domain.OrderStatus{domain.OrderStatusInProgress}, domain.OrderStatusAwaitingConfirm, &trimmed)
	if err != nil {
		return nil, s.classifyTransitionError(err, order.ExternalKey)
	}

	s.recordHistory(ctx, updated, workerID, order.Status, "work delivered")
	s.publish(ctx, events.EventWorkCompleted, updated.ID, workerID, events.OrderStatusChangedPayload{
		OrderKey:  updated.ExternalKey,
		OldStatus: order.Status,
		NewStatus: updated.Status,
	})

	// Customer-only confirm and report-issue actions on the prompt message.
	s.issueToken(ctx, ActionScopeConfirm, updated)
	s.issueToken(ctx, ActionScopeReportIssue, updated)

	s.fanout.Notify(ctx, updated,
		fmt.Sprintf("Order %s was delivered. Please confirm completion or report an issue.", updated.ExternalKey),
		RecipientCustomerDM, RecipientOrderChannel)
	return updated, nil
}

// ConfirmCompletion moves AWAITING_CONFIRM to COMPLETED. The payout decision
// is committed in the same transaction as the transition, so COMPLETED never
// exists without one. With isAdminOverride set, a DISPUTED order is first
// normalized back to AWAITING_CONFIRM.
func (s *OrderLifecycleService) ConfirmCompletion(ctx context.Context, orderID, confirmerID, feedback string, isAdminOverride bool) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !isAdminOverride {
		if order.CustomerID != confirmerID {
			return nil, apperrors.NewPermissionDenied("only the order's customer can confirm completion")
		}
		if order.Status != domain.OrderStatusAwaitingConfirm {
			return nil, apperrors.NewInvalidTransition(
				fmt.Sprintf("order %s is %s; there is nothing to confirm", order.ExternalKey, order.Status),
				map[string]any{"status": order.Status})
		}
	} else if order.Status != domain.OrderStatusAwaitingConfirm && order.Status != domain.OrderStatusDisputed {
		return nil, apperrors.NewInvalidTransition(
			fmt.Sprintf("order %s is %s; override confirmation applies to awaiting or disputed orders", order.ExternalKey, order.Status),
			map[string]any{"status": order.Status})
	}

	if isAdminOverride && order.Status == domain.OrderStatusDisputed {
		normalized, err := s.orders.SetStatus(ctx, orderID,
			[]domain.OrderStatus{domain.OrderStatusDisputed}, domain.OrderStatusAwaitingConfirm, nil)
		if err != nil {
			return nil, s.classifyTransitionError(err, order.ExternalKey)
		}
		s.recordHistory(ctx, normalized, confirmerID, order.Status, "dispute override")
		order = normalized
	}

	updated, err := s.orders.Complete(ctx, orderID,
		[]domain.OrderStatus{domain.OrderStatusAwaitingConfirm}, confirmerID)
	if err != nil {
		return nil, s.classifyTransitionError(err, order.ExternalKey)
	}

	reason := "completion confirmed"
	if feedback != "" {
		reason = "completion confirmed: " + feedback
	}
	s.recordHistory(ctx, updated, confirmerID, order.Status, reason)

	payoutCents := updated.ValueCents
	workerID := ""
	if updated.WorkerID != nil {
		workerID = *updated.WorkerID
	}
	s.publish(ctx, events.EventOrderConfirmed, updated.ID, confirmerID, events.OrderConfirmedPayload{
		OrderKey:    updated.ExternalKey,
		WorkerID:    workerID,
		PayoutCents: payoutCents,
		Currency:    updated.Currency,
	})

	// The confirm/report prompt is now stale either way.
	s.revokeToken(ctx, ActionScopeConfirm, updated.ID)
	s.revokeToken(ctx, ActionScopeReportIssue, updated.ID)

	s.fanout.Notify(ctx, updated,
		fmt.Sprintf("Order %s is complete. Payout of %s authorized.", updated.ExternalKey, formatMoney(payoutCents)),
		RecipientCustomerDM, RecipientWorkerDM, RecipientStaffLog)
	return updated, nil
}

// CancelInput captures a cancellation request.
type CancelInput struct {
	Reason      string
	RefundType  domain.RefundType
	RefundCents *int64
}

// CancelOrder cancels a non-terminal order, releasing any reserved item tied
// to it before returning. Refund validation: PARTIAL requires an amount in
// (0, order value]; FULL is computed from the order value and ignores any
// supplied amount; NONE refunds nothing.
func (s *OrderLifecycleService) CancelOrder(ctx context.Context, orderID string, actor Actor, input CancelInput) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !actor.IsStaff && !(actor.ID == order.CustomerID && order.Status == domain.OrderStatusPending) {
		return nil, apperrors.NewPermissionDenied("only staff can cancel an order that is already being worked on")
	}
	if order.Status.IsTerminal() {
		return nil, apperrors.NewInvalidTransition(
			fmt.Sprintf("order %s is already %s", order.ExternalKey, order.Status),
			map[string]any{"status": order.Status})
	}

	refundCents, err := resolveRefund(order, input.RefundType, input.RefundCents)
	if err != nil {
		return nil, err
	}

	updated, err := s.orders.Cancel(ctx, orderID,
		[]domain.OrderStatus{
			domain.OrderStatusPending,
			domain.OrderStatusInProgress,
			domain.OrderStatusAwaitingConfirm,
			domain.OrderStatusDisputed,
		},
		input.Reason, input.RefundType, refundCents)
	if err != nil {
		return nil, s.classifyTransitionError(err, order.ExternalKey)
	}

	s.releaseReservedItem(ctx, updated)

	s.recordHistory(ctx, updated, actor.ID, order.Status, "cancelled: "+input.Reason)
	s.publish(ctx, events.EventOrderCancelled, updated.ID, actor.ID, events.OrderCancelledPayload{
		OrderKey:    updated.ExternalKey,
		Reason:      input.Reason,
		RefundType:  input.RefundType,
		RefundCents: refundCents,
		Currency:    updated.Currency,
	})

	s.revokeToken(ctx, ActionScopeConfirm, updated.ID)
	s.revokeToken(ctx, ActionScopeReportIssue, updated.ID)

	s.fanout.Notify(ctx, updated,
		fmt.Sprintf("Order %s was cancelled (%s).", updated.ExternalKey, describeRefund(input.RefundType, refundCents)),
		RecipientCustomerDM, RecipientWorkerDM)
	return updated, nil
}

// ResumeWork sends a disputed order back to IN_PROGRESS with correction
// instructions attached. Used by the dispute corrections path.
func (s *OrderLifecycleService) ResumeWork(ctx context.Context, orderID, actorID, instructions string) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusDisputed {
		return nil, apperrors.NewInvalidTransition(
			fmt.Sprintf("order %s is %s; corrections apply to disputed orders", order.ExternalKey, order.Status),
			map[string]any{"status": order.Status})
	}

	trimmed := strings.TrimSpace(instructions)
	updated, err := s.orders.SetStatus(ctx, orderID,
		[]domain.OrderStatus{domain.OrderStatusDisputed}, domain.OrderStatusInProgress, &trimmed)
	if err != nil {
		return nil, s.classifyTransitionError(err, order.ExternalKey)
	}

	s.recordHistory(ctx, updated, actorID, order.Status, "corrections requested")
	s.publish(ctx, events.EventWorkStarted, updated.ID, actorID, events.OrderStatusChangedPayload{
		OrderKey:  updated.ExternalKey,
		OldStatus: order.Status,
		NewStatus: updated.Status,
		Reason:    "corrections requested",
	})
	s.fanout.Notify(ctx, updated,
		fmt.Sprintf("Order %s needs corrections: %s", updated.ExternalKey, trimmed),
		RecipientCustomerDM, RecipientWorkerDM, RecipientOrderChannel)
	return updated, nil
}

// MarkDisputed transitions an order into DISPUTED. Owned here so the dispute
// workflow goes through the same edge validation as every other transition.
func (s *OrderLifecycleService) MarkDisputed(ctx context.Context, orderID, actorID string) (*domain.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusInProgress && order.Status != domain.OrderStatusAwaitingConfirm {
		return nil, apperrors.NewInvalidTransition(
			fmt.Sprintf("order %s is %s; issues can only be reported while work is underway or awaiting confirmation",
				order.ExternalKey, order.Status),
			map[string]any{"status": order.Status})
	}

	updated, err := s.orders.SetStatus(ctx, orderID,
		[]domain.OrderStatus{domain.OrderStatusInProgress, domain.OrderStatusAwaitingConfirm},
		domain.OrderStatusDisputed, nil)
	if err != nil {
		return nil, s.classifyTransitionError(err, order.ExternalKey)
	}

	s.recordHistory(ctx, updated, actorID, order.Status, "issue reported")
	return updated, nil
}

// classifyTransitionError maps a lost conditional write to StaleState: the
// precondition held when read but another actor moved the order first.
func (s *OrderLifecycleService) classifyTransitionError(err error, orderKey string) error {
	switch {
	case errors.Is(err, repository.ErrStatusConflict):
		return apperrors.NewStaleState(
			fmt.Sprintf("order %s was updated by someone else; refresh to see its current state", orderKey),
			map[string]any{"order_key": orderKey})
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("order", map[string]any{"order_key": orderKey})
	default:
		return apperrors.MapError(err)
	}
}

// releaseReservedItem frees an undelivered item bound to the order's ticket.
func (s *OrderLifecycleService) releaseReservedItem(ctx context.Context, order *domain.Order) {
	ticket, err := s.tickets.GetByOrder(ctx, order.ID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("failed to look up ticket for cancelled order",
				zap.String("order_id", order.ID), zap.Error(err))
		}
		return
	}
	if ticket.ItemID == nil || ticket.Delivered {
		return
	}
	if _, err := s.guard.Release(ctx, *ticket.ItemID); err != nil {
		s.logger.Warn("failed to release reserved item",
			zap.String("order_id", order.ID), zap.String("item_id", *ticket.ItemID), zap.Error(err))
	}
}

func (s *OrderLifecycleService) recordHistory(ctx context.Context, order *domain.Order, actorID string, oldStatus domain.OrderStatus, reason string) {
	if s.history == nil {
		return
	}
	entry := &domain.OrderHistory{
		OrderID:   order.ID,
		ActorID:   actorID,
		OldStatus: oldStatus,
		NewStatus: order.Status,
		Reason:    reason,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record order history",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *OrderLifecycleService) publish(ctx context.Context, eventType events.EventType, orderID, actorID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		OrderID:   orderID,
		ActorID:   actorID,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func (s *OrderLifecycleService) issueToken(ctx context.Context, scope ActionScope, order *domain.Order) {
	if s.tokens == nil {
		return
	}
	if _, err := s.tokens.Issue(ctx, ActionClaim{
		Scope:    scope,
		OrderID:  order.ID,
		Audience: order.CustomerID,
	}); err != nil {
		s.logger.Warn("failed to issue action token",
			zap.String("order_id", order.ID), zap.String("scope", string(scope)), zap.Error(err))
	}
}

func (s *OrderLifecycleService) revokeToken(ctx context.Context, scope ActionScope, orderID string) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.Revoke(ctx, scope, orderID); err != nil {
		s.logger.Warn("failed to revoke action token",
			zap.String("order_id", orderID), zap.String("scope", string(scope)), zap.Error(err))
	}
}

// resolveRefund validates and computes the refund amount in cents.
func resolveRefund(order *domain.Order, refundType domain.RefundType, refundCents *int64) (int64, error) {
	switch refundType {
	case domain.RefundTypeFull:
		// Always computed from the order value; any supplied amount is ignored.
		return order.ValueCents, nil
	case domain.RefundTypeNone:
		return 0, nil
	case domain.RefundTypePartial:
		if refundCents == nil || *refundCents <= 0 {
			return 0, apperrors.NewValidationError(
				"a partial refund needs an amount greater than zero", nil)
		}
		if *refundCents > order.ValueCents {
			return 0, apperrors.NewValidationError(
				fmt.Sprintf("partial refund cannot exceed the order value of %s", formatMoney(order.ValueCents)),
				map[string]any{"max_cents": order.ValueCents})
		}
		return *refundCents, nil
	default:
		return 0, apperrors.NewValidationError(
			"refund type must be FULL, PARTIAL, or NONE", nil)
	}
}

func describeRefund(refundType domain.RefundType, refundCents int64) string {
	switch refundType {
	case domain.RefundTypeFull:
		return fmt.Sprintf("%s full refund", formatMoney(refundCents))
	case domain.RefundTypePartial:
		return fmt.Sprintf("%s partial refund", formatMoney(refundCents))
	default:
		return "no refund"
	}
}

func formatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func generateOrderKey() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
