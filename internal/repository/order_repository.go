package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fulfillment-service/internal/domain"
)

// ErrStatusConflict is returned when a conditional status update matched no
// row: the order exists but its status no longer satisfies the guard. The
// store's serial order is authoritative; the loser must re-read, never force.
var ErrStatusConflict = errors.New("order status guard failed")

// OrderRepository encapsulates order persistence. Status mutations are
// single conditional statements so the check-then-set holds no local window.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Order, error)
	// StartWork moves PENDING -> IN_PROGRESS and claims the worker slot when
	// empty. Fails with ErrStatusConflict if another worker already holds it
	// or the order moved on.
	StartWork(ctx context.Context, orderID, workerID string) (*domain.Order, error)
	// SetStatus transitions to the target status only while the current
	// status is one of from.
	SetStatus(ctx context.Context, orderID string, from []domain.OrderStatus, to domain.OrderStatus, notes *string) (*domain.Order, error)
	// Complete transitions to COMPLETED and commits the payout decision in
	// the same transaction, so COMPLETED never exists without one.
	Complete(ctx context.Context, orderID string, from []domain.OrderStatus, actorID string) (*domain.Order, error)
	// Cancel transitions to CANCELLED recording reason and refund decision.
	Cancel(ctx context.Context, orderID string, from []domain.OrderStatus, reason string, refundType domain.RefundType, refundCents int64) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error)
}

type orderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository instantiates the repository.
func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

const orderColumns = `id, order_no, external_key, status, value_cents, deposit_cents, currency,
       customer_id, worker_id, support_id, channel_id, completion_notes, cancellation_reason,
       refund_type, refund_cents, created_at, updated_at, completed_at, cancelled_at`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	const query = `
        INSERT INTO orders (external_key, status, value_cents, deposit_cents, currency, customer_id, worker_id, support_id, channel_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, order_no, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		order.ExternalKey,
		order.Status,
		order.ValueCents,
		order.DepositCents,
		order.Currency,
		order.CustomerID,
		order.WorkerID,
		order.SupportID,
		order.ChannelID,
	).Scan(&order.ID, &order.OrderNo, &order.CreatedAt, &order.UpdatedAt)
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE id=$1`, orderColumns)
	return r.fetchSingle(ctx, r.pool, query, id)
}

func (r *orderRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE external_key=$1`, orderColumns)
	return r.fetchSingle(ctx, r.pool, query, key)
}

func (r *orderRepository) StartWork(ctx context.Context, orderID, workerID string) (*domain.Order, error) {
	query := fmt.Sprintf(`
        UPDATE orders
        SET status=$2, worker_id=COALESCE(worker_id, $3), updated_at=NOW()
        WHERE id=$1 AND status=$4 AND (worker_id IS NULL OR worker_id=$3)
        RETURNING %s`, orderColumns)
	order, err := r.fetchSingle(ctx, r.pool, query, orderID, domain.OrderStatusInProgress, workerID, domain.OrderStatusPending)
	if err != nil {
		return nil, r.classifyGuardFailure(ctx, orderID, err)
	}
	return order, nil
}

func (r *orderRepository) SetStatus(ctx context.Context, orderID string, from []domain.OrderStatus, to domain.OrderStatus, notes *string) (*domain.Order, error) {
	query := fmt.Sprintf(`
        UPDATE orders
        SET status=$2, completion_notes=COALESCE($3, completion_notes), updated_at=NOW()
        WHERE id=$1 AND status = ANY($4)
        RETURNING %s`, orderColumns)
	order, err := r.fetchSingle(ctx, r.pool, query, orderID, to, notes, statusList(from))
	if err != nil {
		return nil, r.classifyGuardFailure(ctx, orderID, err)
	}
	return order, nil
}

func (r *orderRepository) Complete(ctx context.Context, orderID string, from []domain.OrderStatus, actorID string) (*domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := fmt.Sprintf(`
        UPDATE orders
        SET status=$2, completed_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND status = ANY($3)
        RETURNING %s`, orderColumns)
	order, err := r.fetchSingle(ctx, tx, query, orderID, domain.OrderStatusCompleted, statusList(from))
	if err != nil {
		return nil, r.classifyGuardFailure(ctx, orderID, err)
	}

	if order.WorkerID != nil {
		const payoutQuery = `
            INSERT INTO payouts (order_id, worker_id, amount_cents, currency)
            VALUES ($1,$2,$3,$4)`
		if _, err := tx.Exec(ctx, payoutQuery, order.ID, *order.WorkerID, order.ValueCents, order.Currency); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) Cancel(ctx context.Context, orderID string, from []domain.OrderStatus, reason string, refundType domain.RefundType, refundCents int64) (*domain.Order, error) {
	query := fmt.Sprintf(`
        UPDATE orders
        SET status=$2, cancellation_reason=$3, refund_type=$4, refund_cents=$5, cancelled_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND status = ANY($6)
        RETURNING %s`, orderColumns)
	order, err := r.fetchSingle(ctx, r.pool, query, orderID, domain.OrderStatusCancelled, reason, refundType, refundCents, statusList(from))
	if err != nil {
		return nil, r.classifyGuardFailure(ctx, orderID, err)
	}
	return order, nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE customer_id=$1 ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		orderColumns, limit, offset)
	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *order)
	}
	return result, rows.Err()
}

// classifyGuardFailure distinguishes "order does not exist" from "order
// exists but the status guard rejected the write".
func (r *orderRepository) classifyGuardFailure(ctx context.Context, orderID string, err error) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id=$1)`, orderID).Scan(&exists)
	if checkErr != nil {
		return err
	}
	if exists {
		return ErrStatusConflict
	}
	return pgx.ErrNoRows
}

type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *orderRepository) fetchSingle(ctx context.Context, q pgxQuerier, query string, args ...any) (*domain.Order, error) {
	return scanOrder(q.QueryRow(ctx, query, args...))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	if err := row.Scan(
		&order.ID,
		&order.OrderNo,
		&order.ExternalKey,
		&order.Status,
		&order.ValueCents,
		&order.DepositCents,
		&order.Currency,
		&order.CustomerID,
		&order.WorkerID,
		&order.SupportID,
		&order.ChannelID,
		&order.CompletionNotes,
		&order.CancellationReason,
		&order.RefundType,
		&order.RefundCents,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.CompletedAt,
		&order.CancelledAt,
	); err != nil {
		return nil, err
	}
	return &order, nil
}

func statusList(statuses []domain.OrderStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
