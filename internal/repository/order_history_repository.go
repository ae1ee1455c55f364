package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fulfillment-service/internal/domain"
)

// OrderHistoryRepository stores audit entries for status transitions.
type OrderHistoryRepository interface {
	Create(ctx context.Context, entry *domain.OrderHistory) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.OrderHistory, error)
}

type orderHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewOrderHistoryRepository builds repository.
func NewOrderHistoryRepository(pool *pgxpool.Pool) OrderHistoryRepository {
	return &orderHistoryRepository{pool: pool}
}

func (r *orderHistoryRepository) Create(ctx context.Context, entry *domain.OrderHistory) error {
	const query = `
        INSERT INTO order_history (order_id, actor_id, old_status, new_status, reason)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.OrderID,
		entry.ActorID,
		entry.OldStatus,
		entry.NewStatus,
		entry.Reason,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *orderHistoryRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderHistory, error) {
	const query = `
        SELECT id, order_id, actor_id, old_status, new_status, reason, created_at
        FROM order_history WHERE order_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.OrderHistory
	for rows.Next() {
		var entry domain.OrderHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.OrderID,
			&entry.ActorID,
			&entry.OldStatus,
			&entry.NewStatus,
			&entry.Reason,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
