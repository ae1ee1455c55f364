package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fulfillment-service/internal/domain"
)

// ErrItemUnavailable is returned when a reservation attempt lost the race or
// the item is reserved/sold.
var ErrItemUnavailable = errors.New("item not available")

// ErrReservationMismatch is returned when a sale finalization is attempted
// by a ticket/customer pair other than the recorded holder.
var ErrReservationMismatch = errors.New("reservation held by another party")

// ItemRepository encapsulates unique-item persistence. Reserve and
// FinalizeSale are single conditional statements: the row guard is the
// atomicity authority for the exactly-one-reservation invariant.
type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	Reserve(ctx context.Context, itemID, ticketID, customerID string) (*domain.Item, error)
	FinalizeSale(ctx context.Context, itemID, ticketID, customerID string) (*domain.Item, error)
	// Release is idempotent: already-available and sold items are returned
	// unchanged, never resurrected to available.
	Release(ctx context.Context, itemID string) (*domain.Item, error)
}

type itemRepository struct {
	pool *pgxpool.Pool
}

// NewItemRepository instantiates the repository.
func NewItemRepository(pool *pgxpool.Pool) ItemRepository {
	return &itemRepository{pool: pool}
}

const itemColumns = `id, category, price_cents, currency, available, reserved_ticket_id,
       reserved_customer_id, reserved_at, sold, sold_to_customer_id, sold_at, created_at, updated_at`

func (r *itemRepository) Create(ctx context.Context, item *domain.Item) error {
	const query = `
        INSERT INTO items (category, price_cents, currency, available)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		item.Category,
		item.PriceCents,
		item.Currency,
		item.Available,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}

func (r *itemRepository) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM items WHERE id=$1`, itemColumns)
	return scanItem(r.pool.QueryRow(ctx, query, id))
}

func (r *itemRepository) Reserve(ctx context.Context, itemID, ticketID, customerID string) (*domain.Item, error) {
	query := fmt.Sprintf(`
        UPDATE items
        SET available=FALSE, reserved_ticket_id=$2, reserved_customer_id=$3, reserved_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND available=TRUE AND sold=FALSE
        RETURNING %s`, itemColumns)
	item, err := scanItem(r.pool.QueryRow(ctx, query, itemID, ticketID, customerID))
	if err != nil {
		return nil, r.classifyGuardFailure(ctx, itemID, err, ErrItemUnavailable)
	}
	return item, nil
}

func (r *itemRepository) FinalizeSale(ctx context.Context, itemID, ticketID, customerID string) (*domain.Item, error) {
	query := fmt.Sprintf(`
        UPDATE items
        SET sold=TRUE, sold_to_customer_id=$3, sold_at=NOW(), available=FALSE,
            reserved_ticket_id=NULL, reserved_customer_id=NULL, reserved_at=NULL, updated_at=NOW()
        WHERE id=$1 AND sold=FALSE AND reserved_ticket_id=$2 AND reserved_customer_id=$3
        RETURNING %s`, itemColumns)
	item, err := scanItem(r.pool.QueryRow(ctx, query, itemID, ticketID, customerID))
	if err != nil {
		return nil, r.classifyGuardFailure(ctx, itemID, err, ErrReservationMismatch)
	}
	return item, nil
}

func (r *itemRepository) Release(ctx context.Context, itemID string) (*domain.Item, error) {
	query := fmt.Sprintf(`
        UPDATE items
        SET available=TRUE, reserved_ticket_id=NULL, reserved_customer_id=NULL, reserved_at=NULL, updated_at=NOW()
        WHERE id=$1 AND sold=FALSE AND reserved_ticket_id IS NOT NULL
        RETURNING %s`, itemColumns)
	item, err := scanItem(r.pool.QueryRow(ctx, query, itemID))
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	// Already available or already sold: a no-op, return the current row.
	return r.GetByID(ctx, itemID)
}

func (r *itemRepository) classifyGuardFailure(ctx context.Context, itemID string, err, guardErr error) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE id=$1)`, itemID).Scan(&exists)
	if checkErr != nil {
		return err
	}
	if exists {
		return guardErr
	}
	return pgx.ErrNoRows
}

func scanItem(row rowScanner) (*domain.Item, error) {
	var item domain.Item
	if err := row.Scan(
		&item.ID,
		&item.Category,
		&item.PriceCents,
		&item.Currency,
		&item.Available,
		&item.ReservedTicketID,
		&item.ReservedCustomerID,
		&item.ReservedAt,
		&item.Sold,
		&item.SoldToCustomerID,
		&item.SoldAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}
