package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fulfillment-service/internal/domain"
)

// TicketRepository encapsulates conversation-binding persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error)
	GetByOrder(ctx context.Context, orderID string) (*domain.Ticket, error)
	AttachOrder(ctx context.Context, ticketID, orderID string) error
	AttachItem(ctx context.Context, ticketID, itemID string) error
	MarkDelivered(ctx context.Context, ticketID string) error
	Close(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ListOpenByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_type, customer_id, order_id, item_id, channel_id,
       open_flag, delivered_flag, details, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_type, customer_id, order_id, item_id, channel_id, open_flag, delivered_flag, details)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.Type,
		ticket.CustomerID,
		ticket.OrderID,
		ticket.ItemID,
		ticket.ChannelID,
		ticket.Open,
		ticket.Delivered,
		ticket.Details,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets WHERE channel_id=$1
        ORDER BY created_at DESC LIMIT 1`, ticketColumns)
	return scanTicket(r.pool.QueryRow(ctx, query, channelID))
}

func (r *ticketRepository) GetByOrder(ctx context.Context, orderID string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets WHERE order_id=$1
        ORDER BY created_at DESC LIMIT 1`, ticketColumns)
	return scanTicket(r.pool.QueryRow(ctx, query, orderID))
}

func (r *ticketRepository) AttachOrder(ctx context.Context, ticketID, orderID string) error {
	return r.exec(ctx, `UPDATE tickets SET order_id=$2, updated_at=NOW() WHERE id=$1`, ticketID, orderID)
}

func (r *ticketRepository) AttachItem(ctx context.Context, ticketID, itemID string) error {
	return r.exec(ctx, `UPDATE tickets SET item_id=$2, updated_at=NOW() WHERE id=$1`, ticketID, itemID)
}

func (r *ticketRepository) MarkDelivered(ctx context.Context, ticketID string) error {
	return r.exec(ctx, `UPDATE tickets SET delivered_flag=TRUE, updated_at=NOW() WHERE id=$1`, ticketID)
}

func (r *ticketRepository) Close(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`
        UPDATE tickets
        SET open_flag=FALSE, closed_at=NOW(), updated_at=NOW()
        WHERE id=$1
        RETURNING %s`, ticketColumns)
	return scanTicket(r.pool.QueryRow(ctx, query, ticketID))
}

func (r *ticketRepository) ListOpenByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE customer_id=$1 AND open_flag=TRUE
        ORDER BY created_at DESC`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Type,
		&ticket.CustomerID,
		&ticket.OrderID,
		&ticket.ItemID,
		&ticket.ChannelID,
		&ticket.Open,
		&ticket.Delivered,
		&ticket.Details,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
