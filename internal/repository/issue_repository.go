package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fulfillment-service/internal/domain"
)

// ErrIssueAlreadyResolved is returned when resolving an issue whose
// resolution is already recorded. The first resolution text is preserved.
var ErrIssueAlreadyResolved = errors.New("issue already resolved")

// ErrOpenIssueExists is returned when an order already has an open issue.
var ErrOpenIssueExists = errors.New("order already has an open issue")

// IssueRepository encapsulates dispute persistence.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	GetUnresolvedByOrder(ctx context.Context, orderID string) (*domain.Issue, error)
	MarkInReview(ctx context.Context, issueID, resolverID string) (*domain.Issue, error)
	Resolve(ctx context.Context, issueID, resolution, resolverID string) (*domain.Issue, error)
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates the repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

const issueColumns = `id, order_id, reporter_id, description, priority, status,
       resolution, resolver_id, resolved_at, created_at, updated_at`

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	// The partial unique index on (order_id) WHERE status='OPEN' backs the
	// at-most-one-open-issue invariant.
	const query = `
        INSERT INTO issues (order_id, reporter_id, description, priority, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		issue.OrderID,
		issue.ReporterID,
		issue.Description,
		issue.Priority,
		issue.Status,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrOpenIssueExists
	}
	return err
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE id=$1`, issueColumns)
	return scanIssue(r.pool.QueryRow(ctx, query, id))
}

func (r *issueRepository) GetUnresolvedByOrder(ctx context.Context, orderID string) (*domain.Issue, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM issues
        WHERE order_id=$1 AND status <> $2
        ORDER BY created_at DESC LIMIT 1`, issueColumns)
	return scanIssue(r.pool.QueryRow(ctx, query, orderID, domain.IssueStatusResolved))
}

func (r *issueRepository) MarkInReview(ctx context.Context, issueID, resolverID string) (*domain.Issue, error) {
	query := fmt.Sprintf(`
        UPDATE issues
        SET status=$2, resolver_id=$3, updated_at=NOW()
        WHERE id=$1 AND status <> $4
        RETURNING %s`, issueColumns)
	issue, err := scanIssue(r.pool.QueryRow(ctx, query, issueID, domain.IssueStatusInReview, resolverID, domain.IssueStatusResolved))
	if err != nil {
		return nil, r.classifyGuardFailure(ctx, issueID, err)
	}
	return issue, nil
}

func (r *issueRepository) Resolve(ctx context.Context, issueID, resolution, resolverID string) (*domain.Issue, error) {
	query := fmt.Sprintf(`
        UPDATE issues
        SET status=$2, resolution=$3, resolver_id=$4, resolved_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND status <> $2
        RETURNING %s`, issueColumns)
	issue, err := scanIssue(r.pool.QueryRow(ctx, query, issueID, domain.IssueStatusResolved, resolution, resolverID))
	if err != nil {
		return nil, r.classifyGuardFailure(ctx, issueID, err)
	}
	return issue, nil
}

func (r *issueRepository) classifyGuardFailure(ctx context.Context, issueID string, err error) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var exists bool
	checkErr := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM issues WHERE id=$1)`, issueID).Scan(&exists)
	if checkErr != nil {
		return err
	}
	if exists {
		return ErrIssueAlreadyResolved
	}
	return pgx.ErrNoRows
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanIssue(row rowScanner) (*domain.Issue, error) {
	var issue domain.Issue
	if err := row.Scan(
		&issue.ID,
		&issue.OrderID,
		&issue.ReporterID,
		&issue.Description,
		&issue.Priority,
		&issue.Status,
		&issue.Resolution,
		&issue.ResolverID,
		&issue.ResolvedAt,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}
