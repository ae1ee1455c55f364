package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fulfillment-service/internal/domain"
)

// MemberRepository handles persistence for conversation-server members.
type MemberRepository interface {
	Create(ctx context.Context, member *domain.Member) error
	GetByID(ctx context.Context, id string) (*domain.Member, error)
	GetByEmail(ctx context.Context, email string) (*domain.Member, error)
	SetRoles(ctx context.Context, memberID string, roleIDs []string) error
}

type memberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository instantiates the repository.
func NewMemberRepository(pool *pgxpool.Pool) MemberRepository {
	return &memberRepository{pool: pool}
}

func (r *memberRepository) Create(ctx context.Context, member *domain.Member) error {
	const query = `
        INSERT INTO members (name, email, password_hash, role_ids, active_flag)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		member.Name,
		member.Email,
		member.PasswordHash,
		member.RoleIDs,
		member.Active,
	).Scan(&member.ID, &member.CreatedAt, &member.UpdatedAt)
}

func (r *memberRepository) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	const query = `
        SELECT id, name, email, password_hash, role_ids, active_flag, created_at, updated_at
        FROM members WHERE id=$1`
	return scanMember(r.pool.QueryRow(ctx, query, id))
}

func (r *memberRepository) GetByEmail(ctx context.Context, email string) (*domain.Member, error) {
	const query = `
        SELECT id, name, email, password_hash, role_ids, active_flag, created_at, updated_at
        FROM members WHERE email=$1`
	return scanMember(r.pool.QueryRow(ctx, query, email))
}

func (r *memberRepository) SetRoles(ctx context.Context, memberID string, roleIDs []string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE members SET role_ids=$2, updated_at=NOW() WHERE id=$1`, memberID, roleIDs)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanMember(row rowScanner) (*domain.Member, error) {
	var member domain.Member
	if err := row.Scan(
		&member.ID,
		&member.Name,
		&member.Email,
		&member.PasswordHash,
		&member.RoleIDs,
		&member.Active,
		&member.CreatedAt,
		&member.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &member, nil
}
