package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/fulfillment-service/internal/auth"
	"github.com/spec-kit/fulfillment-service/internal/config"
	"github.com/spec-kit/fulfillment-service/internal/domain"
	"github.com/spec-kit/fulfillment-service/internal/repository"
	apperrors "github.com/spec-kit/fulfillment-service/pkg/util/errorutil"
)

// RoleResolver answers "does this member hold admin-or-support privilege"
// against the two role identifiers configured for the storefront's server.
type RoleResolver struct {
	members repository.MemberRepository
	roles   config.RolesConfig
}

// NewRoleResolver constructs the resolver.
func NewRoleResolver(members repository.MemberRepository, roles config.RolesConfig) *RoleResolver {
	return &RoleResolver{members: members, roles: roles}
}

// HasStaffPrivilege reports whether the member holds the admin or support role.
func (r *RoleResolver) HasStaffPrivilege(ctx context.Context, memberID string) (bool, error) {
	member, err := r.members.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return member.HasAnyRole(r.roles.AdminRoleID, r.roles.SupportRoleID), nil
}

// AuthService handles member authentication.
type AuthService struct {
	members repository.MemberRepository
	tokens  *auth.TokenManager
	cfg     config.AuthConfig
}

// NewAuthService constructs the service.
func NewAuthService(cfg config.AuthConfig, members repository.MemberRepository) *AuthService {
	return &AuthService{
		members: members,
		tokens:  auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		cfg:     cfg,
	}
}

// TokenManager exposes the JWT manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

// LoginResult carries an issued session token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Member    *domain.Member
}

// Login validates credentials and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	member, err := s.members.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if !member.Active {
		return nil, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(member.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(member.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Member: member}, nil
}

// Register creates a member account with a hashed password.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.Member, error) {
	if name == "" || email == "" || len(password) < 8 {
		return nil, apperrors.NewValidationError("name, email, and a password of at least 8 characters are required", nil)
	}
	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	member := &domain.Member{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.members.Create(ctx, member); err != nil {
		return nil, apperrors.MapError(err)
	}
	return member, nil
}
