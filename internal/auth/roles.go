package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/fulfillment-service/pkg/util/errorutil"
)

// PrivilegeChecker answers whether a member holds admin-or-support privilege.
type PrivilegeChecker interface {
	HasStaffPrivilege(ctx context.Context, memberID string) (bool, error)
}

// RequireAuthenticated ensures a member is loaded on the request.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := MemberFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireStaff ensures the caller holds the admin or support role.
func RequireStaff(checker PrivilegeChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		member, ok := MemberFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		privileged, err := checker.HasStaffPrivilege(c.Context(), member.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if !privileged {
			return apperrors.NewPermissionDenied("admin or support role required")
		}
		return c.Next()
	}
}
