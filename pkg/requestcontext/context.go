// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values set by middleware and read by handlers and services.
//
//	userID := requestcontext.UserID(ctx)
//	ctx = requestcontext.WithUser(ctx, "40000001", requestcontext.RoleProducer)
package requestcontext

import "context"

// Role is the caller's role as asserted by the access token.
type Role string

const (
	RoleProducer Role = "producer"
	RoleAdmin    Role = "admin"
)

type (
	userIDKey struct{}
	roleKey   struct{}
)

// UserID returns the national ID of the authenticated user, or "".
func UserID(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey{}).(string); ok {
		return userID
	}
	return ""
}

func UserRole(ctx context.Context) Role {
	if role, ok := ctx.Value(roleKey{}).(Role); ok {
		return role
	}
	return ""
}

func IsAdmin(ctx context.Context) bool {
	return UserRole(ctx) == RoleAdmin
}

// WithUser injects the authenticated identity into the context.
func WithUser(ctx context.Context, userID string, role Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey{}, userID)
	return context.WithValue(ctx, roleKey{}, role)
}
