package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RoleKey   contextKey = "user_role"
	WalletKey contextKey = "user_wallet"
)

// WithIdentity stores the authenticated caller on the context. Used by the
// JWT middleware and by tests that need an authenticated request context.
func WithIdentity(ctx context.Context, userID uuid.UUID, role Role, wallet string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, RoleKey, role)
	return context.WithValue(ctx, WalletKey, wallet)
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

func RoleFromContext(ctx context.Context) Role {
	role, _ := ctx.Value(RoleKey).(Role)
	return role
}

func WalletFromContext(ctx context.Context) string {
	wallet, _ := ctx.Value(WalletKey).(string)
	return wallet
}
