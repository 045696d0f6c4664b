package auth

import (
	"context"

	"github.com/parcelgrid/parcelgrid/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// authContextKey carries the identity resolved by the API key gate.
	authContextKey contextKey = "auth_context"
	// sessionUserKey carries the user ID resolved by the session middleware.
	sessionUserKey contextKey = "session_user"
)

// ContextWithAuth adds the API key AuthContext to the context.
func ContextWithAuth(ctx context.Context, ac *model.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// AuthFromContext retrieves the AuthContext from the context.
// Returns nil if the request was not key-authenticated.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	ac, ok := ctx.Value(authContextKey).(*model.AuthContext)
	if !ok {
		return nil
	}
	return ac
}

// ContextWithSessionUser adds a session-authenticated user ID to the context.
func ContextWithSessionUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, sessionUserKey, userID)
}

// SessionUserFromContext retrieves the session user ID from the context.
// Returns empty string if the request has no session.
func SessionUserFromContext(ctx context.Context) string {
	id, ok := ctx.Value(sessionUserKey).(string)
	if !ok {
		return ""
	}
	return id
}
