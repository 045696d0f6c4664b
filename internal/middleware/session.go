package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/parcelgrid/parcelgrid/internal/auth"
)

// SessionConfig holds configuration for the session middleware.
type SessionConfig struct {
	Logger *slog.Logger
	Tokens *auth.TokenService
}

// RequireSession returns a middleware that authenticates dashboard
// requests with a bearer session token. The token subject is injected
// into the request context as the session user ID.
func RequireSession(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := parseBearer(header)
			if !ok {
				writeSessionError(w, "Authentication required", "Missing or malformed Authorization header")
				return
			}

			userID, err := cfg.Tokens.Validate(token)
			if err != nil {
				message := "The provided token is invalid"
				if errors.Is(err, auth.ErrTokenExpired) {
					message = "The provided token has expired"
				}
				cfg.Logger.Warn("session validation failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeSessionError(w, "Invalid token", message)
				return
			}

			ctx := auth.ContextWithSessionUser(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeSessionError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":` + strconv.Quote(code) + `,"message":` + strconv.Quote(message) + `}`))
}
