package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parcelgrid/parcelgrid/internal/auth"
	"github.com/parcelgrid/parcelgrid/internal/metrics"
	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/service"
)

// KeyResolver authenticates a plaintext API key secret.
type KeyResolver interface {
	Resolve(ctx context.Context, secret string) (*model.AuthContext, error)
}

// UsagePublisher records a successful key authentication without
// blocking the request.
type UsagePublisher interface {
	PublishAsync(keyID, userID string)
}

// AuthConfig holds configuration for the API key gate.
type AuthConfig struct {
	Logger   *slog.Logger
	Resolver KeyResolver
	// Usage, if set, receives an event per authenticated request.
	Usage UsagePublisher
	// PathPrefixes limits the gate to matching request paths. Requests
	// outside the prefixes pass through unauthenticated.
	PathPrefixes []string
	Metrics      metrics.Recorder
}

// Auth returns the API key gate. Requests under the configured path
// prefixes must carry "Authorization: Bearer <key>"; the key is
// resolved to its owning user and the auth context is injected into
// the request. The three failure modes get distinct bodies so callers
// can tell a missing header from a malformed one from a bad key.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !pathIsMetered(r.URL.Path, cfg.PathPrefixes) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				recorder.IncAuthAttempt(metrics.AuthMissing)
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_header"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthJSON(w, `{"error":"Authentication required","message":"Missing Authorization header"}`)
				return
			}

			secret, ok := parseBearer(header)
			if !ok {
				recorder.IncAuthAttempt(metrics.AuthMalformed)
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "malformed_header"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthJSON(w, `{"error":"Invalid authentication","message":"Authorization header must be in format: Bearer <api_key>"}`)
				return
			}

			authCtx, err := cfg.Resolver.Resolve(r.Context(), secret)
			if err != nil {
				reason := "invalid_key"
				if !errors.Is(err, service.ErrInvalidKey) {
					reason = "resolver_error"
					cfg.Logger.Error("key resolution failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
				recorder.IncAuthAttempt(metrics.AuthInvalid)
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthJSON(w, `{"error":"Invalid API key","message":"The provided API key is invalid or inactive"}`)
				return
			}

			recorder.IncAuthAttempt(metrics.AuthSuccess)
			if cfg.Usage != nil {
				cfg.Usage.PublishAsync(authCtx.KeyID, authCtx.UserID)
			}

			cfg.Logger.Info("authentication successful",
				slog.String("key_id", authCtx.KeyID),
				slog.String("user_id", authCtx.UserID),
				slog.String("ip", r.RemoteAddr),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseBearer splits an Authorization header into its scheme and
// credential. The scheme comparison is case-insensitive; anything
// other than exactly two whitespace-separated parts is malformed.
func parseBearer(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func pathIsMetered(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func writeAuthJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(body))
}
