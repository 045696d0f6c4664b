package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parcelgrid/parcelgrid/internal/auth"
	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/service"
)

// APIKeyHandler handles API key management endpoints. All routes
// require a session token; keys themselves cannot manage keys.
type APIKeyHandler struct {
	logger *slog.Logger
	keys   *service.APIKeyService
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(logger *slog.Logger, keys *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{
		logger: logger,
		keys:   keys,
	}
}

// CreateAPIKey handles POST /v1/api-keys.
// The plaintext secret appears in this response and nowhere else.
func (h *APIKeyHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID := auth.SessionUserFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	var req model.APIKeyCreateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", "Request body must be valid JSON")
			return
		}
	}

	key, err := h.keys.CreateKey(r.Context(), userID, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrKeyNameTooLong) {
			writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		h.logger.Error("failed to create API key",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Internal error", "Failed to create API key")
		return
	}

	h.logger.Info("API key created",
		slog.String("key_id", key.ID),
		slog.String("user_id", userID),
	)

	writeJSON(w, http.StatusCreated, model.APIKeyCreateResponse{
		ID:        key.ID,
		Key:       key.Key,
		Name:      key.Name,
		CreatedAt: key.CreatedAt,
	})
}

// ListAPIKeys handles GET /v1/api-keys.
// Listings carry only a preview of each secret.
func (h *APIKeyHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID := auth.SessionUserFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	keys, err := h.keys.ListKeys(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list API keys",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Internal error", "Failed to list API keys")
		return
	}

	responses := make([]model.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		responses = append(responses, key.ToResponse())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(responses),
		"api_keys": responses,
	})
}

// DeleteAPIKey handles DELETE /v1/api-keys/{keyID}.
// Deleting another user's key reports 404, not 403.
func (h *APIKeyHandler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	userID := auth.SessionUserFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	keyID := chi.URLParam(r, "keyID")
	if err := h.keys.DeleteKey(r.Context(), userID, keyID); err != nil {
		if errors.Is(err, service.ErrKeyNotFound) {
			writeError(w, http.StatusNotFound, "Not found", "API key not found")
			return
		}
		h.logger.Error("failed to delete API key",
			slog.String("user_id", userID),
			slog.String("key_id", keyID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Internal error", "Failed to delete API key")
		return
	}

	h.logger.Info("API key deleted",
		slog.String("key_id", keyID),
		slog.String("user_id", userID),
	)

	w.WriteHeader(http.StatusNoContent)
}
