package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/parcelgrid/parcelgrid/internal/auth"
	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/repository"
	"github.com/parcelgrid/parcelgrid/internal/service"
)

// LocationHandler serves the metered location query endpoint.
type LocationHandler struct {
	logger    *slog.Logger
	locations *service.LocationService
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(logger *slog.Logger, locations *service.LocationService) *LocationHandler {
	return &LocationHandler{
		logger:    logger,
		locations: locations,
	}
}

// locationsResponse is the success body for a metered query.
type locationsResponse struct {
	Count            int               `json:"count"`
	Locations        []*model.Location `json:"locations"`
	CreditsUsed      int64             `json:"credits_used"`
	CreditsRemaining int64             `json:"credits_remaining"`
}

// insufficientCreditsResponse is the 402 body.
type insufficientCreditsResponse struct {
	Error     string `json:"error"`
	Required  int64  `json:"required"`
	Available int64  `json:"available"`
}

// Locations handles GET /api/locations.
// Requires API key authentication; each call costs a fixed number of
// credits, deducted after the search runs.
func (h *LocationHandler) Locations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		// The gate should have rejected the request already.
		writeError(w, http.StatusUnauthorized, "Authentication required", "Missing Authorization header")
		return
	}

	query := r.URL.Query()
	filter := model.LocationFilter{
		Type:     query.Get("type"),
		District: query.Get("district"),
		Search:   query.Get("search"),
	}

	result, err := h.locations.Query(ctx, authCtx.UserID, filter)
	if err != nil {
		var insufficient *repository.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			writeJSON(w, http.StatusPaymentRequired, insufficientCreditsResponse{
				Error:     "Insufficient credits",
				Required:  insufficient.Required,
				Available: insufficient.Available,
			})
			return
		}

		h.logger.Error("location query failed",
			slog.String("user_id", authCtx.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Internal error", "Failed to execute location query")
		return
	}

	locations := result.Locations
	if locations == nil {
		locations = []*model.Location{}
	}

	writeJSON(w, http.StatusOK, locationsResponse{
		Count:            result.Count,
		Locations:        locations,
		CreditsUsed:      result.CreditsUsed,
		CreditsRemaining: result.CreditsRemaining,
	})
}
