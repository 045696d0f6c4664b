package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/parcelgrid/parcelgrid/internal/auth"
	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/service"
)

// CreditHandler serves balance and transaction history endpoints.
type CreditHandler struct {
	logger  *slog.Logger
	credits *service.CreditService
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(logger *slog.Logger, credits *service.CreditService) *CreditHandler {
	return &CreditHandler{
		logger:  logger,
		credits: credits,
	}
}

// Balance handles GET /v1/credits.
func (h *CreditHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := auth.SessionUserFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	balance, err := h.credits.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrBalanceNotFound) {
			// Every registered user gets a balance row, so this means
			// something is wrong with the account.
			h.logger.Error("balance row missing", slog.String("user_id", userID))
		} else {
			h.logger.Error("failed to get balance",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, http.StatusInternalServerError, "Internal error", "Failed to fetch credit balance")
		return
	}

	writeJSON(w, http.StatusOK, balance.ToResponse())
}

// transactionsResponse is the body for the transaction history.
type transactionsResponse struct {
	Count        int                        `json:"count"`
	Transactions []*model.CreditTransaction `json:"transactions"`
}

// Transactions handles GET /v1/credits/transactions.
// Accepts an optional limit query parameter, capped at 100.
func (h *CreditHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID := auth.SessionUserFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Authentication required", "")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid request", "limit must be a positive integer")
			return
		}
		if parsed > 100 {
			parsed = 100
		}
		limit = parsed
	}

	txs, err := h.credits.Transactions(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list transactions",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Internal error", "Failed to fetch transactions")
		return
	}

	if txs == nil {
		txs = []*model.CreditTransaction{}
	}

	writeJSON(w, http.StatusOK, transactionsResponse{
		Count:        len(txs),
		Transactions: txs,
	})
}
