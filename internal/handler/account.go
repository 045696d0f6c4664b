package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/service"
)

// AccountHandler handles registration and login endpoints.
type AccountHandler struct {
	logger   *slog.Logger
	accounts *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(logger *slog.Logger, accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{
		logger:   logger,
		accounts: accounts,
	}
}

// Register handles POST /v1/auth/register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "Request body must be valid JSON")
		return
	}

	user, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidUsername),
			errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		case errors.Is(err, service.ErrUsernameTaken),
			errors.Is(err, service.ErrEmailTaken):
			writeError(w, http.StatusConflict, "Conflict", err.Error())
		default:
			h.logger.Error("registration failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "Internal error", "Failed to create account")
		}
		return
	}

	h.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	writeJSON(w, http.StatusCreated, user.ToResponse())
}

// loginResponse is the success body for a login.
type loginResponse struct {
	Token string             `json:"token"`
	User  model.UserResponse `json:"user"`
}

// Login handles POST /v1/auth/login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "Request body must be valid JSON")
		return
	}

	user, token, err := h.accounts.Login(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Invalid credentials", "Invalid username or password")
		case errors.Is(err, service.ErrAccountDisabled):
			writeError(w, http.StatusForbidden, "Account disabled", "This account has been disabled")
		default:
			h.logger.Error("login failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "Internal error", "Failed to log in")
		}
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User:  user.ToResponse(),
	})
}
