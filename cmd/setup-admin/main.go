// Package main creates or updates the admin account from environment
// variables. Intended for deploy hooks.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/parcelgrid/parcelgrid/internal/auth"
	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/repository"
)

const adminUsername = "admin"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := context.Background()

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		logger.Warn("ADMIN_PASSWORD not set, skipping admin setup")
		return
	}

	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@example.com"
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	repo, err := repository.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		logger.Error("failed to hash password", "error", err)
		os.Exit(1)
	}

	existing, err := repo.GetUserByUsername(ctx, adminUsername)
	switch {
	case err == nil:
		if err := repo.PromoteAdmin(ctx, existing.ID, email, hash); err != nil {
			logger.Error("failed to update admin user", "error", err)
			os.Exit(1)
		}
		logger.Info("admin user updated")

	case errors.Is(err, repository.ErrUserNotFound):
		user := &model.User{
			ID:           ulid.Make().String(),
			Username:     adminUsername,
			Email:        email,
			PasswordHash: hash,
			IsAdmin:      true,
			IsActive:     true,
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		}
		// Admins get a balance row like everyone else, but no bonus.
		if err := repo.RegisterUser(ctx, user, repository.LedgerEntry{UserID: user.ID}); err != nil {
			logger.Error("failed to create admin user", "error", err)
			os.Exit(1)
		}
		logger.Info("admin user created")

	default:
		logger.Error("failed to look up admin user", "error", err)
		os.Exit(1)
	}
}
