// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/parcelgrid/parcelgrid/internal/auth"
	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/repository"
)

// Service errors.
var (
	ErrInvalidUsername    = errors.New("username must be 3-150 characters, letters, digits, underscore")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account is disabled")
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,150}$`)

const minPasswordLength = 8

// WelcomeBonusDescription is the ledger description for the signup grant.
const WelcomeBonusDescription = "Welcome bonus"

// AccountRepository defines the persistence needed by AccountService.
type AccountRepository interface {
	RegisterUser(ctx context.Context, user *model.User, grant repository.LedgerEntry) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}

// AccountService handles registration and login.
type AccountService struct {
	repo         AccountRepository
	tokens       *auth.TokenService
	welcomeBonus int64
}

// NewAccountService creates a new AccountService.
func NewAccountService(repo AccountRepository, tokens *auth.TokenService, welcomeBonus int64) *AccountService {
	return &AccountService{
		repo:         repo,
		tokens:       tokens,
		welcomeBonus: welcomeBonus,
	}
}

// Register creates a user account and grants the welcome bonus in a
// single atomic unit. A failed registration leaves no balance or
// transaction rows behind.
func (s *AccountService) Register(ctx context.Context, input model.RegisterRequest) (*model.User, error) {
	if !usernameRegex.MatchString(input.Username) {
		return nil, ErrInvalidUsername
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           generateID(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	grant := repository.LedgerEntry{
		ID:          generateID(),
		UserID:      user.ID,
		Type:        model.TxAdminAdjustment,
		Amount:      s.welcomeBonus,
		Description: WelcomeBonusDescription,
	}

	if err := s.repo.RegisterUser(ctx, user, grant); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, ErrUsernameTaken
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("register user: %w", err)
	}

	return user, nil
}

// Login verifies credentials and issues a session token.
func (s *AccountService) Login(ctx context.Context, input model.LoginRequest) (*model.User, string, error) {
	user, err := s.repo.GetUserByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	ok, err := auth.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, "", ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, "", ErrAccountDisabled
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	return user, token, nil
}

// generateID returns a new ULID for entity primary keys.
func generateID() string {
	return ulid.Make().String()
}
