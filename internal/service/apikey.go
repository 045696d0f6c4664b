package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/parcelgrid/parcelgrid/internal/auth"
	"github.com/parcelgrid/parcelgrid/internal/model"
	"github.com/parcelgrid/parcelgrid/internal/repository"
)

// API key errors.
var (
	ErrKeyNameTooLong = errors.New("key name must be at most 100 characters")
	ErrKeyNotFound    = errors.New("api key not found")
	ErrInvalidKey     = errors.New("invalid api key")
)

const (
	defaultKeyName = "API Key"
	maxKeyNameLen  = 100

	// One regenerate attempt on a secret collision. Collisions on 48
	// random bytes are effectively impossible, so two tries is plenty.
	maxKeyGenAttempts = 2
)

// APIKeyRepository defines the persistence needed by APIKeyService.
type APIKeyRepository interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	DeleteAPIKey(ctx context.Context, userID, keyID string) error
	ResolveAPIKey(ctx context.Context, secret string) (*model.User, *model.APIKey, error)
}

// APIKeyService handles API key lifecycle and resolution.
type APIKeyService struct {
	repo APIKeyRepository
}

// NewAPIKeyService creates a new APIKeyService.
func NewAPIKeyService(repo APIKeyRepository) *APIKeyService {
	return &APIKeyService{repo: repo}
}

// CreateKey generates a new API key for the user. The plaintext secret
// is returned exactly once; listings only ever show a preview.
func (s *APIKeyService) CreateKey(ctx context.Context, userID, name string) (*model.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultKeyName
	}
	if len(name) > maxKeyNameLen {
		return nil, ErrKeyNameTooLong
	}

	var lastErr error
	for attempt := 0; attempt < maxKeyGenAttempts; attempt++ {
		secret, err := auth.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}

		key := &model.APIKey{
			ID:       generateID(),
			UserID:   userID,
			Key:      secret,
			Name:     name,
			IsActive: true,
		}

		if err := s.repo.CreateAPIKey(ctx, key); err != nil {
			if errors.Is(err, repository.ErrKeyCollision) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("create api key: %w", err)
		}
		return key, nil
	}

	return nil, fmt.Errorf("create api key: %w", lastErr)
}

// ListKeys returns the user's active keys, newest first.
func (s *APIKeyService) ListKeys(ctx context.Context, userID string) ([]*model.APIKey, error) {
	keys, err := s.repo.ListAPIKeysByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// DeleteKey removes one of the user's keys. A key belonging to another
// user is indistinguishable from a missing one.
func (s *APIKeyService) DeleteKey(ctx context.Context, userID, keyID string) error {
	if err := s.repo.DeleteAPIKey(ctx, userID, keyID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("delete api key: %w", err)
	}
	return nil
}

// Resolve authenticates a plaintext secret, returning the auth context
// for the owning user. Inactive keys and keys of inactive users fail
// identically to unknown secrets.
func (s *APIKeyService) Resolve(ctx context.Context, secret string) (*model.AuthContext, error) {
	if !auth.ValidKeyFormat(secret) {
		return nil, ErrInvalidKey
	}

	user, key, err := s.repo.ResolveAPIKey(ctx, secret)
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("resolve api key: %w", err)
	}

	return &model.AuthContext{
		UserID:   user.ID,
		Username: user.Username,
		KeyID:    key.ID,
	}, nil
}
