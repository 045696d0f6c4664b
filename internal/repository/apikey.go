package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/parcelgrid/parcelgrid/internal/model"
)

// Common errors for API key repository operations.
var (
	ErrAPIKeyNotFound = errors.New("API key not found")
	ErrKeyCollision   = errors.New("API key secret collision")
)

const apiKeyColumns = `id, user_id, key, name, is_active, last_used_at, created_at`

// CreateAPIKey inserts a new API key into the database.
// A unique violation on the secret surfaces as ErrKeyCollision so the
// caller can regenerate; with 384-bit secrets it should never happen.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	query := `
		INSERT INTO api_keys (id, user_id, key, name, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		key.ID,
		key.UserID,
		key.Key,
		key.Name,
		key.IsActive,
		key.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrKeyCollision
		}
		return fmt.Errorf("failed to create API key: %w", err)
	}

	return nil
}

// GetAPIKeyByID retrieves an API key by its ID.
func (r *Repository) GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`
	return r.scanAPIKey(r.pool.QueryRow(ctx, query, id))
}

// ResolveAPIKey looks up an active key by its exact secret and returns it
// together with the owning user. Inactive keys and keys of inactive users
// do not resolve.
func (r *Repository) ResolveAPIKey(ctx context.Context, secret string) (*model.User, *model.APIKey, error) {
	query := `
		SELECT
			u.id, u.username, u.email, u.password_hash, u.is_admin, u.is_active, u.created_at, u.updated_at,
			k.id, k.user_id, k.key, k.name, k.is_active, k.last_used_at, k.created_at
		FROM api_keys k
		JOIN users u ON u.id = k.user_id
		WHERE k.key = $1 AND k.is_active AND u.is_active
	`

	var user model.User
	var key model.APIKey

	err := r.pool.QueryRow(ctx, query, secret).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&key.ID,
		&key.UserID,
		&key.Key,
		&key.Name,
		&key.IsActive,
		&key.LastUsedAt,
		&key.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrAPIKeyNotFound
		}
		return nil, nil, fmt.Errorf("failed to resolve API key: %w", err)
	}

	return &user, &key, nil
}

// ListAPIKeysByUserID retrieves all active API keys for a user,
// newest first.
func (r *Repository) ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE user_id = $1 AND is_active
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	defer rows.Close()

	var keys []*model.APIKey
	for rows.Next() {
		key, err := scanAPIKeyFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan API key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API keys: %w", err)
	}

	return keys, nil
}

// DeleteAPIKey removes a key owned by the given user. Ownership is part
// of the predicate: deleting someone else's key reports ErrAPIKeyNotFound
// rather than revealing that the key exists.
func (r *Repository) DeleteAPIKey(ctx context.Context, userID, keyID string) error {
	query := `DELETE FROM api_keys WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, keyID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}

	return nil
}

// TouchAPIKeys updates last_used_at for a batch of keys, pairing keyIDs
// with usedAt by position. last_used_at never moves backwards. Called by
// the usage worker, never on the request path.
func (r *Repository) TouchAPIKeys(ctx context.Context, keyIDs []string, usedAt []time.Time) error {
	if len(keyIDs) == 0 {
		return nil
	}
	if len(keyIDs) != len(usedAt) {
		return fmt.Errorf("touch batch mismatch: %d keys, %d timestamps", len(keyIDs), len(usedAt))
	}

	query := `
		UPDATE api_keys k
		SET last_used_at = t.used_at
		FROM (SELECT unnest($1::text[]) AS id, unnest($2::timestamptz[]) AS used_at) t
		WHERE k.id = t.id AND (k.last_used_at IS NULL OR k.last_used_at < t.used_at)
	`

	if _, err := r.pool.Exec(ctx, query, keyIDs, usedAt); err != nil {
		return fmt.Errorf("failed to update API key last used: %w", err)
	}

	return nil
}

// scanAPIKey scans a single row into an APIKey model.
func (r *Repository) scanAPIKey(row pgx.Row) (*model.APIKey, error) {
	var key model.APIKey

	err := row.Scan(
		&key.ID,
		&key.UserID,
		&key.Key,
		&key.Name,
		&key.IsActive,
		&key.LastUsedAt,
		&key.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to scan API key: %w", err)
	}

	return &key, nil
}

// scanAPIKeyFromRows scans a row from pgx.Rows into an APIKey model.
func scanAPIKeyFromRows(rows pgx.Rows) (*model.APIKey, error) {
	var key model.APIKey

	err := rows.Scan(
		&key.ID,
		&key.UserID,
		&key.Key,
		&key.Name,
		&key.IsActive,
		&key.LastUsedAt,
		&key.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &key, nil
}
