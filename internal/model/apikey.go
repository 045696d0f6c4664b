// Package model defines domain entities for the application.
package model

import "time"

// KeyPreviewLen is how many characters of a key secret may appear in
// listings and logs. Everything past the preview stays opaque.
const KeyPreviewLen = 8

// APIKey represents a bearer credential owned by exactly one user.
// The secret is generated server-side at creation and never mutated.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Key        string     `json:"-"` // Never serialize the full secret
	Name       string     `json:"name"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Preview returns the fixed-length visible prefix of the secret,
// e.g. "dGhpc2lz...".
func (k *APIKey) Preview() string {
	if len(k.Key) <= KeyPreviewLen {
		return k.Key
	}
	return k.Key[:KeyPreviewLen] + "..."
}

// AuthContext holds the identity resolved by the auth gate.
// It is injected into the request context for downstream handlers.
type AuthContext struct {
	UserID   string
	Username string
	KeyID    string
}

// APIKeyCreateRequest represents a request to mint a new API key.
type APIKeyCreateRequest struct {
	Name string `json:"name"`
}

// APIKeyResponse is the listing view of a key (secret redacted to a preview).
type APIKeyResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyPreview string     `json:"key_preview"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ToResponse converts an APIKey to its redacted listing form.
func (k *APIKey) ToResponse() APIKeyResponse {
	return APIKeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		KeyPreview: k.Preview(),
		IsActive:   k.IsActive,
		LastUsedAt: k.LastUsedAt,
		CreatedAt:  k.CreatedAt,
	}
}

// APIKeyCreateResponse includes the plaintext secret (shown only once).
type APIKeyCreateResponse struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"` // Plaintext - display once only!
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
