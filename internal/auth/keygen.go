// Package auth provides credential utilities: API key generation,
// password hashing, and session tokens.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"
)

// API key secrets are 48 random bytes, URL-safe base64 without padding,
// which encodes to exactly 64 characters.
const (
	keySecretBytes = 48
	// KeyLen is the length of an encoded API key secret.
	KeyLen = 64
)

// keyFormatRegex validates the encoded secret alphabet and length.
var keyFormatRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{64}$`)

// GenerateKey creates a new opaque API key secret. The secret carries
// 384 bits of entropy, enough that collisions are treated as store
// corruption rather than retried indefinitely.
func GenerateKey() (string, error) {
	buf := make([]byte, keySecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidKeyFormat reports whether a presented token even looks like a key.
// Used by the auth gate to skip a store round-trip on garbage input.
func ValidKeyFormat(key string) bool {
	return keyFormatRegex.MatchString(key)
}
