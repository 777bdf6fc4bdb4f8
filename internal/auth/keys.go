package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// KeyPrefix marks DevClip API key secrets
	KeyPrefix = "dcp_"

	// keyRandomBytes is the entropy of a secret; it is hex encoded after the prefix
	keyRandomBytes = 24

	// displayPrefixLen is how much of a secret is kept for identification
	displayPrefixLen = len(KeyPrefix) + 8
)

var (
	// ErrMalformedKey is returned when a secret does not have the key format
	ErrMalformedKey = errors.New("malformed API key")

	// ErrKeyNotFound is returned for unknown and revoked keys alike
	ErrKeyNotFound = errors.New("API key not found")

	// ErrKeyLimitReached is returned when an account already has the maximum
	// number of active keys for its tier
	ErrKeyLimitReached = errors.New("API key limit reached for plan")
)

// GenerateKey returns a new random secret
func GenerateKey() (string, error) {
	buf := make([]byte, keyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}

// HashKey returns the hex SHA-256 digest under which a secret is stored
func HashKey(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// ValidateKeyFormat checks the prefix, length and alphabet of a secret
func ValidateKeyFormat(secret string) error {
	if !strings.HasPrefix(secret, KeyPrefix) {
		return ErrMalformedKey
	}
	body := secret[len(KeyPrefix):]
	if len(body) != keyRandomBytes*2 {
		return ErrMalformedKey
	}
	for _, c := range body {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return ErrMalformedKey
		}
	}
	return nil
}

// DisplayPrefix returns the non-secret head of a key shown in listings
func DisplayPrefix(secret string) string {
	if len(secret) <= displayPrefixLen {
		return secret
	}
	return secret[:displayPrefixLen]
}
