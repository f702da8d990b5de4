package apikeys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

const (
	// KeyPrefix marks every issued token
	KeyPrefix = "cd_"
	// KeySecretBytes is the random length of a key (64 bytes = 128 hex chars)
	KeySecretBytes = 64
	// KeyDisplayLength is the number of token characters stored for identification
	KeyDisplayLength = 12
)

// keyPattern matches a well-formed token: prefix plus 128 hex characters.
var keyPattern = regexp.MustCompile(`^cd_[a-f0-9]{128}$`)

// generateAPIKey generates a new random API key token
func generateAPIKey() (string, error) {
	bytes := make([]byte, KeySecretBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return KeyPrefix + hex.EncodeToString(bytes), nil
}

// hashAPIKey creates a SHA-256 hash of the API key for storage
func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// ValidKeyFormat reports whether a presented token has the issued shape.
func ValidKeyFormat(key string) bool {
	return keyPattern.MatchString(key)
}
