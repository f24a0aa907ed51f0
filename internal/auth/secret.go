package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewClientSecret generates a fresh OAuth2 client secret. Secrets are shown
// once, at creation or regeneration, and never again.
func NewClientSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate client secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
