package webhook

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// secretRandReader is swapped out in tests.
var secretRandReader io.Reader = rand.Reader

// GenerateSecret creates a signing secret for a new webhook. It is
// returned to the subscriber exactly once at registration.
func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(secretRandReader, b); err != nil {
		return "", fmt.Errorf("generate webhook secret: %w", err)
	}
	return "whsec_" + hex.EncodeToString(b), nil
}
