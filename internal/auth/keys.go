package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
)

// API keys are formatted as: tv_<env>_<secret>
//   - env: "live" or "test"
//   - secret: 24 random bytes, lowercase hex (48 chars)
//
// Only the SHA-256 hash of the full key is stored. The display prefix
// (scheme plus the first 8 hex chars) is kept alongside it so keys can
// be identified in listings without being recoverable.
const (
	LiveScheme = "tv_live_"
	TestScheme = "tv_test_"

	secretSize       = 24
	displayHexChars  = 8
	displayPrefixLen = len(LiveScheme) + displayHexChars
)

var keyFormat = regexp.MustCompile(`^tv_(live|test)_[a-f0-9]{48}$`)

// randReader is swapped out in tests to exercise entropy failures.
var randReader io.Reader = rand.Reader

// GenerateKey creates a new live-mode API key. It returns the one-time
// plaintext key, its storable SHA-256 hash, and the display prefix.
func GenerateKey() (key, hash, prefix string, err error) {
	return generate(LiveScheme)
}

// GenerateTestKey creates a test-mode key (same shape, tv_test_ scheme).
func GenerateTestKey() (key, hash, prefix string, err error) {
	return generate(TestScheme)
}

func generate(scheme string) (string, string, string, error) {
	b := make([]byte, secretSize)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return "", "", "", fmt.Errorf("generate api key secret: %w", err)
	}
	key := scheme + hex.EncodeToString(b)
	return key, HashKey(key), DisplayPrefix(key), nil
}

// HashKey returns the hex SHA-256 digest of the full key string.
// This is what gets persisted and looked up on authentication.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// IsValidKeyFormat reports whether key has the tv_live_/tv_test_ shape.
// Used to reject garbage before any database lookup.
func IsValidKeyFormat(key string) bool {
	return keyFormat.MatchString(key)
}

// DisplayPrefix returns the identification prefix for a full key,
// e.g. "tv_live_a1b2c3d4".
func DisplayPrefix(key string) string {
	if len(key) < displayPrefixLen {
		return key
	}
	return key[:displayPrefixLen]
}

// SecureEqualsHex compares two hex-encoded digests in constant time.
func SecureEqualsHex(a, b string) bool {
	ab, err1 := hex.DecodeString(a)
	bb, err2 := hex.DecodeString(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return hmac.Equal(ab, bb)
}
