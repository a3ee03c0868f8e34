package db

import (
	"time"

	"github.com/google/uuid"

	"trackverse/internal/auth"
)

// KeyOptions tune NewAPIKey. Zero values mean: free tier, live mode,
// no expiry.
type KeyOptions struct {
	Tier          string
	TestMode      bool
	ExpiresInDays int
}

// NewAPIKey builds a persistable key record for the given owner and
// returns it with the one-time plaintext secret. The plaintext is not
// stored anywhere; callers must surface it immediately or lose it.
func NewAPIKey(userID uint, name string, permissions []string, opts KeyOptions) (*APIKey, string, error) {
	gen := auth.GenerateKey
	if opts.TestMode {
		gen = auth.GenerateTestKey
	}
	plaintext, hash, prefix, err := gen()
	if err != nil {
		return nil, "", err
	}

	tier := opts.Tier
	if tier == "" {
		tier = "free"
	}

	key := &APIKey{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		KeyHash:     hash,
		KeyPrefix:   prefix,
		Permissions: permissions,
		Tier:        tier,
	}

	if opts.ExpiresInDays > 0 {
		t := time.Now().Add(time.Duration(opts.ExpiresInDays) * 24 * time.Hour)
		key.ExpiresAt = &t
	}

	return key, plaintext, nil
}
