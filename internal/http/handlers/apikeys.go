package handlers

import (
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"trackverse/internal/auth"
	dbpkg "trackverse/internal/db"
	"trackverse/internal/ratelimit"
)

type apiKeyResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	KeyPrefix   string     `json:"keyPrefix"`
	Permissions []string   `json:"permissions"`
	Tier        string     `json:"tier"`
	UsageCount  int64      `json:"usageCount"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`

	// Key is only populated in the creation response.
	Key string `json:"key,omitempty"`
}

func toAPIKeyResponse(k *dbpkg.APIKey, plaintext string) apiKeyResponse {
	return apiKeyResponse{
		ID:          k.ID,
		Name:        k.Name,
		KeyPrefix:   k.KeyPrefix,
		Permissions: k.Permissions,
		Tier:        k.Tier,
		UsageCount:  k.UsageCount,
		LastUsedAt:  k.LastUsedAt,
		ExpiresAt:   k.ExpiresAt,
		RevokedAt:   k.RevokedAt,
		CreatedAt:   k.CreatedAt,
		Key:         plaintext,
	}
}

type createAPIKeyRequest struct {
	Name          string   `json:"name"`
	Permissions   []string `json:"permissions"`
	Tier          string   `json:"tier"`
	TestMode      bool     `json:"testMode"`
	ExpiresInDays int      `json:"expiresInDays"`
}

// CreateAPIKey issues a new key for the admin user. The plaintext is
// in this response and nowhere else.
func CreateAPIKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}

		var req createAPIKeyRequest
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Name == "" {
			writeError(ctx, fasthttp.StatusBadRequest, "name required")
			return
		}
		if ok, invalid := auth.ValidatePermissions(req.Permissions); !ok {
			writeJSON(ctx, fasthttp.StatusBadRequest, map[string]interface{}{
				"error":              "invalid permissions",
				"invalidPermissions": invalid,
			})
			return
		}
		if req.Tier != "" && !ratelimit.IsValidTier(req.Tier) {
			writeError(ctx, fasthttp.StatusBadRequest, "tier must be free, pro, or enterprise")
			return
		}

		key, plaintext, err := dbpkg.NewAPIKey(user.ID, req.Name, req.Permissions, dbpkg.KeyOptions{
			Tier:          req.Tier,
			TestMode:      req.TestMode,
			ExpiresInDays: req.ExpiresInDays,
		})
		if err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "failed to generate API key")
			return
		}
		if err := db.Create(key).Error; err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "failed to create API key")
			return
		}

		writeJSON(ctx, fasthttp.StatusCreated, toAPIKeyResponse(key, plaintext))
	}
}

// ListAPIKeys returns every key, hashes omitted.
func ListAPIKeys(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustUser(ctx); !ok {
			return
		}

		var keys []dbpkg.APIKey
		if err := db.Order("created_at DESC").Find(&keys).Error; err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		resp := make([]apiKeyResponse, 0, len(keys))
		for i := range keys {
			resp = append(resp, toAPIKeyResponse(&keys[i], ""))
		}
		writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"apiKeys": resp})
	}
}

// RevokeAPIKey marks a key dead. Keys are never hard-deleted; the
// revocation timestamp is the tombstone.
func RevokeAPIKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustUser(ctx); !ok {
			return
		}

		id, _ := ctx.UserValue("id").(string)
		if id == "" {
			writeError(ctx, fasthttp.StatusBadRequest, "id required")
			return
		}

		var key dbpkg.APIKey
		if err := db.First(&key, "id = ?", id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				writeError(ctx, fasthttp.StatusNotFound, "API key not found")
				return
			}
			writeError(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}
		if key.RevokedAt != nil {
			writeJSON(ctx, fasthttp.StatusOK, toAPIKeyResponse(&key, ""))
			return
		}

		now := time.Now()
		if err := db.Model(&key).Update("revoked_at", now).Error; err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "failed to revoke API key")
			return
		}
		key.RevokedAt = &now
		writeJSON(ctx, fasthttp.StatusOK, toAPIKeyResponse(&key, ""))
	}
}
