package middleware

import (
	"bytes"
	"log"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"trackverse/internal/auth"
	dbpkg "trackverse/internal/db"
	httpctx "trackverse/internal/http/ctx"
)

// APIKeyAuth validates Bearer tokens against hashed API keys in the
// database. The presented key is hashed and looked up by hash, so the
// plaintext never touches a query. Expired and revoked keys fail the
// same way as unknown ones.
func APIKeyAuth(db *gorm.DB) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			authz := ctx.Request.Header.Peek("Authorization")
			if len(authz) == 0 {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("missing Authorization header")
				return
			}

			const prefix = "Bearer "
			if !bytes.HasPrefix(authz, []byte(prefix)) {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("invalid Authorization header")
				return
			}

			token := strings.TrimSpace(string(authz[len(prefix):]))
			if !auth.IsValidKeyFormat(token) {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("invalid API key")
				return
			}

			var apiKey dbpkg.APIKey
			if err := db.Where("key_hash = ?", auth.HashKey(token)).Preload("User").First(&apiKey).Error; err != nil {
				if err == gorm.ErrRecordNotFound {
					ctx.SetStatusCode(fasthttp.StatusUnauthorized)
					ctx.SetBodyString("invalid API key")
					return
				}
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBodyString("database error")
				return
			}

			now := time.Now()
			if !apiKey.IsValid(now) {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("invalid API key")
				return
			}

			if err := dbpkg.TouchKeyUsage(db, apiKey.ID, now); err != nil {
				log.Printf("usage tracking for key %s: %v", apiKey.KeyPrefix, err)
			}

			httpctx.SetAPIKey(ctx, &apiKey)
			httpctx.SetUser(ctx, &apiKey.User)
			next(ctx)
		}
	}
}
