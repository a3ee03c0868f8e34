package handlers

import (
	"encoding/json"

	"github.com/valyala/fasthttp"

	dbpkg "trackverse/internal/db"
	httpctx "trackverse/internal/http/ctx"
)

// MustAPIKey returns the authenticated key from context, or sends 401
// and returns (nil, false).
func MustAPIKey(ctx *fasthttp.RequestCtx) (*dbpkg.APIKey, bool) {
	ak, ok := httpctx.APIKeyFromCtx(ctx)
	if !ok || ak == nil {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString("unauthorized")
		return nil, false
	}
	return ak, true
}

// MustUser returns the current user from context, or sends 401 and
// returns (nil, false).
func MustUser(ctx *fasthttp.RequestCtx) (*dbpkg.User, bool) {
	u, ok := httpctx.UserFromCtx(ctx)
	if !ok || u == nil {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString("unauthorized")
		return nil, false
	}
	return u, true
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString("failed to encode response")
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}
