package handlers

import (
	"github.com/valyala/fasthttp"

	"trackverse/internal/ratelimit"
)

// RateLimitStatus reports the caller's current hourly window without
// consuming a request, for clients that want to pace themselves.
func RateLimitStatus(limiter *ratelimit.Limiter) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		apiKey, ok := MustAPIKey(ctx)
		if !ok {
			return
		}

		tier := ratelimit.TierByName(apiKey.Tier)
		info := limiter.Status(apiKey.ID, tier)

		writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
			"tier":      tier.Name,
			"limit":     info.Limit,
			"remaining": info.Remaining,
			"reset":     info.Reset,
		})
	}
}
