package middleware

import (
	"strconv"

	"github.com/valyala/fasthttp"

	httpctx "trackverse/internal/http/ctx"
	"trackverse/internal/ratelimit"
)

// RateLimit enforces the key's tier quota. Must run after APIKeyAuth.
// The X-RateLimit headers are set on every response; a denial becomes
// a 429 with a JSON body.
func RateLimit(limiter *ratelimit.Limiter) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			apiKey, ok := httpctx.APIKeyFromCtx(ctx)
			if !ok {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("unauthorized")
				return
			}

			allowed, info := limiter.Check(apiKey.ID, ratelimit.TierByName(apiKey.Tier))
			for k, v := range ratelimit.Headers(info) {
				ctx.Response.Header.Set(k, v)
			}

			if !allowed {
				ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
				ctx.SetContentType("application/json")
				ctx.SetBodyString(`{"error":"rate limit exceeded","reset":` + strconv.FormatInt(info.Reset, 10) + `}`)
				return
			}

			next(ctx)
		}
	}
}

// IPRateLimit caps unauthenticated traffic per remote IP. Requests
// carrying an Authorization header pass through to key-based limiting;
// the health check is exempt.
func IPRateLimit(limiter *ratelimit.Limiter) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if string(ctx.Path()) == "/healthz" || len(ctx.Request.Header.Peek("Authorization")) > 0 {
				next(ctx)
				return
			}

			allowed, retryAfter := limiter.AllowIP(ctx.RemoteIP().String())
			if !allowed {
				ctx.Response.Header.Set("Retry-After", strconv.Itoa(retryAfter))
				ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
				ctx.SetContentType("application/json")
				ctx.SetBodyString(`{"error":"too many requests","retryAfter":` + strconv.Itoa(retryAfter) + `}`)
				return
			}

			next(ctx)
		}
	}
}
