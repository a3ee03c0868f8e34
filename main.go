package main

import (
	"log"
	"time"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"trackverse/internal/config"
	"trackverse/internal/db"
	"trackverse/internal/http/handlers"
	appmw "trackverse/internal/http/middleware"
	"trackverse/internal/ratelimit"
	"trackverse/internal/webhook"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := db.EnsureBootstrapAdmin(sqlDB, cfg); err != nil {
		log.Fatalf("failed to ensure bootstrap admin: %v", err)
	}
	if cfg.InternalAPIKey != "" {
		if err := db.EnsureBootstrapAPIKey(sqlDB, cfg); err != nil {
			log.Fatalf("failed to ensure bootstrap API key: %v", err)
		}
		log.Printf("internal API key configured and associated with admin user")
	}

	webhook.InitPrometheusMetrics()

	limiter := ratelimit.New()
	limiter.StartCleanupWorker(5 * time.Minute)

	dispatcher := webhook.NewDispatcher(webhook.NewGormStore(sqlDB), cfg.DeliveryTimeout)
	dispatcher.StartRetryWorker(cfg.RetryInterval)

	db.StartRetentionWorker(sqlDB, cfg.DeliveryRetentionDays)
	db.StartAggregationWorker(sqlDB)

	r := router.New()

	// Global middleware chain: request logger, then IP limiting for
	// unauthenticated traffic, then router.
	handler := appmw.RequestLogger(appmw.IPRateLimit(limiter)(r.Handler))

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	// API-key surface: auth, then the key's tier quota.
	authed := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return appmw.APIKeyAuth(sqlDB)(appmw.RateLimit(limiter)(h))
	}

	r.POST("/v1/events/{type}", authed(handlers.IngestEvent(sqlDB, dispatcher)))

	r.GET("/v1/webhooks", authed(handlers.ListWebhooks(sqlDB)))
	r.POST("/v1/webhooks", authed(handlers.CreateWebhook(sqlDB)))
	r.GET("/v1/webhooks/{id}", authed(handlers.GetWebhook(sqlDB)))
	r.PATCH("/v1/webhooks/{id}", authed(handlers.UpdateWebhook(sqlDB)))
	r.DELETE("/v1/webhooks/{id}", authed(handlers.DeleteWebhook(sqlDB)))
	r.POST("/v1/webhooks/{id}/test", authed(handlers.TestWebhook(sqlDB, dispatcher)))
	r.GET("/v1/webhooks/{id}/deliveries", authed(handlers.ListDeliveries(sqlDB)))
	r.GET("/v1/webhooks/{id}/stats", authed(handlers.DeliveryStats(sqlDB)))

	// Status check is authenticated but deliberately not rate limited:
	// asking "am I limited" must not consume quota.
	r.GET("/v1/rate-limit", appmw.APIKeyAuth(sqlDB)(handlers.RateLimitStatus(limiter)))

	r.POST("/admin/apikeys", appmw.AdminAuth(sqlDB)(handlers.CreateAPIKey(sqlDB)))
	r.GET("/admin/apikeys", appmw.AdminAuth(sqlDB)(handlers.ListAPIKeys(sqlDB)))
	r.POST("/admin/apikeys/{id}/revoke", appmw.AdminAuth(sqlDB)(handlers.RevokeAPIKey(sqlDB)))

	r.GET("/metrics", appmw.AdminAuth(sqlDB)(handlers.PrometheusMetrics()))

	log.Printf("trackverse webhook service listening on %s", cfg.ListenAddr)
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
