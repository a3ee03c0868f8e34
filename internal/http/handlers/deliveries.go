package handlers

import (
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "trackverse/internal/db"
)

type deliveryResponse struct {
	ID           string     `json:"id"`
	Event        string     `json:"event"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	ResponseCode *int       `json:"responseCode,omitempty"`
	ResponseBody string     `json:"responseBody,omitempty"`
	DurationMs   int64      `json:"durationMs"`
	NextRetryAt  *time.Time `json:"nextRetryAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// ListDeliveries returns the newest delivery records for a webhook.
// The ?limit= parameter caps at 200, default 50.
func ListDeliveries(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		wh, ok := mustOwnWebhook(ctx, db)
		if !ok {
			return
		}

		limit := 50
		if v := string(ctx.QueryArgs().Peek("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		if limit > 200 {
			limit = 200
		}

		deliveries, err := dbpkg.RecentDeliveries(db, wh.ID, limit)
		if err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		resp := make([]deliveryResponse, 0, len(deliveries))
		for _, d := range deliveries {
			resp = append(resp, deliveryResponse{
				ID:           d.ID,
				Event:        d.Event,
				Status:       d.Status,
				Attempts:     d.Attempts,
				ResponseCode: d.ResponseCode,
				ResponseBody: d.ResponseBody,
				DurationMs:   d.DurationMs,
				NextRetryAt:  d.NextRetryAt,
				CreatedAt:    d.CreatedAt,
			})
		}
		writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"deliveries": resp})
	}
}

type bucketResponse struct {
	BucketStart   time.Time `json:"bucketStart"`
	TotalCount    int64     `json:"totalCount"`
	FailedCount   int64     `json:"failedCount"`
	DurationP50Ms int64     `json:"durationP50Ms"`
	DurationP95Ms int64     `json:"durationP95Ms"`
	DurationP99Ms int64     `json:"durationP99Ms"`
}

// DeliveryStats returns the hourly aggregation buckets for a webhook,
// most recent first. The ?hours= parameter caps at 168 (one week),
// default 24.
func DeliveryStats(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		wh, ok := mustOwnWebhook(ctx, db)
		if !ok {
			return
		}

		hours := 24
		if v := string(ctx.QueryArgs().Peek("hours")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				hours = n
			}
		}
		if hours > 168 {
			hours = 168
		}

		since := time.Now().UTC().Truncate(time.Hour).Add(-time.Duration(hours) * time.Hour)
		var buckets []dbpkg.DeliveryBucket
		if err := db.Where("webhook_id = ? AND bucket_start >= ?", wh.ID, since).
			Order("bucket_start DESC").
			Find(&buckets).Error; err != nil {
			writeError(ctx, fasthttp.StatusInternalServerError, "database error")
			return
		}

		resp := make([]bucketResponse, 0, len(buckets))
		for _, b := range buckets {
			resp = append(resp, bucketResponse{
				BucketStart:   b.BucketStart,
				TotalCount:    b.TotalCount,
				FailedCount:   b.FailedCount,
				DurationP50Ms: b.DurationP50Ms,
				DurationP95Ms: b.DurationP95Ms,
				DurationP99Ms: b.DurationP99Ms,
			})
		}
		writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"buckets": resp})
	}
}
