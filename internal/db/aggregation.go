package db

import (
	"log"
	"sort"
	"time"

	"gorm.io/gorm"
)

// runAggregationOnce aggregates delivery records for the given hour
// (bucketStart to bucketStart+1h) into DeliveryBucket rows. Call with
// bucketStart = time in UTC truncated to hour.
func runAggregationOnce(db *gorm.DB, bucketStart time.Time) error {
	bucketEnd := bucketStart.Add(time.Hour)

	var deliveries []WebhookDelivery
	if err := db.Where("created_at >= ? AND created_at < ? AND status <> ?", bucketStart, bucketEnd, DeliveryStatusPending).
		Select("webhook_id", "status", "duration_ms").
		Find(&deliveries).Error; err != nil {
		return err
	}

	// Group by webhook; collect status and duration_ms for percentiles.
	groups := make(map[string][]struct {
		status string
		dur    int64
	})
	for _, d := range deliveries {
		groups[d.WebhookID] = append(groups[d.WebhookID], struct {
			status string
			dur    int64
		}{d.Status, d.DurationMs})
	}

	for webhookID, list := range groups {
		total := int64(len(list))
		var failedCount int64
		durations := make([]int64, 0, len(list))
		for _, p := range list {
			if p.status == DeliveryStatusFailed {
				failedCount++
			}
			durations = append(durations, p.dur)
		}
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		p50 := int64(0)
		p95 := int64(0)
		p99 := int64(0)
		if n := len(durations); n > 0 {
			p50 = durations[(n*50)/100]
			p95 = durations[(n*95)/100]
			p99 = durations[(n*99)/100]
		}

		row := DeliveryBucket{
			WebhookID:     webhookID,
			BucketStart:   bucketStart,
			TotalCount:    total,
			FailedCount:   failedCount,
			DurationP50Ms: p50,
			DurationP95Ms: p95,
			DurationP99Ms: p99,
		}
		var existing DeliveryBucket
		err := db.Where("webhook_id = ? AND bucket_start = ?", webhookID, bucketStart).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			err = db.Create(&row).Error
		} else if err == nil {
			err = db.Model(&existing).Updates(map[string]interface{}{
				"total_count":     row.TotalCount,
				"failed_count":    row.FailedCount,
				"duration_p50_ms": row.DurationP50Ms,
				"duration_p95_ms": row.DurationP95Ms,
				"duration_p99_ms": row.DurationP99Ms,
			}).Error
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// StartAggregationWorker runs aggregation for the previous full hour at startup,
// then every hour. Buckets are in UTC.
func StartAggregationWorker(db *gorm.DB) {
	go func() {
		// Run for the last 24 completed hours at startup.
		now := time.Now().UTC()
		for i := 1; i <= 24; i++ {
			bucketStart := now.Truncate(time.Hour).Add(-time.Duration(i) * time.Hour)
			if err := runAggregationOnce(db, bucketStart); err != nil {
				log.Printf("delivery aggregation error (startup) for %s: %v", bucketStart.Format(time.RFC3339), err)
			}
		}

		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for t := range ticker.C {
			bucketStart := t.UTC().Truncate(time.Hour).Add(-time.Hour)
			if err := runAggregationOnce(db, bucketStart); err != nil {
				log.Printf("delivery aggregation error for %s: %v", bucketStart.Format(time.RFC3339), err)
			}
		}
	}()
}
