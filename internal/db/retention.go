package db

import (
	"log"
	"time"

	"gorm.io/gorm"
)

// runRetentionOnce performs a single pass of retention cleanup,
// deleting terminal delivery records older than the retention horizon.
// Pending and retryable deliveries are never pruned.
func runRetentionOnce(db *gorm.DB, retentionDays int) error {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	return db.Where(
		"created_at < ? AND (status = ? OR (status = ? AND next_retry_at IS NULL))",
		cutoff, DeliveryStatusSuccess, DeliveryStatusFailed,
	).Delete(&WebhookDelivery{}).Error
}

// StartRetentionWorker launches a background goroutine that runs the
// retention cleanup once at startup and then once per day.
func StartRetentionWorker(db *gorm.DB, retentionDays int) {
	go func() {
		if err := runRetentionOnce(db, retentionDays); err != nil {
			log.Printf("delivery retention error (startup): %v", err)
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			if err := runRetentionOnce(db, retentionDays); err != nil {
				log.Printf("delivery retention error: %v", err)
			}
		}
	}()
}
