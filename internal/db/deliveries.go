package db

import (
	"time"

	"gorm.io/gorm"
)

// DueRetries returns failed deliveries whose retry time has arrived.
// Terminal failures have NextRetryAt cleared, so the IS NOT NULL
// filter is what keeps them out.
func DueRetries(db *gorm.DB, now time.Time, limit int) ([]WebhookDelivery, error) {
	var due []WebhookDelivery
	err := db.Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", DeliveryStatusFailed, now).
		Order("next_retry_at").
		Limit(limit).
		Find(&due).Error
	return due, err
}

// RecentDeliveries returns the newest delivery records for a webhook.
func RecentDeliveries(db *gorm.DB, webhookID string, limit int) ([]WebhookDelivery, error) {
	var deliveries []WebhookDelivery
	err := db.Where("webhook_id = ?", webhookID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error
	return deliveries, err
}

// TouchKeyUsage records one authenticated request against a key.
func TouchKeyUsage(db *gorm.DB, keyID string, now time.Time) error {
	return db.Model(&APIKey{}).Where("id = ?", keyID).Updates(map[string]interface{}{
		"usage_count":  gorm.Expr("usage_count + 1"),
		"last_used_at": now,
	}).Error
}
