package webhook

import (
	"time"

	"gorm.io/gorm"

	dbpkg "trackverse/internal/db"
)

// Outcome classifies a finished delivery attempt for webhook
// bookkeeping purposes.
type Outcome int

const (
	// OutcomeSuccess: 2xx response, delivery terminal.
	OutcomeSuccess Outcome = iota
	// OutcomeRetrying: failed, another attempt is scheduled.
	OutcomeRetrying
	// OutcomeTerminalFailure: failed with the attempt budget exhausted.
	OutcomeTerminalFailure
)

// Store is the persistence surface the dispatcher needs. Backed by
// GormStore in production and by an in-memory fake in tests; swapping
// in an external store is the extension point for running more than
// one instance.
type Store interface {
	CreateDelivery(d *dbpkg.WebhookDelivery) error
	SaveDelivery(d *dbpkg.WebhookDelivery) error
	GetWebhook(id string) (*dbpkg.Webhook, error)
	DueRetries(now time.Time, limit int) ([]dbpkg.WebhookDelivery, error)

	// RecordAttempt updates the webhook's delivery bookkeeping:
	// last-triggered time, last response code, and the consecutive
	// failure count that drives auto-disabling.
	RecordAttempt(webhookID string, responseCode *int, at time.Time, outcome Outcome) error
}

// failureDisableThreshold is the consecutive terminal-failure count at
// which a webhook is flipped to status failed and stops receiving
// events until re-activated.
const failureDisableThreshold = 10

// GormStore implements Store on the service database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateDelivery(d *dbpkg.WebhookDelivery) error {
	return s.db.Create(d).Error
}

func (s *GormStore) SaveDelivery(d *dbpkg.WebhookDelivery) error {
	return s.db.Save(d).Error
}

func (s *GormStore) GetWebhook(id string) (*dbpkg.Webhook, error) {
	var wh dbpkg.Webhook
	if err := s.db.First(&wh, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &wh, nil
}

func (s *GormStore) DueRetries(now time.Time, limit int) ([]dbpkg.WebhookDelivery, error) {
	return dbpkg.DueRetries(s.db, now, limit)
}

func (s *GormStore) RecordAttempt(webhookID string, responseCode *int, at time.Time, outcome Outcome) error {
	var wh dbpkg.Webhook
	if err := s.db.First(&wh, "id = ?", webhookID).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{
		"last_triggered_at":  at,
		"last_response_code": responseCode,
	}
	switch outcome {
	case OutcomeSuccess:
		updates["failure_count"] = 0
	case OutcomeTerminalFailure:
		count := wh.FailureCount + 1
		updates["failure_count"] = count
		if count >= failureDisableThreshold && wh.Status == dbpkg.WebhookStatusActive {
			updates["status"] = dbpkg.WebhookStatusFailed
		}
	}

	return s.db.Model(&dbpkg.Webhook{}).Where("id = ?", webhookID).Updates(updates).Error
}
