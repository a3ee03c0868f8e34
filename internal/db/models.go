package db

import (
	"time"

	"gorm.io/datatypes"
)

// User represents an operator that can call the admin endpoints and
// own API keys. The bootstrap admin (from env) is created as a row in
// this table on startup.
type User struct {
	ID uint `gorm:"primaryKey"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"size:255;not null"`

	// IsAdmin marks users that can manage API keys and read /metrics.
	// The bootstrap admin has IsAdmin=true.
	IsAdmin bool `gorm:"default:false"`
}

// APIKey is a caller credential. Only the SHA-256 hash of the secret
// is stored; the plaintext is returned exactly once at creation.
type APIKey struct {
	ID string `gorm:"primaryKey;size:36"`

	CreatedAt time.Time
	UpdatedAt time.Time

	// UserID links this key to the user who owns it.
	UserID uint `gorm:"index;not null"`

	// Name is a user-friendly identifier for this key (e.g. "strava-sync").
	Name string `gorm:"size:128;not null"`

	// KeyHash is the hex SHA-256 of the full plaintext key.
	KeyHash string `gorm:"uniqueIndex;size:64;not null"`

	// KeyPrefix is the display-safe identifier, e.g. "tv_live_a1b2c3d4".
	KeyPrefix string `gorm:"size:32;not null"`

	// Permissions holds the granted scopes as a JSON string array.
	Permissions datatypes.JSONSlice[string] `gorm:"type:json"`

	// Tier names the rate-limit tier (free, pro, enterprise).
	Tier string `gorm:"size:32;not null;default:free"`

	UsageCount int64 `gorm:"not null;default:0"`
	LastUsedAt *time.Time

	// ExpiresAt, when set, makes the key invalid after that instant.
	ExpiresAt *time.Time

	// RevokedAt marks the key dead. Keys are never hard-deleted.
	RevokedAt *time.Time

	// User is the owner of this API key.
	User User `gorm:"foreignKey:UserID"`
}

// IsExpired reports whether the key has an expiry in the past.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// IsRevoked reports whether the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// IsValid reports whether the key is neither expired nor revoked.
func (k *APIKey) IsValid(now time.Time) bool {
	return !k.IsExpired(now) && !k.IsRevoked()
}

// Webhook statuses.
const (
	WebhookStatusActive = "active"
	WebhookStatusPaused = "paused"
	WebhookStatusFailed = "failed"
)

// Webhook is a subscriber registration: a URL that receives signed
// POSTs for the events it subscribes to.
type Webhook struct {
	ID string `gorm:"primaryKey;size:36"`

	CreatedAt time.Time
	UpdatedAt time.Time

	UserID uint `gorm:"index;not null"`

	URL string `gorm:"size:2048;not null"`

	// Events holds the subscribed event names as a JSON string array.
	Events datatypes.JSONSlice[string] `gorm:"type:json"`

	// Secret is the HMAC signing key for this subscriber. It is shown
	// once at registration and never serialized in API responses.
	Secret string `gorm:"size:128;not null"`

	Status string `gorm:"size:16;not null;default:active"`

	// FailureCount counts consecutive terminal delivery failures.
	// Reset on any successful delivery.
	FailureCount int `gorm:"not null;default:0"`

	LastTriggeredAt  *time.Time
	LastResponseCode *int
}

// Subscribed reports whether the webhook subscribes to event.
func (w *Webhook) Subscribed(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Delivery statuses.
const (
	DeliveryStatusPending = "pending"
	DeliveryStatusSuccess = "success"
	DeliveryStatusFailed  = "failed"
)

// WebhookDelivery is one webhook+event+payload triple and the record
// of its attempts. Mutated in place by each attempt; terminal once
// status is success or the attempt budget is exhausted.
type WebhookDelivery struct {
	ID string `gorm:"primaryKey;size:36"`

	CreatedAt time.Time

	WebhookID string `gorm:"index;size:36;not null"`

	Event string `gorm:"size:64;not null"`

	// Payload is the event data as built by the payload builders.
	Payload datatypes.JSONMap `gorm:"type:json"`

	// ResponseCode is nil when the request never reached a server
	// (DNS failure, timeout).
	ResponseCode *int

	// ResponseBody holds at most the first 1000 characters.
	ResponseBody string `gorm:"size:1000"`

	DurationMs int64

	Status string `gorm:"index;size:16;not null;default:pending"`

	// Attempts increments exactly once per delivery attempt.
	Attempts int `gorm:"not null;default:0"`

	// NextRetryAt is set only while another attempt is still owed.
	NextRetryAt *time.Time `gorm:"index"`
}

// DeliveryBucket stores pre-aggregated hourly delivery metrics per
// webhook for the stats endpoint. Filled by the aggregation worker.
type DeliveryBucket struct {
	ID uint `gorm:"primaryKey"`

	WebhookID   string    `gorm:"uniqueIndex:idx_delivery_bucket_unique,priority:1;size:36;not null"`
	BucketStart time.Time `gorm:"uniqueIndex:idx_delivery_bucket_unique,priority:2;not null"` // start of the hour (UTC)

	TotalCount    int64 `gorm:"not null"` // delivery attempts recorded in this hour
	FailedCount   int64 `gorm:"not null"` // attempts that did not get a 2xx
	DurationP50Ms int64 `gorm:"not null"`
	DurationP95Ms int64 `gorm:"not null"`
	DurationP99Ms int64 `gorm:"not null"`
}
