package db

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"trackverse/internal/auth"
	"trackverse/internal/config"
)

// Connect opens a GORM database connection using APP_DATABASE_URL (PostgreSQL URL).
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, errors.New("APP_DATABASE_URL is required (PostgreSQL URL)")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil, errors.New("APP_DATABASE_URL must be a postgres:// or postgresql:// URL")
	}

	// PrepareStmt: true prevents the GORM postgres migrator from forcing simple protocol
	// for "SELECT * FROM table LIMIT 1", which would otherwise trigger "insufficient arguments".
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{PrepareStmt: true})
	if err != nil {
		return nil, err
	}

	// Auto-migrate the core tables.
	if err := db.AutoMigrate(&User{}, &APIKey{}, &Webhook{}, &WebhookDelivery{}, &DeliveryBucket{}); err != nil {
		return nil, err
	}

	return db, nil
}

// EnsureBootstrapAdmin makes sure there is at least one admin user
// corresponding to the bootstrap credentials in config. If a user with
// that username already exists, it is left as-is.
func EnsureBootstrapAdmin(db *gorm.DB, cfg *config.Config) error {
	if cfg.AdminUser == "" || cfg.AdminPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&User{}).Where("username = ?", cfg.AdminUser).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := &User{
		Username:     cfg.AdminUser,
		PasswordHash: string(hash),
		IsAdmin:      true,
	}

	return db.Create(admin).Error
}

// EnsureBootstrapAPIKey ensures the admin user owns a key matching the
// internal API key from config. The main TrackVerse app authenticates
// with this key to push domain events. Only the hash is stored; if the
// row exists but belongs to another user it is reassigned to admin.
func EnsureBootstrapAPIKey(db *gorm.DB, cfg *config.Config) error {
	if cfg.InternalAPIKey == "" {
		return nil
	}
	if !auth.IsValidKeyFormat(cfg.InternalAPIKey) {
		return errors.New("APP_INTERNAL_API_KEY must match tv_(live|test)_<48 hex>")
	}

	var admin User
	if err := db.Where("username = ?", cfg.AdminUser).First(&admin).Error; err != nil {
		return err
	}

	keyHash := auth.HashKey(cfg.InternalAPIKey)

	// Check if the key already exists (use Find so "not found" doesn't log as error).
	var existing APIKey
	if err := db.Where("key_hash = ?", keyHash).Limit(1).Find(&existing).Error; err == nil && existing.ID != "" {
		if existing.UserID != admin.ID {
			existing.UserID = admin.ID
			existing.Name = "trackverse-internal"
			existing.Tier = "enterprise"
			existing.RevokedAt = nil
			return db.Save(&existing).Error
		}
		return nil
	}

	apiKey := &APIKey{
		ID:          uuid.NewString(),
		UserID:      admin.ID,
		Name:        "trackverse-internal",
		KeyHash:     keyHash,
		KeyPrefix:   auth.DisplayPrefix(cfg.InternalAPIKey),
		Permissions: auth.AllPermissions,
		Tier:        "enterprise",
	}

	return db.Create(apiKey).Error
}
