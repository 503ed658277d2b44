package db

import (
	"fmt"

	"github.com/panelmesh/resellerd/internal/models"
	"gorm.io/gorm"
)

// Migrate runs schema migrations for all engine tables.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if err := conn.AutoMigrate(
		&models.Reseller{},
		&models.ResellerConfig{},
		&models.ResellerConfigEvent{},
		&models.AuditLog{},
		&models.Panel{},
		&models.Setting{},
		&models.Admin{},
	); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return normalizeConfigLimits(conn)
}

// normalizeConfigLimits rewrites legacy zero config limits to NULL.
// Zero historically meant unlimited in some write paths and a hard
// zero limit in others; NULL is the canonical unlimited value.
func normalizeConfigLimits(conn *gorm.DB) error {
	return conn.Model(&models.Reseller{}).
		Where("config_limit = ?", 0).
		Update("config_limit", nil).Error
}
