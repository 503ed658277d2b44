package models

import (
	"time"

	"gorm.io/datatypes"
)

// ResellerConfig statuses. Deleted configs are tombstones: excluded
// from live counts and aggregation but retained for audit.
const (
	ConfigStatusActive   = "active"
	ConfigStatusDisabled = "disabled"
	ConfigStatusDeleted  = "deleted"
)

// Meta keys carried on ResellerConfig.Meta.
const (
	MetaSettledUsageBytes = "settled_usage_bytes" // Settlement ledger total; only ever increases.
	MetaLastResetAt       = "last_reset_at"       // Timestamp of the last usage reset; drives cooldown.
)

// ResellerConfig is a provisioned account on an external panel owned by a reseller.
type ResellerConfig struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ResellerID uint64 `gorm:"not null;index"` // Owning reseller ID.
	PanelID    uint64 `gorm:"not null;index"` // Panel the config is provisioned on.

	ExternalUserID string `gorm:"type:text;not null"`                        // Identity on the remote panel.
	Status         string `gorm:"type:text;not null;default:'active';index"` // active, disabled or deleted.

	UsageBytes        int64  `gorm:"not null;default:0"` // Live counter synced from the panel.
	TrafficLimitBytes *int64 `gorm:"type:bigint"`        // Per-config cap; nil means uncapped.

	ExpiresAt *time.Time // Config expiry; nil means no expiry.

	Meta datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"` // Settlement ledger and panel-specific usage fields.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
