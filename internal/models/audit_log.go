package models

import (
	"time"

	"gorm.io/datatypes"
)

// Audit actions emitted by the engine.
const (
	AuditResellerUsageResetCompleted = "reseller_usage_reset_completed"
	AuditResellerUsageForgiven       = "reseller_usage_forgiven"
	AuditConfigUsageReset            = "config_usage_reset"
	AuditSettingsUpdated             = "settings_updated"
)

// Audit target types.
const (
	AuditTargetReseller = "reseller"
	AuditTargetConfig   = "reseller_config"
	AuditTargetSetting  = "setting"
)

// AuditLog is an immutable record of a quota-affecting state change.
// ActorID is nil for system-initiated actions.
type AuditLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Action     string `gorm:"type:text;not null;index"` // Action identifier.
	TargetType string `gorm:"type:text;not null;index"` // Target entity type.
	TargetID   uint64 `gorm:"not null;index"`           // Target entity ID.

	Reason string         `gorm:"type:text"`                        // Human-readable reason.
	Meta   datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Before/after values and context.

	ActorID *uint64 `gorm:"index"` // Acting admin ID; nil for the system.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
