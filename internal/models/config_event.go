package models

import (
	"time"

	"gorm.io/datatypes"
)

// ResellerConfigEvent types.
const (
	EventAutoDisabled = "auto_disabled"
	EventAutoEnabled  = "auto_enabled"
	EventUsageReset   = "usage_reset"
)

// Disable reasons carried in event meta under "reason".
const (
	ReasonQuotaExhausted = "reseller_quota_exhausted"
	ReasonWindowExpired  = "reseller_window_expired"
)

// ResellerConfigEvent is an immutable lifecycle record for a config.
// Rows are created by the engine and never updated or deleted.
type ResellerConfigEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ConfigID uint64 `gorm:"not null;index"`           // Related config ID.
	Type     string `gorm:"type:text;not null;index"` // Event type.

	Meta datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Triggering reason and context.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}
