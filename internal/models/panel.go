package models

import "time"

// Panel statuses.
const (
	PanelStatusActive   = "active"
	PanelStatusDisabled = "disabled"
)

// Panel is an external provisioning panel that hosts reseller configs.
type Panel struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name   string `gorm:"type:text;not null"`                  // Display name.
	Type   string `gorm:"type:text;not null;index"`            // Panel adapter type, e.g. xui or marzban.
	Status string `gorm:"type:text;not null;default:'active'"` // active or disabled.

	BaseURL string `gorm:"type:text;not null"` // API base URL.
	APIKey  string `gorm:"type:text"`          // API credential.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
