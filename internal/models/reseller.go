package models

import "time"

// Reseller types. Only traffic and wallet resellers participate in
// usage enforcement; plan resellers are billed per provisioned config.
const (
	ResellerTypeTraffic = "traffic"
	ResellerTypeWallet  = "wallet"
	ResellerTypePlan    = "plan"
)

// Reseller statuses.
const (
	ResellerStatusActive    = "active"
	ResellerStatusSuspended = "suspended"
)

// Reseller represents a reselling account whose configs share a traffic quota.
type Reseller struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name   string `gorm:"type:text;not null"`                        // Display name.
	Type   string `gorm:"type:text;not null;index"`                  // traffic, wallet or plan.
	Status string `gorm:"type:text;not null;default:'active';index"` // active or suspended.

	TrafficTotalBytes *int64 `gorm:"type:bigint"`        // Quota in bytes; nil means unlimited.
	TrafficUsedBytes  int64  `gorm:"not null;default:0"` // Cached aggregate of config usage; derived, never authoritative.

	WindowStartsAt *time.Time // Start of the active window; nil means no window.
	WindowEndsAt   *time.Time // End of the active window; nil means no window.

	ConfigLimit *int64 `gorm:"type:bigint"` // Max provisioned configs; nil means unlimited.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Metered reports whether the reseller participates in usage enforcement.
func (r *Reseller) Metered() bool {
	return r.Type == ResellerTypeTraffic || r.Type == ResellerTypeWallet
}

// HasTrafficRemaining reports whether the reseller still has quota left.
// A nil quota means unlimited.
func (r *Reseller) HasTrafficRemaining() bool {
	if r.TrafficTotalBytes == nil {
		return true
	}
	return r.TrafficUsedBytes < *r.TrafficTotalBytes
}

// UnlimitedConfigs reports whether the config limit is unlimited.
// A nil or non-positive limit is canonicalized to unlimited; writes
// normalize literal zero to nil before reaching storage.
func (r *Reseller) UnlimitedConfigs() bool {
	return r.ConfigLimit == nil || *r.ConfigLimit <= 0
}
