package settings

import "time"

// DB config keys and defaults for the enforcement engine.
const (
	// AllowConfigOverrunKey toggles soft quotas: when true, quota
	// exhaustion is informational and never disables configs.
	AllowConfigOverrunKey = "ALLOW_CONFIG_OVERRUN"
	// AutoDisableGracePercentKey is the quota grace margin as a percent of the total.
	AutoDisableGracePercentKey = "AUTO_DISABLE_GRACE_PERCENT"
	// AutoDisableGraceBytesKey is the quota grace margin in absolute bytes.
	AutoDisableGraceBytesKey = "AUTO_DISABLE_GRACE_BYTES"
	// TimeExpiryGraceMinutesKey is the grace after window expiry before configs disable.
	TimeExpiryGraceMinutesKey = "TIME_EXPIRY_GRACE_MINUTES"
	// UsageSyncIntervalMinutesKey controls the sync dispatch interval, clamped to [1,5].
	UsageSyncIntervalMinutesKey = "USAGE_SYNC_INTERVAL_MINUTES"
	// ResetCooldownHoursKey controls the self-service reset cooldown window.
	ResetCooldownHoursKey = "RESET_COOLDOWN_HOURS"

	// DefaultAllowConfigOverrun is the fallback overrun flag.
	DefaultAllowConfigOverrun = false
	// DefaultAutoDisableGracePercent is the fallback percent grace.
	DefaultAutoDisableGracePercent = 0.0
	// DefaultAutoDisableGraceBytes is the fallback absolute grace in bytes.
	DefaultAutoDisableGraceBytes = int64(0)
	// DefaultTimeExpiryGraceMinutes is the fallback window expiry grace.
	DefaultTimeExpiryGraceMinutes = 0
	// DefaultUsageSyncIntervalMinutes is the fallback sync interval.
	DefaultUsageSyncIntervalMinutes = 5
	// DefaultResetCooldown is the fallback self-service reset cooldown.
	DefaultResetCooldown = 24 * time.Hour

	// MinUsageSyncIntervalMinutes bounds the sync interval from below.
	MinUsageSyncIntervalMinutes = 1
	// MaxUsageSyncIntervalMinutes bounds the sync interval from above.
	MaxUsageSyncIntervalMinutes = 5
)

// EditableKeys lists the DB config keys exposed through the admin API.
var EditableKeys = []string{
	AllowConfigOverrunKey,
	AutoDisableGracePercentKey,
	AutoDisableGraceBytesKey,
	TimeExpiryGraceMinutesKey,
	UsageSyncIntervalMinutesKey,
	ResetCooldownHoursKey,
}
