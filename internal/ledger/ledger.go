// Package ledger implements the settlement ledger carried on config
// meta. Settled usage is historical consumption moved out of the live
// counter during a reset; it survives remote counter resets so quota
// history is never erased.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/panelmesh/resellerd/internal/models"
	"gorm.io/datatypes"
)

// ErrInvariant indicates a negative ledger value was observed. The
// ledger only ever grows, so this is fatal for the affected config and
// must be reported, not coerced.
var ErrInvariant = errors.New("ledger: settled usage invariant violated")

// altUsageMetaKeys are panel-specific live usage fields that some panel
// types track on config meta instead of the usage_bytes column. A reset
// folds them into the settlement total and zeroes them identically.
var altUsageMetaKeys = []string{"used_traffic", "data_used"}

// SettledUsage returns the settled portion of a config's usage.
func SettledUsage(cfg *models.ResellerConfig) int64 {
	if cfg == nil || cfg.Meta == nil {
		return 0
	}
	settled, _ := metaInt64(cfg.Meta[models.MetaSettledUsageBytes])
	return settled
}

// TotalUsage returns live plus settled usage. Every quota decision uses
// this total, never the live counter alone.
func TotalUsage(cfg *models.ResellerConfig) int64 {
	if cfg == nil {
		return 0
	}
	return cfg.UsageBytes + SettledUsage(cfg)
}

// LastResetAt returns the timestamp of the last reset, if any.
func LastResetAt(cfg *models.ResellerConfig) (time.Time, bool) {
	if cfg == nil || cfg.Meta == nil {
		return time.Time{}, false
	}
	raw, ok := cfg.Meta[models.MetaLastResetAt]
	if !ok {
		return time.Time{}, false
	}
	str, ok := raw.(string)
	if !ok {
		return time.Time{}, false
	}
	parsed, errParse := time.Parse(time.RFC3339, strings.TrimSpace(str))
	if errParse != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// CanResetUsage reports whether a self-service reset is allowed: the
// last reset must be older than the cooldown window.
func CanResetUsage(cfg *models.ResellerConfig, cooldown time.Duration, now time.Time) bool {
	if cooldown <= 0 {
		return true
	}
	last, ok := LastResetAt(cfg)
	if !ok {
		return true
	}
	return now.Sub(last) >= cooldown
}

// Settle moves the config's live usage into the settlement ledger:
// settled += live, live = 0, last_reset_at = now. Panel-specific meta
// usage fields are folded and zeroed the same way. Returns the number
// of bytes folded into the ledger.
func Settle(cfg *models.ResellerConfig, now time.Time) (int64, error) {
	if cfg == nil {
		return 0, errors.New("ledger: nil config")
	}
	if cfg.Meta == nil {
		cfg.Meta = datatypes.JSONMap{}
	}

	settled := SettledUsage(cfg)
	if settled < 0 {
		return 0, fmt.Errorf("%w: settled=%d config=%d", ErrInvariant, settled, cfg.ID)
	}
	if cfg.UsageBytes < 0 {
		return 0, fmt.Errorf("%w: usage=%d config=%d", ErrInvariant, cfg.UsageBytes, cfg.ID)
	}

	folded := cfg.UsageBytes
	for _, key := range altUsageMetaKeys {
		raw, ok := cfg.Meta[key]
		if !ok {
			continue
		}
		value, okParse := metaInt64(raw)
		if !okParse {
			continue
		}
		if value < 0 {
			return 0, fmt.Errorf("%w: %s=%d config=%d", ErrInvariant, key, value, cfg.ID)
		}
		folded += value
		cfg.Meta[key] = int64(0)
	}

	cfg.Meta[models.MetaSettledUsageBytes] = settled + folded
	cfg.Meta[models.MetaLastResetAt] = now.UTC().Format(time.RFC3339)
	cfg.UsageBytes = 0
	return folded, nil
}

// metaInt64 coerces a JSON meta value into an int64. Values round-trip
// through JSON columns as float64; admin tooling occasionally writes
// numeric strings.
func metaInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case float64:
		return int64(typed), true
	case json.Number:
		parsed, errParse := typed.Int64()
		if errParse != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, errParse := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if errParse != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
