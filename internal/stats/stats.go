// Package stats builds the reseller dashboard read model. Every field
// is derived from stored rows at read time; nothing here is persisted.
package stats

import (
	"context"
	"errors"

	"github.com/panelmesh/resellerd/internal/models"
	"gorm.io/gorm"
)

// gigabyte is the binary unit the dashboard reports traffic in.
const gigabyte = int64(1) << 30

// ResellerStats is the dashboard view of a single reseller.
type ResellerStats struct {
	ResellerID uint64 `json:"reseller_id"`
	Type       string `json:"type"`
	Status     string `json:"status"`

	TrafficConsumedBytes int64    `json:"traffic_consumed_bytes"`
	TrafficTotalGB       *float64 `json:"traffic_total_gb"`     // Nil when the quota is unlimited.
	TrafficRemainingGB   *float64 `json:"traffic_remaining_gb"` // Nil when the quota is unlimited; never negative.

	ConfigLimit      *int64 `json:"config_limit"` // Nil when unlimited.
	TotalConfigs     int64  `json:"total_configs"`
	ConfigsRemaining *int64 `json:"configs_remaining"` // Nil when unlimited; never negative.
	IsUnlimitedLimit bool   `json:"is_unlimited_limit"`
}

// ForReseller computes the dashboard stats for one reseller.
func ForReseller(ctx context.Context, conn *gorm.DB, resellerID uint64) (*ResellerStats, error) {
	if conn == nil {
		return nil, errors.New("stats: nil database")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var reseller models.Reseller
	if errFirst := conn.WithContext(ctx).First(&reseller, resellerID).Error; errFirst != nil {
		return nil, errFirst
	}

	var totalConfigs int64
	if errCount := conn.WithContext(ctx).
		Model(&models.ResellerConfig{}).
		Where("reseller_id = ? AND status <> ?", resellerID, models.ConfigStatusDeleted).
		Count(&totalConfigs).Error; errCount != nil {
		return nil, errCount
	}

	return Build(&reseller, totalConfigs), nil
}

// Build derives the stats view from an already loaded reseller and its
// non-deleted config count.
func Build(reseller *models.Reseller, totalConfigs int64) *ResellerStats {
	out := &ResellerStats{
		ResellerID:           reseller.ID,
		Type:                 reseller.Type,
		Status:               reseller.Status,
		TrafficConsumedBytes: reseller.TrafficUsedBytes,
		TotalConfigs:         totalConfigs,
		IsUnlimitedLimit:     reseller.UnlimitedConfigs(),
	}

	if reseller.TrafficTotalBytes != nil {
		totalGB := toGB(*reseller.TrafficTotalBytes)
		remainingBytes := *reseller.TrafficTotalBytes - reseller.TrafficUsedBytes
		if remainingBytes < 0 {
			remainingBytes = 0
		}
		remainingGB := toGB(remainingBytes)
		out.TrafficTotalGB = &totalGB
		out.TrafficRemainingGB = &remainingGB
	}

	if !out.IsUnlimitedLimit {
		limit := *reseller.ConfigLimit
		out.ConfigLimit = &limit
		remaining := limit - totalConfigs
		if remaining < 0 {
			remaining = 0
		}
		out.ConfigsRemaining = &remaining
	}

	return out
}

func toGB(bytes int64) float64 {
	return float64(bytes) / float64(gigabyte)
}
