// Package aggregate maintains the reseller-level cached usage total.
package aggregate

import (
	"context"
	"errors"

	"github.com/panelmesh/resellerd/internal/ledger"
	"github.com/panelmesh/resellerd/internal/models"
	"gorm.io/gorm"
)

// Recompute recalculates a reseller's total consumed bytes from its
// configs and writes the cached aggregate. Disabled configs still count
// toward quota; deleted configs are tombstones and are excluded. The
// result is a pure function of current config state, so repeated calls
// are idempotent.
func Recompute(ctx context.Context, db *gorm.DB, resellerID uint64) (int64, error) {
	if db == nil {
		return 0, errors.New("aggregate: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var configs []models.ResellerConfig
	if errFind := db.WithContext(ctx).
		Where("reseller_id = ? AND status <> ?", resellerID, models.ConfigStatusDeleted).
		Find(&configs).Error; errFind != nil {
		return 0, errFind
	}

	var total int64
	for i := range configs {
		total += ledger.TotalUsage(&configs[i])
	}

	if errUpdate := db.WithContext(ctx).
		Model(&models.Reseller{}).
		Where("id = ?", resellerID).
		Update("traffic_used_bytes", total).Error; errUpdate != nil {
		return 0, errUpdate
	}
	return total, nil
}
