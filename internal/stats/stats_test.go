package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/panelmesh/resellerd/internal/db"
	"github.com/panelmesh/resellerd/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:stats_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func int64Ptr(v int64) *int64 { return &v }

func TestForResellerDerivesTrafficAndConfigCounts(t *testing.T) {
	conn := newTestDB(t)

	reseller := &models.Reseller{
		Name:              "north",
		Type:              models.ResellerTypeTraffic,
		Status:            models.ResellerStatusActive,
		TrafficTotalBytes: int64Ptr(10 * gigabyte),
		TrafficUsedBytes:  3 * gigabyte,
		ConfigLimit:       int64Ptr(5),
	}
	if err := conn.Create(reseller).Error; err != nil {
		t.Fatalf("seed reseller: %v", err)
	}
	for i, status := range []string{
		models.ConfigStatusActive,
		models.ConfigStatusDisabled,
		models.ConfigStatusDeleted,
	} {
		cfg := &models.ResellerConfig{
			ResellerID:     reseller.ID,
			PanelID:        1,
			ExternalUserID: fmt.Sprintf("u%d", i),
			Status:         status,
		}
		if err := conn.Create(cfg).Error; err != nil {
			t.Fatalf("seed config: %v", err)
		}
	}

	got, errStats := ForReseller(context.Background(), conn, reseller.ID)
	if errStats != nil {
		t.Fatalf("stats: %v", errStats)
	}

	if got.TrafficConsumedBytes != 3*gigabyte {
		t.Fatalf("traffic_consumed_bytes = %d, want %d", got.TrafficConsumedBytes, 3*gigabyte)
	}
	if got.TrafficTotalGB == nil || *got.TrafficTotalGB != 10 {
		t.Fatalf("traffic_total_gb = %v, want 10", got.TrafficTotalGB)
	}
	if got.TrafficRemainingGB == nil || *got.TrafficRemainingGB != 7 {
		t.Fatalf("traffic_remaining_gb = %v, want 7", got.TrafficRemainingGB)
	}
	// Deleted configs are tombstones and stay out of the live count.
	if got.TotalConfigs != 2 {
		t.Fatalf("total_configs = %d, want 2", got.TotalConfigs)
	}
	if got.ConfigLimit == nil || *got.ConfigLimit != 5 {
		t.Fatalf("config_limit = %v, want 5", got.ConfigLimit)
	}
	if got.ConfigsRemaining == nil || *got.ConfigsRemaining != 3 {
		t.Fatalf("configs_remaining = %v, want 3", got.ConfigsRemaining)
	}
	if got.IsUnlimitedLimit {
		t.Fatal("is_unlimited_limit = true, want false")
	}
}

func TestBuildUnlimitedQuotaAndLimit(t *testing.T) {
	reseller := &models.Reseller{
		ID:               7,
		Type:             models.ResellerTypeWallet,
		Status:           models.ResellerStatusActive,
		TrafficUsedBytes: 42 * gigabyte,
	}

	got := Build(reseller, 12)

	if got.TrafficTotalGB != nil || got.TrafficRemainingGB != nil {
		t.Fatalf("unlimited quota must report nil GB fields, got total=%v remaining=%v",
			got.TrafficTotalGB, got.TrafficRemainingGB)
	}
	if got.TrafficConsumedBytes != 42*gigabyte {
		t.Fatalf("traffic_consumed_bytes = %d, want %d", got.TrafficConsumedBytes, 42*gigabyte)
	}
	if !got.IsUnlimitedLimit {
		t.Fatal("is_unlimited_limit = false, want true")
	}
	if got.ConfigLimit != nil || got.ConfigsRemaining != nil {
		t.Fatalf("unlimited limit must report nil limit fields, got limit=%v remaining=%v",
			got.ConfigLimit, got.ConfigsRemaining)
	}
	if got.TotalConfigs != 12 {
		t.Fatalf("total_configs = %d, want 12", got.TotalConfigs)
	}
}

func TestBuildClampsOverrunToZeroRemaining(t *testing.T) {
	reseller := &models.Reseller{
		ID:                3,
		Type:              models.ResellerTypeTraffic,
		Status:            models.ResellerStatusActive,
		TrafficTotalBytes: int64Ptr(10 * gigabyte),
		TrafficUsedBytes:  12 * gigabyte,
		ConfigLimit:       int64Ptr(2),
	}

	got := Build(reseller, 4)

	if got.TrafficRemainingGB == nil || *got.TrafficRemainingGB != 0 {
		t.Fatalf("traffic_remaining_gb = %v, want 0", got.TrafficRemainingGB)
	}
	if got.ConfigsRemaining == nil || *got.ConfigsRemaining != 0 {
		t.Fatalf("configs_remaining = %v, want 0", got.ConfigsRemaining)
	}
}

func TestBuildZeroConfigLimitIsUnlimited(t *testing.T) {
	reseller := &models.Reseller{
		ID:          9,
		Type:        models.ResellerTypeTraffic,
		Status:      models.ResellerStatusActive,
		ConfigLimit: int64Ptr(0),
	}

	got := Build(reseller, 1)

	if !got.IsUnlimitedLimit {
		t.Fatal("zero config_limit must read as unlimited")
	}
	if got.ConfigLimit != nil {
		t.Fatalf("config_limit = %v, want nil", got.ConfigLimit)
	}
}
