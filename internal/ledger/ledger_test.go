package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/panelmesh/resellerd/internal/models"
	"gorm.io/datatypes"
)

const gigabyte = int64(1) << 30

func TestSettleFoldsLiveUsageIntoLedger(t *testing.T) {
	cfg := &models.ResellerConfig{
		ID:         1,
		UsageBytes: gigabyte,
		Meta:       datatypes.JSONMap{models.MetaSettledUsageBytes: gigabyte / 2},
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	folded, errSettle := Settle(cfg, now)
	if errSettle != nil {
		t.Fatalf("settle: %v", errSettle)
	}
	if folded != gigabyte {
		t.Fatalf("folded = %d, want %d", folded, gigabyte)
	}
	if cfg.UsageBytes != 0 {
		t.Fatalf("usage after settle = %d, want 0", cfg.UsageBytes)
	}
	if got := SettledUsage(cfg); got != gigabyte+gigabyte/2 {
		t.Fatalf("settled = %d, want %d", got, gigabyte+gigabyte/2)
	}
	last, ok := LastResetAt(cfg)
	if !ok || !last.Equal(now) {
		t.Fatalf("last reset = %v ok=%v, want %v", last, ok, now)
	}
}

func TestSettleFoldsAlternateMetaFields(t *testing.T) {
	cfg := &models.ResellerConfig{
		ID:         2,
		UsageBytes: 100,
		Meta: datatypes.JSONMap{
			"used_traffic": float64(400),
			"data_used":    "500",
		},
	}

	folded, errSettle := Settle(cfg, time.Now().UTC())
	if errSettle != nil {
		t.Fatalf("settle: %v", errSettle)
	}
	if folded != 1000 {
		t.Fatalf("folded = %d, want 1000", folded)
	}
	if got := SettledUsage(cfg); got != 1000 {
		t.Fatalf("settled = %d, want 1000", got)
	}
	for _, key := range []string{"used_traffic", "data_used"} {
		value, ok := metaInt64(cfg.Meta[key])
		if !ok || value != 0 {
			t.Fatalf("%s = %v, want zeroed", key, cfg.Meta[key])
		}
	}
}

func TestSettledUsageNeverDecreasesAcrossSettles(t *testing.T) {
	cfg := &models.ResellerConfig{ID: 3, Meta: datatypes.JSONMap{}}

	previous := int64(0)
	for _, usage := range []int64{100, 0, 250, 50} {
		cfg.UsageBytes = usage
		if _, errSettle := Settle(cfg, time.Now().UTC()); errSettle != nil {
			t.Fatalf("settle: %v", errSettle)
		}
		settled := SettledUsage(cfg)
		if settled < previous {
			t.Fatalf("settled decreased from %d to %d", previous, settled)
		}
		previous = settled
	}
	if previous != 400 {
		t.Fatalf("final settled = %d, want 400", previous)
	}
}

func TestSettleRejectsNegativeLedger(t *testing.T) {
	cases := []struct {
		name string
		cfg  *models.ResellerConfig
	}{
		{
			name: "negative settled",
			cfg: &models.ResellerConfig{
				UsageBytes: 10,
				Meta:       datatypes.JSONMap{models.MetaSettledUsageBytes: int64(-5)},
			},
		},
		{
			name: "negative live",
			cfg:  &models.ResellerConfig{UsageBytes: -1, Meta: datatypes.JSONMap{}},
		},
		{
			name: "negative alt field",
			cfg: &models.ResellerConfig{
				UsageBytes: 0,
				Meta:       datatypes.JSONMap{"used_traffic": float64(-7)},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, errSettle := Settle(tc.cfg, time.Now().UTC()); !errors.Is(errSettle, ErrInvariant) {
				t.Fatalf("err = %v, want ErrInvariant", errSettle)
			}
		})
	}
}

func TestCanResetUsageCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	fresh := &models.ResellerConfig{Meta: datatypes.JSONMap{
		models.MetaLastResetAt: now.Add(-time.Hour).Format(time.RFC3339),
	}}
	if CanResetUsage(fresh, 24*time.Hour, now) {
		t.Fatalf("reset within cooldown should be rejected")
	}

	stale := &models.ResellerConfig{Meta: datatypes.JSONMap{
		models.MetaLastResetAt: now.Add(-25 * time.Hour).Format(time.RFC3339),
	}}
	if !CanResetUsage(stale, 24*time.Hour, now) {
		t.Fatalf("reset past cooldown should be allowed")
	}

	never := &models.ResellerConfig{Meta: datatypes.JSONMap{}}
	if !CanResetUsage(never, 24*time.Hour, now) {
		t.Fatalf("config never reset should be allowed")
	}
}

func TestTotalUsage(t *testing.T) {
	cfg := &models.ResellerConfig{
		UsageBytes: 300,
		Meta:       datatypes.JSONMap{models.MetaSettledUsageBytes: float64(700)},
	}
	if got := TotalUsage(cfg); got != 1000 {
		t.Fatalf("total = %d, want 1000", got)
	}
}
