// Package enforce transitions configs between active and disabled based
// on the owning reseller's quota and time-window state.
package enforce

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/panelmesh/resellerd/internal/audit"
	"github.com/panelmesh/resellerd/internal/models"
	"github.com/panelmesh/resellerd/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Engine evaluates enforcement conditions for one reseller at a time.
type Engine struct {
	db       *gorm.DB
	recorder *audit.Recorder
}

// NewEngine constructs an enforcement engine.
func NewEngine(db *gorm.DB, recorder *audit.Recorder) *Engine {
	return &Engine{db: db, recorder: recorder}
}

// QuotaExhausted reports whether the reseller's used bytes have crossed
// the quota threshold. The threshold is the total minus the larger of
// the absolute grace or the percentage grace of the total. Grace is a
// margin inside the quota: a configured grace at or above the total is
// ignored, so the threshold never drops to zero or below. A nil quota
// means unlimited and never exhausts; the overrun flag is applied by
// callers, since exhaustion stays informational under soft quotas.
func QuotaExhausted(r *models.Reseller, policy settings.Policy) bool {
	if r == nil || r.TrafficTotalBytes == nil {
		return false
	}
	total := *r.TrafficTotalBytes
	grace := policy.GraceBytes
	if pct := int64(float64(total) * policy.GracePercent / 100); pct > grace {
		grace = pct
	}
	if grace < 0 || grace >= total {
		grace = 0
	}
	return r.TrafficUsedBytes >= total-grace
}

// WindowExpired reports whether the reseller's window has ended, past
// the configured grace. Wallet resellers are exempt from window checks.
func WindowExpired(r *models.Reseller, policy settings.Policy, now time.Time) bool {
	if r == nil || r.Type == models.ResellerTypeWallet {
		return false
	}
	if r.WindowEndsAt == nil {
		return false
	}
	deadline := r.WindowEndsAt.Add(time.Duration(policy.TimeExpiryGraceMinutes) * time.Minute)
	return now.After(deadline)
}

// windowValid reports whether the reseller's window currently permits
// enabled configs: either no window is set, or now falls inside it
// (honoring the expiry grace).
func windowValid(r *models.Reseller, policy settings.Policy, now time.Time) bool {
	if r == nil || r.Type == models.ResellerTypeWallet {
		return true
	}
	if r.WindowStartsAt != nil && now.Before(*r.WindowStartsAt) {
		return false
	}
	return !WindowExpired(r, policy, now)
}

// Evaluate runs one enforcement pass for a reseller, disabling active
// configs when a condition fires or re-enabling automatically disabled
// ones when no condition holds. Returns the number of configs disabled
// and re-enabled.
func (e *Engine) Evaluate(ctx context.Context, reseller *models.Reseller, policy settings.Policy, now time.Time) (int, int, error) {
	if e == nil || e.db == nil {
		return 0, 0, errors.New("enforce: engine not initialized")
	}
	if reseller == nil {
		return 0, 0, errors.New("enforce: nil reseller")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	reason := ""
	switch {
	case !policy.AllowConfigOverrun && QuotaExhausted(reseller, policy):
		reason = models.ReasonQuotaExhausted
	case WindowExpired(reseller, policy, now):
		reason = models.ReasonWindowExpired
	}

	if reason != "" {
		disabled, errDisable := e.disableActiveConfigs(ctx, reseller, reason)
		return disabled, 0, errDisable
	}

	if reseller.Status != models.ResellerStatusActive {
		return 0, 0, nil
	}
	if !windowValid(reseller, policy, now) {
		return 0, 0, nil
	}
	enabled, errEnable := e.reenableAutoDisabled(ctx, reseller)
	return 0, enabled, errEnable
}

// disableActiveConfigs disables every active config of the reseller and
// records an auto_disabled event carrying the triggering condition.
func (e *Engine) disableActiveConfigs(ctx context.Context, reseller *models.Reseller, reason string) (int, error) {
	var configs []models.ResellerConfig
	if errFind := e.db.WithContext(ctx).
		Where("reseller_id = ? AND status = ?", reseller.ID, models.ConfigStatusActive).
		Find(&configs).Error; errFind != nil {
		return 0, errFind
	}
	if len(configs) == 0 {
		return 0, nil
	}

	disabled := 0
	for i := range configs {
		cfg := &configs[i]
		if errUpdate := e.db.WithContext(ctx).
			Model(&models.ResellerConfig{}).
			Where("id = ? AND status = ?", cfg.ID, models.ConfigStatusActive).
			Update("status", models.ConfigStatusDisabled).Error; errUpdate != nil {
			log.WithError(errUpdate).Warnf("enforce: disable failed (config=%d)", cfg.ID)
			continue
		}
		if errEvent := e.recorder.ConfigEvent(ctx, cfg.ID, models.EventAutoDisabled, map[string]any{"reason": reason}); errEvent != nil {
			log.WithError(errEvent).Warnf("enforce: disable event failed (config=%d)", cfg.ID)
		}
		disabled++
	}
	log.Infof("enforce: disabled %d configs (reseller=%d reason=%s)", disabled, reseller.ID, reason)
	return disabled, nil
}

// reenableAutoDisabled re-enables configs whose most recent
// auto_disabled event was caused by quota exhaustion or window expiry.
// Manually disabled configs carry no such event and are never touched.
func (e *Engine) reenableAutoDisabled(ctx context.Context, reseller *models.Reseller) (int, error) {
	var configs []models.ResellerConfig
	if errFind := e.db.WithContext(ctx).
		Where("reseller_id = ? AND status = ?", reseller.ID, models.ConfigStatusDisabled).
		Find(&configs).Error; errFind != nil {
		return 0, errFind
	}
	if len(configs) == 0 {
		return 0, nil
	}

	latest, errEvents := e.latestAutoDisableReasons(ctx, configs)
	if errEvents != nil {
		return 0, errEvents
	}

	enabled := 0
	for i := range configs {
		cfg := &configs[i]
		reason, ok := latest[cfg.ID]
		if !ok {
			continue // Manual disable: stays disabled.
		}
		if reason != models.ReasonQuotaExhausted && reason != models.ReasonWindowExpired {
			continue
		}
		if errUpdate := e.db.WithContext(ctx).
			Model(&models.ResellerConfig{}).
			Where("id = ? AND status = ?", cfg.ID, models.ConfigStatusDisabled).
			Update("status", models.ConfigStatusActive).Error; errUpdate != nil {
			log.WithError(errUpdate).Warnf("enforce: re-enable failed (config=%d)", cfg.ID)
			continue
		}
		if errEvent := e.recorder.ConfigEvent(ctx, cfg.ID, models.EventAutoEnabled, map[string]any{"reason": reason}); errEvent != nil {
			log.WithError(errEvent).Warnf("enforce: re-enable event failed (config=%d)", cfg.ID)
		}
		enabled++
	}
	if enabled > 0 {
		log.Infof("enforce: re-enabled %d configs (reseller=%d)", enabled, reseller.ID)
	}
	return enabled, nil
}

// latestAutoDisableReasons bulk-loads the most recent auto_disabled
// event per config so re-enabling avoids one query per config.
func (e *Engine) latestAutoDisableReasons(ctx context.Context, configs []models.ResellerConfig) (map[uint64]string, error) {
	ids := make([]uint64, 0, len(configs))
	for i := range configs {
		ids = append(ids, configs[i].ID)
	}

	var events []models.ResellerConfigEvent
	if errFind := e.db.WithContext(ctx).
		Where("config_id IN ? AND type = ?", ids, models.EventAutoDisabled).
		Order("id DESC").
		Find(&events).Error; errFind != nil {
		return nil, errFind
	}

	latest := make(map[uint64]string, len(events))
	for i := range events {
		event := &events[i]
		if _, seen := latest[event.ConfigID]; seen {
			continue
		}
		latest[event.ConfigID] = eventReason(event)
	}
	return latest, nil
}

func eventReason(event *models.ResellerConfigEvent) string {
	if event == nil || len(event.Meta) == 0 {
		return ""
	}
	var meta struct {
		Reason string `json:"reason"`
	}
	if errUnmarshal := json.Unmarshal(event.Meta, &meta); errUnmarshal != nil {
		return ""
	}
	return meta.Reason
}
