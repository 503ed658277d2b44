// Package reset implements the usage reset flow: remote counter resets
// are best-effort, while local settlement into the ledger is
// authoritative and atomic.
package reset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/panelmesh/resellerd/internal/aggregate"
	"github.com/panelmesh/resellerd/internal/audit"
	"github.com/panelmesh/resellerd/internal/ledger"
	"github.com/panelmesh/resellerd/internal/models"
	"github.com/panelmesh/resellerd/internal/panel"
	"github.com/panelmesh/resellerd/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrCooldown indicates a self-service reset was attempted before the
// cooldown window elapsed.
var ErrCooldown = errors.New("reset: cooldown active")

// AdapterResolver returns the panel adapter for a panel type.
type AdapterResolver func(panelType string) (panel.Adapter, error)

// Orchestrator coordinates remote resets with local settlement.
type Orchestrator struct {
	db       *gorm.DB
	recorder *audit.Recorder
	adapters AdapterResolver
}

// NewOrchestrator constructs a reset orchestrator. A nil resolver falls
// back to the built-in panel adapters.
func NewOrchestrator(db *gorm.DB, recorder *audit.Recorder, adapters AdapterResolver) *Orchestrator {
	if adapters == nil {
		adapters = panel.AdapterFor
	}
	return &Orchestrator{db: db, recorder: recorder, adapters: adapters}
}

// Result summarizes one reset run.
type Result struct {
	ConfigsSettled int
	RemoteFailures int
	OldTotal       int64
	NewTotal       int64
}

// Reset zeroes usage for every active config of a reseller. Remote
// resets that fail are logged and counted, never rolled back: the
// local ledger is authoritative for quota purposes, so settlement
// always completes and partial success is reported.
func (o *Orchestrator) Reset(ctx context.Context, resellerID uint64, actorID *uint64) (*Result, error) {
	if o == nil || o.db == nil {
		return nil, errors.New("reset: orchestrator not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var reseller models.Reseller
	if errFind := o.db.WithContext(ctx).First(&reseller, resellerID).Error; errFind != nil {
		return nil, fmt.Errorf("reset: load reseller: %w", errFind)
	}
	oldTotal := reseller.TrafficUsedBytes

	var configs []models.ResellerConfig
	if errFind := o.db.WithContext(ctx).
		Where("reseller_id = ? AND status = ?", resellerID, models.ConfigStatusActive).
		Find(&configs).Error; errFind != nil {
		return nil, errFind
	}

	panels, errPanels := o.loadPanels(ctx, configs)
	if errPanels != nil {
		return nil, errPanels
	}

	result := &Result{OldTotal: oldTotal}
	for i := range configs {
		if !o.resetRemote(ctx, &configs[i], panels) {
			result.RemoteFailures++
		}
	}

	now := time.Now().UTC()
	errTx := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range configs {
			cfg := &configs[i]
			if _, errSettle := o.settleConfig(tx, cfg, now); errSettle != nil {
				// Ledger invariant violations are fatal for the config,
				// not the batch.
				log.WithError(errSettle).Errorf("reset: settle failed (config=%d)", cfg.ID)
				continue
			}
			result.ConfigsSettled++
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	newTotal, errRecompute := aggregate.Recompute(ctx, o.db, resellerID)
	if errRecompute != nil {
		return nil, errRecompute
	}
	result.NewTotal = newTotal

	errAudit := o.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditResellerUsageResetCompleted,
		TargetType: models.AuditTargetReseller,
		TargetID:   resellerID,
		Meta: map[string]any{
			"old_total":       oldTotal,
			"new_total":       newTotal,
			"configs_settled": result.ConfigsSettled,
			"remote_failures": result.RemoteFailures,
		},
		ActorID: actorID,
	})
	if errAudit != nil {
		log.WithError(errAudit).Warnf("reset: audit entry failed (reseller=%d)", resellerID)
	}

	log.Infof("reset: reseller=%d settled=%d remote_failures=%d old=%d new=%d",
		resellerID, result.ConfigsSettled, result.RemoteFailures, oldTotal, newTotal)
	return result, nil
}

// ResetConfig zeroes usage for a single config. Self-service resets are
// rejected while the cooldown window from the last reset is active;
// admin resets bypass the cooldown.
func (o *Orchestrator) ResetConfig(ctx context.Context, configID uint64, policy settings.Policy, actorID *uint64, selfService bool) error {
	if o == nil || o.db == nil {
		return errors.New("reset: orchestrator not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var cfg models.ResellerConfig
	if errFind := o.db.WithContext(ctx).First(&cfg, configID).Error; errFind != nil {
		return fmt.Errorf("reset: load config: %w", errFind)
	}

	now := time.Now().UTC()
	if selfService && !ledger.CanResetUsage(&cfg, policy.ResetCooldown, now) {
		return ErrCooldown
	}

	panels, errPanels := o.loadPanels(ctx, []models.ResellerConfig{cfg})
	if errPanels != nil {
		return errPanels
	}
	remoteOK := o.resetRemote(ctx, &cfg, panels)

	errTx := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, errSettle := o.settleConfig(tx, &cfg, now)
		return errSettle
	})
	if errTx != nil {
		return errTx
	}

	if _, errRecompute := aggregate.Recompute(ctx, o.db, cfg.ResellerID); errRecompute != nil {
		return errRecompute
	}

	errAudit := o.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditConfigUsageReset,
		TargetType: models.AuditTargetConfig,
		TargetID:   cfg.ID,
		Meta:       map[string]any{"remote_ok": remoteOK, "self_service": selfService},
		ActorID:    actorID,
	})
	if errAudit != nil {
		log.WithError(errAudit).Warnf("reset: audit entry failed (config=%d)", cfg.ID)
	}
	return nil
}

// Forgive zeroes only the reseller's cached aggregate, leaving live and
// settled config usage intact. It grants goodwill credit and is a
// distinct explicit action, never part of a usage reset.
func (o *Orchestrator) Forgive(ctx context.Context, resellerID uint64, actorID *uint64) (int64, error) {
	if o == nil || o.db == nil {
		return 0, errors.New("reset: orchestrator not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var reseller models.Reseller
	if errFind := o.db.WithContext(ctx).First(&reseller, resellerID).Error; errFind != nil {
		return 0, fmt.Errorf("reset: load reseller: %w", errFind)
	}
	oldTotal := reseller.TrafficUsedBytes

	if errUpdate := o.db.WithContext(ctx).
		Model(&models.Reseller{}).
		Where("id = ?", resellerID).
		Update("traffic_used_bytes", 0).Error; errUpdate != nil {
		return 0, errUpdate
	}

	errAudit := o.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditResellerUsageForgiven,
		TargetType: models.AuditTargetReseller,
		TargetID:   resellerID,
		Reason:     "administrative forgiveness",
		Meta:       map[string]any{"old_total": oldTotal, "new_total": 0},
		ActorID:    actorID,
	})
	if errAudit != nil {
		log.WithError(errAudit).Warnf("reset: audit entry failed (reseller=%d)", resellerID)
	}
	return oldTotal, nil
}

// resetRemote attempts the remote counter reset. Returns false when the
// remote call could not be made or failed.
func (o *Orchestrator) resetRemote(ctx context.Context, cfg *models.ResellerConfig, panels map[uint64]models.Panel) bool {
	p, ok := panels[cfg.PanelID]
	if !ok {
		log.Warnf("reset: panel %d not found (config=%d)", cfg.PanelID, cfg.ID)
		return false
	}
	adapter, errAdapter := o.adapters(p.Type)
	if errAdapter != nil {
		log.WithError(errAdapter).Warnf("reset: no adapter (config=%d panel_type=%s)", cfg.ID, p.Type)
		return false
	}
	creds := panel.Credentials{BaseURL: p.BaseURL, APIKey: p.APIKey}
	if errReset := adapter.ResetUsage(ctx, creds, cfg.ExternalUserID); errReset != nil {
		log.WithError(errReset).Warnf("reset: remote reset failed (config=%d)", cfg.ID)
		return false
	}
	return true
}

// settleConfig folds live usage into the ledger and persists the config
// plus its usage_reset event within the given transaction.
func (o *Orchestrator) settleConfig(tx *gorm.DB, cfg *models.ResellerConfig, now time.Time) (int64, error) {
	before := cfg.UsageBytes
	folded, errSettle := ledger.Settle(cfg, now)
	if errSettle != nil {
		return 0, errSettle
	}

	if errUpdate := tx.Model(&models.ResellerConfig{}).
		Where("id = ?", cfg.ID).
		Updates(map[string]any{
			"usage_bytes": 0,
			"meta":        cfg.Meta,
		}).Error; errUpdate != nil {
		return 0, errUpdate
	}

	event := models.ResellerConfigEvent{
		ConfigID: cfg.ID,
		Type:     models.EventUsageReset,
		Meta:     mustJSON(map[string]any{"usage_before": before, "folded": folded, "settled_after": ledger.SettledUsage(cfg)}),
	}
	return folded, tx.Create(&event).Error
}

func mustJSON(meta map[string]any) datatypes.JSON {
	encoded, errMarshal := json.Marshal(meta)
	if errMarshal != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(encoded)
}

func (o *Orchestrator) loadPanels(ctx context.Context, configs []models.ResellerConfig) (map[uint64]models.Panel, error) {
	ids := make([]uint64, 0, len(configs))
	seen := map[uint64]struct{}{}
	for i := range configs {
		id := configs[i].PanelID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return map[uint64]models.Panel{}, nil
	}

	var rows []models.Panel
	if errFind := o.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	panels := make(map[uint64]models.Panel, len(rows))
	for _, row := range rows {
		panels[row.ID] = row
	}
	return panels, nil
}
