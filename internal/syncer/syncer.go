// Package syncer pulls live usage counters from provisioning panels and
// drives the aggregation and enforcement passes. It runs as a periodic
// batch job guarded by a fleet-wide lock.
package syncer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/panelmesh/resellerd/internal/aggregate"
	"github.com/panelmesh/resellerd/internal/enforce"
	"github.com/panelmesh/resellerd/internal/locks"
	"github.com/panelmesh/resellerd/internal/models"
	"github.com/panelmesh/resellerd/internal/panel"
	"github.com/panelmesh/resellerd/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxConcurrentResellers = 5

// AdapterResolver returns the panel adapter for a panel type.
type AdapterResolver func(panelType string) (panel.Adapter, error)

// Engine is the usage sync engine.
type Engine struct {
	db       *gorm.DB
	locks    locks.Manager
	adapters AdapterResolver
	enforcer *enforce.Engine
	lockTTL  time.Duration
}

// New constructs a sync engine. A nil resolver falls back to the
// built-in panel adapters.
func New(db *gorm.DB, lockManager locks.Manager, adapters AdapterResolver, enforcer *enforce.Engine) *Engine {
	if db == nil || lockManager == nil || enforcer == nil {
		return nil
	}
	if adapters == nil {
		adapters = panel.AdapterFor
	}
	return &Engine{
		db:       db,
		locks:    lockManager,
		adapters: adapters,
		enforcer: enforcer,
		lockTTL:  locks.DefaultTTL,
	}
}

// Start launches the scheduling loop in a background goroutine.
func (e *Engine) Start(ctx context.Context) {
	if e == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go e.run(ctx)
	log.Info("usage syncer started")
}

// run ticks on minute boundaries and dispatches when the current minute
// lands on the configured interval.
func (e *Engine) run(ctx context.Context) {
	for {
		now := time.Now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case tick := <-timer.C:
			policy := settings.LoadPolicy()
			if !ShouldDispatch(tick.Minute(), policy.SyncIntervalMinutes) {
				continue
			}
			if errDispatch := e.Dispatch(ctx, policy); errDispatch != nil {
				log.WithError(errDispatch).Warn("syncer: dispatch failed")
			}
		}
	}
}

// ShouldDispatch gates dispatch frequency: the job runs only when the
// current minute is a multiple of the interval.
func ShouldDispatch(minute, intervalMinutes int) bool {
	interval := settings.ClampSyncInterval(intervalMinutes)
	return minute%interval == 0
}

// Dispatch runs one full sync pass under the job lock. A held lock
// means another dispatch is in flight; the attempt no-ops rather than
// queueing or retrying.
func (e *Engine) Dispatch(ctx context.Context, policy settings.Policy) error {
	if e == nil {
		return errors.New("syncer: engine not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	acquired, errAcquire := e.locks.Acquire(ctx, locks.JobSyncUsage, e.lockTTL)
	if errAcquire != nil {
		return errAcquire
	}
	if !acquired {
		log.Debug("syncer: sync job already in flight, skipping")
		return nil
	}
	defer func() {
		if errRelease := e.locks.Release(ctx, locks.JobSyncUsage); errRelease != nil {
			log.WithError(errRelease).Warn("syncer: release lock failed")
		}
	}()

	return e.syncAll(ctx, policy)
}

// syncAll processes every active metered reseller. Resellers are
// independent units of work: they are synced concurrently and one
// reseller's failure never blocks another.
func (e *Engine) syncAll(ctx context.Context, policy settings.Policy) error {
	var resellers []models.Reseller
	if errFind := e.db.WithContext(ctx).
		Where("status = ? AND type IN ?", models.ResellerStatusActive,
			[]string{models.ResellerTypeTraffic, models.ResellerTypeWallet}).
		Find(&resellers).Error; errFind != nil {
		return errFind
	}
	if len(resellers) == 0 {
		return nil
	}

	panels, errPanels := e.loadActivePanels(ctx)
	if errPanels != nil {
		return errPanels
	}

	sem := make(chan struct{}, maxConcurrentResellers)
	var wg sync.WaitGroup
	for i := range resellers {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}

		wg.Add(1)
		reseller := resellers[i]
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			e.processReseller(ctx, &reseller, panels, policy)
		}()
	}
	wg.Wait()
	return nil
}

// processReseller runs the strict per-reseller ordering: usage fetches
// complete first, then the aggregate recompute, then enforcement.
func (e *Engine) processReseller(ctx context.Context, reseller *models.Reseller, panels map[uint64]models.Panel, policy settings.Policy) {
	if errSync := e.SyncReseller(ctx, reseller, panels); errSync != nil {
		log.WithError(errSync).Warnf("syncer: sync failed (reseller=%d)", reseller.ID)
		return
	}

	total, errRecompute := aggregate.Recompute(ctx, e.db, reseller.ID)
	if errRecompute != nil {
		log.WithError(errRecompute).Warnf("syncer: aggregate failed (reseller=%d)", reseller.ID)
		return
	}
	reseller.TrafficUsedBytes = total

	if _, _, errEnforce := e.enforcer.Evaluate(ctx, reseller, policy, time.Now().UTC()); errEnforce != nil {
		log.WithError(errEnforce).Warnf("syncer: enforcement failed (reseller=%d)", reseller.ID)
	}
}

// Refresh runs the full per-reseller pipeline out of band, keeping the
// same sync, aggregate, enforce ordering as the periodic pass. The
// aggregate is recomputed even when some fetches fail, so the cached
// total never lags behind counters that did update.
func (e *Engine) Refresh(ctx context.Context, resellerID uint64) error {
	if e == nil {
		return errors.New("syncer: engine not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var reseller models.Reseller
	if errFind := e.db.WithContext(ctx).First(&reseller, resellerID).Error; errFind != nil {
		return errFind
	}

	if errSync := e.SyncReseller(ctx, &reseller, nil); errSync != nil {
		return errSync
	}

	total, errRecompute := aggregate.Recompute(ctx, e.db, reseller.ID)
	if errRecompute != nil {
		return errRecompute
	}
	reseller.TrafficUsedBytes = total

	policy := settings.LoadPolicy()
	if _, _, errEnforce := e.enforcer.Evaluate(ctx, &reseller, policy, time.Now().UTC()); errEnforce != nil {
		return errEnforce
	}
	return nil
}

// SyncReseller refreshes the live usage counter of every non-deleted
// config on an active panel. A single config or panel failure is
// logged and skipped; it never aborts the batch.
func (e *Engine) SyncReseller(ctx context.Context, reseller *models.Reseller, panels map[uint64]models.Panel) error {
	if e == nil {
		return errors.New("syncer: engine not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if panels == nil {
		loaded, errPanels := e.loadActivePanels(ctx)
		if errPanels != nil {
			return errPanels
		}
		panels = loaded
	}

	var configs []models.ResellerConfig
	if errFind := e.db.WithContext(ctx).
		Where("reseller_id = ? AND status IN ?", reseller.ID,
			[]string{models.ConfigStatusActive, models.ConfigStatusDisabled}).
		Find(&configs).Error; errFind != nil {
		return errFind
	}

	for i := range configs {
		cfg := &configs[i]
		p, ok := panels[cfg.PanelID]
		if !ok {
			log.Warnf("syncer: panel %d inactive or missing, config excluded (config=%d)", cfg.PanelID, cfg.ID)
			continue
		}
		if strings.TrimSpace(p.BaseURL) == "" {
			log.Warnf("syncer: panel %d missing credentials, config excluded (config=%d)", p.ID, cfg.ID)
			continue
		}
		adapter, errAdapter := e.adapters(p.Type)
		if errAdapter != nil {
			log.WithError(errAdapter).Warnf("syncer: no adapter (config=%d panel_type=%s)", cfg.ID, p.Type)
			continue
		}

		usage, errFetch := adapter.FetchUsage(ctx, panel.Credentials{BaseURL: p.BaseURL, APIKey: p.APIKey}, cfg.ExternalUserID)
		if errFetch != nil {
			// Transient remote failure: leave the counter untouched and
			// retry next tick.
			log.WithError(errFetch).Warnf("syncer: fetch usage failed (config=%d)", cfg.ID)
			continue
		}
		if usage < 0 {
			log.Warnf("syncer: negative usage %d rejected (config=%d)", usage, cfg.ID)
			continue
		}

		if errUpdate := e.db.WithContext(ctx).
			Model(&models.ResellerConfig{}).
			Where("id = ?", cfg.ID).
			Update("usage_bytes", usage).Error; errUpdate != nil {
			log.WithError(errUpdate).Warnf("syncer: store usage failed (config=%d)", cfg.ID)
		}
	}
	return nil
}

func (e *Engine) loadActivePanels(ctx context.Context) (map[uint64]models.Panel, error) {
	var rows []models.Panel
	if errFind := e.db.WithContext(ctx).
		Where("status = ?", models.PanelStatusActive).
		Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	panels := make(map[uint64]models.Panel, len(rows))
	for _, row := range rows {
		panels[row.ID] = row
	}
	return panels, nil
}
