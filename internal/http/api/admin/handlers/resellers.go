package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/panelmesh/resellerd/internal/audit"
	"github.com/panelmesh/resellerd/internal/reset"
	"github.com/panelmesh/resellerd/internal/settings"
	"github.com/panelmesh/resellerd/internal/stats"
	"github.com/panelmesh/resellerd/internal/syncer"
	"gorm.io/gorm"
)

// ResellerHandler serves reseller stats and usage actions.
type ResellerHandler struct {
	db         *gorm.DB
	resets     *reset.Orchestrator
	syncEngine *syncer.Engine
}

// NewResellerHandler constructs a ResellerHandler.
func NewResellerHandler(db *gorm.DB, syncEngine *syncer.Engine) *ResellerHandler {
	return &ResellerHandler{
		db:         db,
		resets:     reset.NewOrchestrator(db, audit.NewRecorder(db), nil),
		syncEngine: syncEngine,
	}
}

// Stats returns the dashboard read model for one reseller.
func (h *ResellerHandler) Stats(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	view, errStats := stats.ForReseller(c.Request.Context(), h.db, id)
	if errStats != nil {
		if errors.Is(errStats, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "reseller not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats query failed"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// Reset settles usage on every config of the reseller and zeroes the
// live counters.
func (h *ResellerHandler) Reset(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	result, errReset := h.resets.Reset(c.Request.Context(), id, actorID(c))
	if errReset != nil {
		if errors.Is(errReset, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "reseller not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"configs_settled": result.ConfigsSettled,
		"remote_failures": result.RemoteFailures,
		"old_total_bytes": result.OldTotal,
		"new_total_bytes": result.NewTotal,
	})
}

// Forgive zeroes the reseller aggregate without touching config
// counters or the settlement ledger.
func (h *ResellerHandler) Forgive(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	oldTotal, errForgive := h.resets.Forgive(c.Request.Context(), id, actorID(c))
	if errForgive != nil {
		if errors.Is(errForgive, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "reseller not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "forgive failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"old_total_bytes": oldTotal, "new_total_bytes": 0})
}

// Sync triggers an out-of-band usage refresh for one reseller. The
// refresh runs the same pipeline as the periodic pass, so the cached
// aggregate and enforcement state are current when it returns.
func (h *ResellerHandler) Sync(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if h.syncEngine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync engine unavailable"})
		return
	}

	if errRefresh := h.syncEngine.Refresh(c.Request.Context(), id); errRefresh != nil {
		if errors.Is(errRefresh, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "reseller not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "sync failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ResetConfig settles one config, honoring the admin bypass of the
// self-service cooldown.
func (h *ResellerHandler) ResetConfig(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	policy := settings.LoadPolicy()
	errReset := h.resets.ResetConfig(c.Request.Context(), id, policy, actorID(c), false)
	if errReset != nil {
		switch {
		case errors.Is(errReset, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "config not found"})
		case errors.Is(errReset, reset.ErrCooldown):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "reset cooldown active"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reset failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// pathID parses the :id path parameter, responding on error.
func pathID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// actorID reads the authenticated admin ID set by the auth middleware.
func actorID(c *gin.Context) *uint64 {
	value, exists := c.Get("adminID")
	if !exists {
		return nil
	}
	id, ok := value.(uint64)
	if !ok {
		return nil
	}
	return &id
}
