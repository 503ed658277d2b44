package handlers

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/panelmesh/resellerd/internal/audit"
	"github.com/panelmesh/resellerd/internal/models"
	"github.com/panelmesh/resellerd/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsHandler serves the runtime policy settings.
type SettingsHandler struct {
	db       *gorm.DB
	recorder *audit.Recorder
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db, recorder: audit.NewRecorder(db)}
}

// Get returns the editable settings with their current values. Keys
// never written fall back to engine defaults at read time and are
// reported as null here.
func (h *SettingsHandler) Get(c *gin.Context) {
	out := make(map[string]json.RawMessage, len(settings.EditableKeys))
	for _, key := range settings.EditableKeys {
		if value, ok := settings.DBConfigValue(key); ok {
			out[key] = value
		} else {
			out[key] = nil
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"settings":   out,
		"updated_at": settings.DBConfigUpdatedAt(),
	})
}

// Update upserts a subset of the editable settings and refreshes the
// in-memory snapshot.
func (h *SettingsHandler) Update(c *gin.Context) {
	var body map[string]json.RawMessage
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no settings provided"})
		return
	}

	editable := make(map[string]bool, len(settings.EditableKeys))
	for _, key := range settings.EditableKeys {
		editable[key] = true
	}
	for key := range body {
		if !editable[key] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown setting: " + key})
			return
		}
		if !json.Valid(body[key]) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid value for " + key})
			return
		}
	}

	ctx := c.Request.Context()
	changed := make([]string, 0, len(body))
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, value := range body {
			row := models.Setting{Key: key, Value: json.RawMessage(value)}
			if errSave := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&row).Error; errSave != nil {
				return errSave
			}
			changed = append(changed, key)
		}
		return nil
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings update failed"})
		return
	}

	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, h.db); errRefresh != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings refresh failed"})
		return
	}

	sort.Strings(changed)
	_ = h.recorder.Record(ctx, audit.Entry{
		Action:     models.AuditSettingsUpdated,
		TargetType: models.AuditTargetSetting,
		Reason:     "admin settings update",
		Meta:       map[string]any{"keys": changed},
		ActorID:    actorID(c),
	})

	c.JSON(http.StatusOK, gin.H{"updated": changed})
}
