// Package audit writes the append-only trail for every engine- or
// admin-initiated change affecting quotas. Entries are created and
// never mutated.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	dbutil "github.com/panelmesh/resellerd/internal/db"
	"github.com/panelmesh/resellerd/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recorder persists audit entries and config lifecycle events.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder constructs a Recorder backed by GORM.
func NewRecorder(db *gorm.DB) *Recorder { return &Recorder{db: db} }

// Entry describes one audit record.
type Entry struct {
	Action     string
	TargetType string
	TargetID   uint64
	Reason     string
	Meta       map[string]any
	ActorID    *uint64 // Nil for system actions.
}

// Record appends an audit entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit: recorder not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	meta, errMeta := marshalMeta(entry.Meta)
	if errMeta != nil {
		return errMeta
	}
	row := models.AuditLog{
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		Reason:     entry.Reason,
		Meta:       meta,
		ActorID:    entry.ActorID,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// ConfigEvent appends an immutable lifecycle event for a config.
func (r *Recorder) ConfigEvent(ctx context.Context, configID uint64, eventType string, meta map[string]any) error {
	if r == nil || r.db == nil {
		return errors.New("audit: recorder not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, errMeta := marshalMeta(meta)
	if errMeta != nil {
		return errMeta
	}
	row := models.ResellerConfigEvent{
		ConfigID: configID,
		Type:     eventType,
		Meta:     payload,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

// LogFilter narrows an audit log listing.
type LogFilter struct {
	Action     string
	TargetType string
	TargetID   uint64
	Search     string // Case-insensitive match against reason.
	Limit      int
	Offset     int
}

// ListLogs returns audit entries, newest first.
func (r *Recorder) ListLogs(ctx context.Context, filter LogFilter) ([]models.AuditLog, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("audit: recorder not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	query := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if action := strings.TrimSpace(filter.Action); action != "" {
		query = query.Where("action = ?", action)
	}
	if targetType := strings.TrimSpace(filter.TargetType); targetType != "" {
		query = query.Where("target_type = ?", targetType)
	}
	if filter.TargetID != 0 {
		query = query.Where("target_id = ?", filter.TargetID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := dbutil.NormalizeLikePattern(r.db, "%"+search+"%")
		query = query.Where(dbutil.CaseInsensitiveLikeExpr(r.db, "reason"), pattern)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var rows []models.AuditLog
	errFind := query.Order("id DESC").Limit(limit).Offset(filter.Offset).Find(&rows).Error
	return rows, errFind
}

// EventFilter narrows a config event listing.
type EventFilter struct {
	ConfigID uint64
	Type     string
	Reason   string // Matches meta reason field.
	Limit    int
	Offset   int
}

// ListConfigEvents returns config lifecycle events, newest first.
func (r *Recorder) ListConfigEvents(ctx context.Context, filter EventFilter) ([]models.ResellerConfigEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("audit: recorder not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	query := r.db.WithContext(ctx).Model(&models.ResellerConfigEvent{})
	if filter.ConfigID != 0 {
		query = query.Where("config_id = ?", filter.ConfigID)
	}
	if eventType := strings.TrimSpace(filter.Type); eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	if reason := strings.TrimSpace(filter.Reason); reason != "" {
		query = query.Where(dbutil.JSONExtractTextExpr(r.db, "meta", "reason")+" = ?", reason)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var rows []models.ResellerConfigEvent
	errFind := query.Order("id DESC").Limit(limit).Offset(filter.Offset).Find(&rows).Error
	return rows, errFind
}

func marshalMeta(meta map[string]any) (datatypes.JSON, error) {
	if len(meta) == 0 {
		return datatypes.JSON([]byte("{}")), nil
	}
	encoded, errMarshal := json.Marshal(meta)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(encoded), nil
}
