package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/panelmesh/resellerd/internal/audit"
	"gorm.io/gorm"
)

// AuditHandler serves the audit log and config event listings.
type AuditHandler struct {
	recorder *audit.Recorder
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{recorder: audit.NewRecorder(db)}
}

// auditLogsQuery defines filters for the audit log listing.
type auditLogsQuery struct {
	Action     string `form:"action"`      // Action identifier filter.
	TargetType string `form:"target_type"` // Target entity type filter.
	TargetID   uint64 `form:"target_id"`   // Target entity ID filter.
	Search     string `form:"search"`      // Case-insensitive reason search.
	Limit      int    `form:"limit,default=100"`
	Offset     int    `form:"offset"`
}

// ListLogs returns audit entries, newest first.
func (h *AuditHandler) ListLogs(c *gin.Context) {
	var q auditLogsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	rows, errList := h.recorder.ListLogs(c.Request.Context(), audit.LogFilter{
		Action:     q.Action,
		TargetType: q.TargetType,
		TargetID:   q.TargetID,
		Search:     q.Search,
		Limit:      q.Limit,
		Offset:     q.Offset,
	})
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": rows})
}

// configEventsQuery defines filters for the config event listing.
type configEventsQuery struct {
	ConfigID uint64 `form:"config_id"` // Config ID filter.
	Type     string `form:"type"`      // Event type filter.
	Reason   string `form:"reason"`    // Disable reason filter.
	Limit    int    `form:"limit,default=100"`
	Offset   int    `form:"offset"`
}

// ListConfigEvents returns config lifecycle events, newest first.
func (h *AuditHandler) ListConfigEvents(c *gin.Context) {
	var q configEventsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	rows, errList := h.recorder.ListConfigEvents(c.Request.Context(), audit.EventFilter{
		ConfigID: q.ConfigID,
		Type:     q.Type,
		Reason:   q.Reason,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if errList != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": rows})
}
