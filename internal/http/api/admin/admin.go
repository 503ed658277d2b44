// Package admin registers the management API surface.
package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/panelmesh/resellerd/internal/config"
	"github.com/panelmesh/resellerd/internal/http/api/admin/handlers"
	"github.com/panelmesh/resellerd/internal/models"
	"github.com/panelmesh/resellerd/internal/security"
	"github.com/panelmesh/resellerd/internal/syncer"
	"gorm.io/gorm"
)

// RegisterAdminRoutes mounts the admin API under /v0/admin.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, syncEngine *syncer.Engine) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Check)

	group := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	group.POST("/login", authHandler.Login)

	authed := group.Group("")
	authed.Use(adminAuthMiddleware(db, jwtCfg))

	resellerHandler := handlers.NewResellerHandler(db, syncEngine)
	authed.GET("/resellers/:id/stats", resellerHandler.Stats)
	authed.POST("/resellers/:id/reset", resellerHandler.Reset)
	authed.POST("/resellers/:id/forgive", resellerHandler.Forgive)
	authed.POST("/resellers/:id/sync", resellerHandler.Sync)
	authed.POST("/configs/:id/reset", resellerHandler.ResetConfig)

	auditHandler := handlers.NewAuditHandler(db)
	authed.GET("/audit-logs", auditHandler.ListLogs)
	authed.GET("/config-events", auditHandler.ListConfigEvents)

	settingsHandler := handlers.NewSettingsHandler(db)
	authed.GET("/settings", settingsHandler.Get)
	authed.PUT("/settings", settingsHandler.Update)
}

// adminAuthMiddleware validates admin JWTs and loads the admin ID into
// the request context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).
			Select("id", "active").
			First(&admin, claims.AdminID).Error; errFind != nil || !admin.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}

		c.Set("adminID", claims.AdminID)
		c.Next()
	}
}
