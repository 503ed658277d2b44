package admin

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/panelmesh/resellerd/internal/config"
	"github.com/panelmesh/resellerd/internal/db"
	"github.com/panelmesh/resellerd/internal/models"
	"github.com/panelmesh/resellerd/internal/security"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB, config.JWTConfig) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:admin_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	jwtCfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	router := gin.New()
	RegisterAdminRoutes(router, conn, jwtCfg, nil)
	return router, conn, jwtCfg
}

func adminToken(t *testing.T, conn *gorm.DB, jwtCfg config.JWTConfig) string {
	t.Helper()
	admin := &models.Admin{Username: "root", Password: "x", Active: true}
	if err := conn.Create(admin).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	token, errToken := security.GenerateAdminToken(jwtCfg.Secret, admin.ID, admin.Username, jwtCfg.Expiry)
	if errToken != nil {
		t.Fatalf("token: %v", errToken)
	}
	return token
}

func TestHealthzIsPublic(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestAuthedRoutesRequireToken(t *testing.T) {
	router, _, _ := setupRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v0/admin/audit-logs", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v0/admin/audit-logs", nil)
	req.Header.Set("Authorization", "Basic abc")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for non-bearer auth", w.Code)
	}
}

func TestAuthedRouteWithValidToken(t *testing.T) {
	router, conn, jwtCfg := setupRouter(t)
	token := adminToken(t, conn, jwtCfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v0/admin/audit-logs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestTokenForDeletedAdminRejected(t *testing.T) {
	router, conn, jwtCfg := setupRouter(t)
	token := adminToken(t, conn, jwtCfg)
	if err := conn.Where("username = ?", "root").Delete(&models.Admin{}).Error; err != nil {
		t.Fatalf("delete admin: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v0/admin/audit-logs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
