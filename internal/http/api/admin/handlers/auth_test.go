package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panelmesh/resellerd/internal/config"
	"github.com/panelmesh/resellerd/internal/models"
	"github.com/panelmesh/resellerd/internal/security"
	"gorm.io/gorm"
)

func seedAdmin(t *testing.T, conn *gorm.DB, username, password string, active bool) *models.Admin {
	t.Helper()
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	admin := &models.Admin{Username: username, Password: hash, Active: active}
	if err := conn.Create(admin).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	// The model's default:true tag makes GORM drop a zero-value Active on
	// insert, so persist the flag explicitly.
	if err := conn.Model(admin).Update("active", active).Error; err != nil {
		t.Fatalf("seed admin active: %v", err)
	}
	return admin
}

func postLogin(t *testing.T, handler *AuthHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/v0/admin/login", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Login(c)
	return w
}

func TestLoginIssuesToken(t *testing.T) {
	conn := setupHandlerDB(t)
	admin := seedAdmin(t, conn, "root", "hunter2", true)

	jwtCfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	handler := NewAuthHandler(conn, jwtCfg)

	w := postLogin(t, handler, `{"username":"root","password":"hunter2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var res struct {
		Token   string `json:"token"`
		AdminID uint64 `json:"admin_id"`
	}
	if errDecode := json.NewDecoder(w.Body).Decode(&res); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if res.AdminID != admin.ID {
		t.Fatalf("admin_id = %d, want %d", res.AdminID, admin.ID)
	}
	claims, errParse := security.ParseAdminToken(jwtCfg.Secret, res.Token)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if claims.Username != "root" {
		t.Fatalf("claims username = %q, want root", claims.Username)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	conn := setupHandlerDB(t)
	seedAdmin(t, conn, "root", "hunter2", true)

	handler := NewAuthHandler(conn, config.JWTConfig{Secret: "s", Expiry: time.Hour})
	w := postLogin(t, handler, `{"username":"root","password":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestLoginRejectsDisabledAdmin(t *testing.T) {
	conn := setupHandlerDB(t)
	seedAdmin(t, conn, "root", "hunter2", false)

	handler := NewAuthHandler(conn, config.JWTConfig{Secret: "s", Expiry: time.Hour})
	w := postLogin(t, handler, `{"username":"root","password":"hunter2"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}
