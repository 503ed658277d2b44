package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/panelmesh/resellerd/internal/models"
	"github.com/panelmesh/resellerd/internal/settings"
)

func putSettings(t *testing.T, handler *SettingsHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPut, "/v0/admin/settings", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Update(c)
	return w
}

func TestSettingsUpdatePersistsAndRefreshes(t *testing.T) {
	conn := setupHandlerDB(t)
	handler := NewSettingsHandler(conn)

	w := putSettings(t, handler, `{"USAGE_SYNC_INTERVAL_MINUTES": 3, "ALLOW_CONFIG_OVERRUN": true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var row models.Setting
	if err := conn.Where("key = ?", settings.UsageSyncIntervalMinutesKey).First(&row).Error; err != nil {
		t.Fatalf("load setting: %v", err)
	}
	if strings.TrimSpace(string(row.Value)) != "3" {
		t.Fatalf("stored value = %s, want 3", row.Value)
	}

	policy := settings.LoadPolicy()
	if policy.SyncIntervalMinutes != 3 {
		t.Fatalf("snapshot interval = %d, want 3", policy.SyncIntervalMinutes)
	}
	if !policy.AllowConfigOverrun {
		t.Fatal("snapshot overrun flag not refreshed")
	}

	var entry models.AuditLog
	if err := conn.Where("action = ?", models.AuditSettingsUpdated).First(&entry).Error; err != nil {
		t.Fatalf("load audit entry: %v", err)
	}

	// Reset the process-wide snapshot for other tests.
	settings.StoreDBConfig(settings.DBConfigUpdatedAt(), nil)
}

func TestSettingsUpdateRejectsUnknownKey(t *testing.T) {
	conn := setupHandlerDB(t)
	handler := NewSettingsHandler(conn)

	w := putSettings(t, handler, `{"NOT_A_SETTING": 1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var count int64
	if err := conn.Model(&models.Setting{}).Count(&count).Error; err != nil {
		t.Fatalf("count settings: %v", err)
	}
	if count != 0 {
		t.Fatalf("settings rows = %d, want 0", count)
	}
}

func TestSettingsGetListsEditableKeys(t *testing.T) {
	conn := setupHandlerDB(t)
	if errRefresh := settings.RefreshDBConfigSnapshot(context.Background(), conn); errRefresh != nil {
		t.Fatalf("refresh: %v", errRefresh)
	}
	handler := NewSettingsHandler(conn)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/v0/admin/settings", nil)
	handler.Get(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var res struct {
		Settings map[string]json.RawMessage `json:"settings"`
	}
	if errDecode := json.NewDecoder(w.Body).Decode(&res); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	for _, key := range settings.EditableKeys {
		if _, ok := res.Settings[key]; !ok {
			t.Fatalf("missing key %s in response", key)
		}
	}
}
