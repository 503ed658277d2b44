package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsListen(t *testing.T) {
	path := writeConfig(t, "database-dsn: app.db\njwt:\n  secret: s\n")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Listen != ":8318" {
		t.Fatalf("listen = %q, want :8318", cfg.Listen)
	}
	if cfg.DatabaseDSN != "app.db" {
		t.Fatalf("dsn = %q, want app.db", cfg.DatabaseDSN)
	}
}

func TestLoadDatabaseDSNRequired(t *testing.T) {
	path := writeConfig(t, "listen: :9000\n")
	if _, err := LoadDatabaseDSN(path); err == nil {
		t.Fatal("expected error for missing database-dsn")
	}
}

func TestJWTParse(t *testing.T) {
	cfg, errParse := JWTYAML{Secret: "s", Expiry: "2h"}.Parse()
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if cfg.Expiry != 2*time.Hour {
		t.Fatalf("expiry = %v, want 2h", cfg.Expiry)
	}

	cfg, errParse = JWTYAML{Secret: "s"}.Parse()
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if cfg.Expiry != 24*time.Hour {
		t.Fatalf("default expiry = %v, want 24h", cfg.Expiry)
	}

	if _, errParse = (JWTYAML{Secret: ""}).Parse(); errParse == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, errParse = (JWTYAML{Secret: "s", Expiry: "soon"}).Parse(); errParse == nil {
		t.Fatal("expected error for malformed expiry")
	}
}
