// Package config loads the process configuration file and wires the
// logging stack. Runtime-tunable policy lives in the settings table,
// not here; this file covers only what is needed before the database
// is reachable.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "config.yaml"

// defaultJWTExpiry applies when the config file omits jwt.expiry.
const defaultJWTExpiry = 24 * time.Hour

// AppConfig holds command-line level inputs.
type AppConfig struct {
	ConfigPath string // Path to the YAML config file.
}

// FileConfig is the on-disk YAML configuration.
type FileConfig struct {
	Listen      string      `yaml:"listen"`       // HTTP listen address, e.g. ":8318".
	DatabaseDSN string      `yaml:"database-dsn"` // Postgres DSN or sqlite path.
	Redis       RedisConfig `yaml:"redis"`        // Optional; empty addr falls back to in-process locks.
	JWT         JWTYAML     `yaml:"jwt"`
	Log         LogConfig   `yaml:"log"`
}

// RedisConfig configures the shared lock backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTYAML is the raw jwt section of the config file.
type JWTYAML struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"` // Go duration string, e.g. "24h".
}

// JWTConfig is the parsed admin token configuration.
type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

// LogConfig configures process logging.
type LogConfig struct {
	Level      string `yaml:"level"` // debug, info, warn or error.
	File       string `yaml:"file"`  // Empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// ResolveConfigPath returns the path to use, defaulting relative to the
// working directory.
func ResolveConfigPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultConfigPath
	}
	if abs, errAbs := filepath.Abs(path); errAbs == nil {
		return abs
	}
	return path
}

// Load reads and parses the config file.
func Load(path string) (*FileConfig, error) {
	raw, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("read config %s: %w", path, errRead)
	}
	var cfg FileConfig
	if errParse := yaml.Unmarshal(raw, &cfg); errParse != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, errParse)
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8318"
	}
	return &cfg, nil
}

// LoadDatabaseDSN returns the database DSN from the config file.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, errLoad := Load(path)
	if errLoad != nil {
		return "", errLoad
	}
	dsn := strings.TrimSpace(cfg.DatabaseDSN)
	if dsn == "" {
		return "", fmt.Errorf("config %s: database-dsn is required", path)
	}
	return dsn, nil
}

// LoadJWTConfig returns the parsed admin token configuration.
func LoadJWTConfig(path string) (JWTConfig, error) {
	cfg, errLoad := Load(path)
	if errLoad != nil {
		return JWTConfig{}, errLoad
	}
	return cfg.JWT.Parse()
}

// Parse validates the raw jwt section.
func (j JWTYAML) Parse() (JWTConfig, error) {
	out := JWTConfig{Secret: strings.TrimSpace(j.Secret), Expiry: defaultJWTExpiry}
	if out.Secret == "" {
		return JWTConfig{}, fmt.Errorf("config: jwt.secret is required")
	}
	if expiry := strings.TrimSpace(j.Expiry); expiry != "" {
		parsed, errParse := time.ParseDuration(expiry)
		if errParse != nil || parsed <= 0 {
			return JWTConfig{}, fmt.Errorf("config: invalid jwt.expiry %q", j.Expiry)
		}
		out.Expiry = parsed
	}
	return out, nil
}

// SetupLogging applies the log section: level plus optional rotating
// file output alongside stderr.
func SetupLogging(cfg LogConfig) {
	level, errLevel := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if errLevel != nil || cfg.Level == "" {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if strings.TrimSpace(cfg.File) == "" {
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSizeMB, 100),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
