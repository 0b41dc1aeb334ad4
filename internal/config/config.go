package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	LogDir       string
	Debug        bool

	JWTSecret string
	TokenTTL  time.Duration

	// ReportDir is the root of the report object store; generated documents
	// live under ReportDir/reports.
	ReportDir    string
	ReportURLTTL time.Duration

	// NotifyURLs are shoutrrr service URLs that receive workflow events.
	NotifyURLs []string

	OverdueSweepSchedule string
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:          getEnv("NEXUS_ENV", "development"),
		HTTPPort:             getEnv("NEXUS_HTTP_PORT", "8080"),
		DatabasePath:         getEnv("NEXUS_DB_PATH", filepath.Join("data", "nexuscomply.db")),
		LogDir:               getEnv("NEXUS_LOG_DIR", filepath.Join("data", "logs")),
		Debug:                getEnvBool("NEXUS_DEBUG", false),
		JWTSecret:            getEnv("NEXUS_JWT_SECRET", "change-me-in-production"),
		ReportDir:            getEnv("NEXUS_REPORT_DIR", filepath.Join("data", "storage")),
		NotifyURLs:           splitList(getEnv("NEXUS_NOTIFY_URLS", "")),
		OverdueSweepSchedule: getEnv("NEXUS_OVERDUE_SCHEDULE", "@hourly"),
	}

	var err error
	if cfg.TokenTTL, err = getEnvDuration("NEXUS_TOKEN_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ReportURLTTL, err = getEnvDuration("NEXUS_REPORT_URL_TTL", time.Hour); err != nil {
		return Config{}, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(cfg.ReportDir, "reports"), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure report directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
