package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config contains all configuration for the application. Everything is
// loaded from UPEM_* environment variables with sensible defaults; only the
// UniFi Protect credentials are mandatory.
type Config struct {
	// UniFi Protect Configuration
	ProtectAddress  string
	ProtectUsername string
	ProtectPassword string

	// Event Defaults
	DefaultPastMinutes   int
	DefaultFutureMinutes int

	// Export Configuration
	ExportTimeout     time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	ExportConcurrency int
	DownloadsPath     string

	// Combiner Configuration
	MergeTolerance time.Duration
	KeepSplitFiles bool

	// Reporting Configuration
	LogInterval     time.Duration
	MonitorInterval time.Duration

	// Retention Configuration
	RetentionDays int // delete export folders older than this, 0 disables

	// Server Configuration
	ServerPort string

	// Database Configuration
	DatabasePath string

	// Serial Trigger Configuration
	SerialPort    string // empty disables the serial listener
	SerialBaud    int
	SerialCameras map[string]string // signal code -> camera name

	// R2 Storage Configuration
	R2Enabled   bool
	R2AccessKey string
	R2SecretKey string
	R2AccountID string
	R2Bucket    string
	R2Endpoint  string
	R2Region    string
	R2BaseURL   string

	// Timezone used for export time ranges and folder naming
	Timezone *time.Location
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	cfg := Config{
		ProtectAddress:  getEnv("UPEM_UNIFI_PROTECT_ADDRESS", ""),
		ProtectUsername: getEnv("UPEM_UNIFI_PROTECT_USERNAME", ""),
		ProtectPassword: getEnv("UPEM_UNIFI_PROTECT_PASSWORD", ""),

		DefaultPastMinutes:   getEnvInt("UPEM_DEFAULT_PAST_MINUTES", 5),
		DefaultFutureMinutes: getEnvInt("UPEM_DEFAULT_FUTURE_MINUTES", 5),

		ExportTimeout:     time.Duration(getEnvInt("UPEM_EXPORT_TIMEOUT", 300)) * time.Second,
		MaxRetries:        getEnvInt("UPEM_MAX_RETRIES", 3),
		RetryDelay:        time.Duration(getEnvInt("UPEM_RETRY_DELAY", 5)) * time.Second,
		ExportConcurrency: getEnvInt("UPEM_EXPORT_CONCURRENCY", 3),
		DownloadsPath:     getEnv("UPEM_DOWNLOADS_PATH", "./downloads"),

		MergeTolerance: time.Duration(getEnvInt("UPEM_MERGE_TOLERANCE_SECONDS", 1)) * time.Second,
		KeepSplitFiles: getEnvBool("UPEM_KEEP_SPLIT_FILES", true),

		LogInterval:     time.Duration(getEnvInt("UPEM_LOG_INTERVAL", 10)) * time.Second,
		MonitorInterval: time.Duration(getEnvInt("UPEM_MONITOR_INTERVAL", 60)) * time.Second,

		RetentionDays: getEnvInt("UPEM_RETENTION_DAYS", 30),

		ServerPort: getEnv("UPEM_SERVER_PORT", "8888"),

		DatabasePath: getEnv("UPEM_DATABASE_PATH", "./data/exports.db"),

		SerialPort: getEnv("UPEM_SERIAL_PORT", ""),
		SerialBaud: getEnvInt("UPEM_SERIAL_BAUD", 9600),

		R2Enabled:   getEnvBool("UPEM_R2_ENABLED", false),
		R2AccessKey: getEnv("UPEM_R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("UPEM_R2_SECRET_KEY", ""),
		R2AccountID: getEnv("UPEM_R2_ACCOUNT_ID", ""),
		R2Bucket:    getEnv("UPEM_R2_BUCKET", ""),
		R2Endpoint:  getEnv("UPEM_R2_ENDPOINT", ""),
		R2Region:    getEnv("UPEM_R2_REGION", "auto"),
		R2BaseURL:   getEnv("UPEM_R2_BASE_URL", ""),
	}

	// Timezone: honor TZ like the rest of the tooling does, default UTC
	tzName := getEnv("TZ", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Printf("Warning: invalid TZ %q, falling back to UTC: %v", tzName, err)
		loc = time.UTC
	}
	cfg.Timezone = loc

	// Serial signal -> camera mapping, JSON object in the environment
	camerasJSON := getEnv("UPEM_SERIAL_CAMERAS", "")
	if camerasJSON != "" {
		if err := json.Unmarshal([]byte(camerasJSON), &cfg.SerialCameras); err != nil {
			log.Printf("Warning: failed to parse UPEM_SERIAL_CAMERAS: %v", err)
		}
	}

	log.Printf("UPEM_UNIFI_PROTECT_ADDRESS: %s", cfg.ProtectAddress)
	log.Printf("UPEM_UNIFI_PROTECT_USERNAME: %s", cfg.ProtectUsername)
	log.Printf("UPEM_UNIFI_PROTECT_PASSWORD: %s", maskSecret(cfg.ProtectPassword))
	log.Printf("Defaults: past %d min, future %d min, timezone %s",
		cfg.DefaultPastMinutes, cfg.DefaultFutureMinutes, cfg.Timezone)
	log.Printf("Export: timeout %s, max retries %d, retry delay %s, concurrency %d",
		cfg.ExportTimeout, cfg.MaxRetries, cfg.RetryDelay, cfg.ExportConcurrency)
	log.Printf("Downloads path: %s", cfg.DownloadsPath)
	log.Printf("R2 storage enabled: %v", cfg.R2Enabled)

	return cfg
}

// CheckRequired verifies that the mandatory UniFi Protect credentials are
// present. The caller is expected to exit on error.
func (cfg Config) CheckRequired() error {
	var missing []string
	if cfg.ProtectAddress == "" {
		missing = append(missing, "UPEM_UNIFI_PROTECT_ADDRESS")
	}
	if cfg.ProtectUsername == "" {
		missing = append(missing, "UPEM_UNIFI_PROTECT_USERNAME")
	}
	if cfg.ProtectPassword == "" {
		missing = append(missing, "UPEM_UNIFI_PROTECT_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing environment variables: %v", missing)
	}
	return nil
}

// EnsurePaths creates the directories the application writes into.
func EnsurePaths(cfg Config) {
	if err := os.MkdirAll(cfg.DownloadsPath, 0755); err != nil {
		log.Printf("Failed to create downloads directory %s: %v", cfg.DownloadsPath, err)
	}
	dbDir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Printf("Failed to create database directory %s: %v", dbDir, err)
	}
}

// getEnv returns environment variable or fallback value
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns environment variable parsed as int or fallback value
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("Warning: invalid integer for %s: %q, using default %d", key, value, fallback)
	}
	return fallback
}

// getEnvBool returns environment variable parsed as bool or fallback value
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
		log.Printf("Warning: invalid boolean for %s: %q, using default %v", key, value, fallback)
	}
	return fallback
}

func maskSecret(s string) string {
	if s == "" {
		return "Not Set"
	}
	return "***"
}
