package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the draft publisher.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// Browser settings
	Headless   bool
	ProfileDir string
	WindowSize string

	// Target URLs
	HomeURL    string
	ComposeURL string
	LoginURL   string

	// Timeouts (seconds)
	StageTimeoutSec   int
	UploadTimeoutSec  int
	WatchdogSec       int
	PerImageAllowance int
	LoginMarginSec    int
	UploadTimeoutCeil int

	// Retry behavior
	MaxRetries int

	// Artifact directories
	FailureDir     string
	EditorDebugDir string
	AttemptLogDir  string

	// Selector catalog override (optional YAML file)
	SelectorFile string

	// API server
	BindAddr string

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:        getEnvOrDefault("CHROMIUM_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:           getEnvIntOrDefault("CHROMIUM_CDP_PORT", 9230),
		Headless:          getEnvBoolOrDefault("PUBLISHER_HEADLESS", true),
		ProfileDir:        getEnvOrDefault("PUBLISHER_PROFILE_DIR", "./publisher_profile"),
		WindowSize:        getEnvOrDefault("PUBLISHER_WINDOW_SIZE", "1920,1080"),
		HomeURL:           getEnvOrDefault("PUBLISHER_HOME_URL", "https://blog.naver.com"),
		ComposeURL:        getEnvOrDefault("PUBLISHER_COMPOSE_URL", "https://blog.naver.com/GoBlogWrite.naver"),
		LoginURL:          getEnvOrDefault("PUBLISHER_LOGIN_URL", "https://nid.naver.com/nidlogin.login"),
		StageTimeoutSec:   getEnvIntOrDefault("PUBLISHER_STAGE_TIMEOUT_SEC", 30),
		UploadTimeoutSec:  getEnvIntOrDefault("PUBLISHER_UPLOAD_TIMEOUT_SEC", 180),
		WatchdogSec:       getEnvIntOrDefault("PUBLISHER_WATCHDOG_SEC", 540),
		PerImageAllowance: getEnvIntOrDefault("PUBLISHER_PER_IMAGE_SEC", 25),
		LoginMarginSec:    getEnvIntOrDefault("PUBLISHER_LOGIN_MARGIN_SEC", 45),
		UploadTimeoutCeil: getEnvIntOrDefault("PUBLISHER_UPLOAD_TIMEOUT_CEIL_SEC", 600),
		MaxRetries:        getEnvIntOrDefault("PUBLISHER_MAX_RETRIES", 3),
		FailureDir:        getEnvOrDefault("PUBLISHER_FAILURE_DIR", "./failures"),
		EditorDebugDir:    getEnvOrDefault("PUBLISHER_EDITOR_DEBUG_DIR", "./editor_debug"),
		AttemptLogDir:     getEnvOrDefault("PUBLISHER_ATTEMPT_LOG_DIR", "./attempt_log"),
		SelectorFile:      getEnvOrDefault("PUBLISHER_SELECTOR_FILE", ""),
		BindAddr:          getEnvOrDefault("PUBLISHER_BIND_ADDR", "127.0.0.1:8791"),
		LogLevel:          getEnvOrDefault("PUBLISHER_LOG_LEVEL", "info"),
		LogFile:           getEnvOrDefault("PUBLISHER_LOG_FILE", "logs/publisher.log"),
	}

	if cfg.WatchdogSec >= cfg.UploadTimeoutCeil+cfg.LoginMarginSec {
		// The internal watchdog must fire before any outer supervisor timeout.
		slog.Warn("watchdog exceeds upload ceiling plus margin, clamping",
			"watchdog_sec", cfg.WatchdogSec)
		cfg.WatchdogSec = cfg.UploadTimeoutCeil + cfg.LoginMarginSec - 1
	}

	return cfg, nil
}

// CDPURL returns the full CDP HTTP endpoint for the local browser.
func (c *Config) CDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

// QuarantineDir returns the path a CAPTCHA-flagged profile is moved to.
func (c *Config) QuarantineDir() string {
	return filepath.Clean(c.ProfileDir) + ".quarantine"
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
