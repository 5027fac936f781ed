package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Transaction source
	SourceType     string
	BackendURL     string
	BackendTxPath  string
	BackendTimeout time.Duration
	SourceFile     string

	// Key-value store
	StoreBackend string
	SQLiteDBPath string

	// AMQP change notifications; disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string // empty: private per-instance queue

	// Refresh
	ReloadDebounce  time.Duration
	RefreshInterval time.Duration
	ChecksumMode    string

	// Per-scope aggregate cache
	ScopeCacheSize int
	ScopeCacheTTL  time.Duration

	LogLevel string
}

var (
	validSourceTypes   = []string{"http", "file"}
	validStoreBackends = []string{"sqlite", "memory"}
	validChecksumModes = []string{"fast", "strict"}
	validLogLevels     = []string{"debug", "info", "warn", "warning", "error"}
)

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		SourceType:     strings.ToLower(getEnv("SOURCE_TYPE", "http")),
		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8000"),
		BackendTxPath:  getEnv("BACKEND_TX_PATH", "$.data"),
		BackendTimeout: getEnvDuration("BACKEND_TIMEOUT", 15*time.Second),
		SourceFile:     getEnv("SOURCE_FILE", "./data/snapshot.yaml"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/sahayak.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "sahayak.changes"),
		AMQPQueue:    getEnv("AMQP_QUEUE", ""),

		ReloadDebounce:  getEnvDuration("RELOAD_DEBOUNCE", 2*time.Second),
		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 0),
		ChecksumMode:    strings.ToLower(getEnv("CHECKSUM_MODE", "fast")),

		ScopeCacheSize: getEnvInt("SCOPE_CACHE_SIZE", 128),
		ScopeCacheTTL:  getEnvDuration("SCOPE_CACHE_TTL", 5*time.Minute),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validSourceTypes, c.SourceType) {
		errors = append(errors, fmt.Sprintf("invalid source type '%s': must be one of %v", c.SourceType, validSourceTypes))
	}

	switch c.SourceType {
	case "http":
		if c.BackendURL == "" {
			errors = append(errors, "backend URL cannot be empty when using http source")
		} else if u, err := url.Parse(c.BackendURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid backend URL '%s': %v", c.BackendURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid backend URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
		if !strings.HasPrefix(c.BackendTxPath, "$") {
			errors = append(errors, fmt.Sprintf("invalid transaction path '%s': must be a JSONPath starting with '$'", c.BackendTxPath))
		}
		if c.BackendTimeout < time.Second || c.BackendTimeout > 5*time.Minute {
			errors = append(errors, fmt.Sprintf("invalid backend timeout %v: must be between 1s and 5m", c.BackendTimeout))
		}
	case "file":
		if c.SourceFile == "" {
			errors = append(errors, "source file cannot be empty when using file source")
		}
	}

	if !slices.Contains(validStoreBackends, c.StoreBackend) {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validStoreBackends))
	}

	if c.StoreBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite store")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ReloadDebounce < 0 || c.ReloadDebounce > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid reload debounce %v: must be between 0 and 1m", c.ReloadDebounce))
	}
	if c.RefreshInterval != 0 && c.RefreshInterval < 10*time.Second {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be 0 or at least 10s", c.RefreshInterval))
	}

	if !slices.Contains(validChecksumModes, c.ChecksumMode) {
		errors = append(errors, fmt.Sprintf("invalid checksum mode '%s': must be one of %v", c.ChecksumMode, validChecksumModes))
	}

	if c.ScopeCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid scope cache size %d: must be at least 1", c.ScopeCacheSize))
	}
	if c.ScopeCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid scope cache TTL %v: must be at least 1 second", c.ScopeCacheTTL))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
