package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "symptomlog/internal/log"
	"symptomlog/internal/storage"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Database
	SQLiteDBPath string

	// TrustedProxies are CIDRs, beyond loopback and private ranges, whose
	// forwarding headers name the client
	TrustedProxies []string

	// Logging
	LogLevel string

	// Charts
	MovingAverageWindow int

	// Backups; an empty dir disables them
	BackupDir  string
	BackupTime string
	BackupKeep int
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8081"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/symptomlog.db"),

		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		MovingAverageWindow: getEnvInt("MOVING_AVERAGE_WINDOW", 7),

		BackupDir:  getEnv("BACKUP_DIR", ""),
		BackupTime: getEnv("BACKUP_TIME", "03:00"),
		BackupKeep: getEnvInt("BACKUP_KEEP", 14),
	}
}

// BackupsEnabled reports whether scheduled backups are configured.
func (c *Config) BackupsEnabled() bool {
	return c.BackupDir != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if storage.IsMemoryDSN(c.SQLiteDBPath) {
		errors = append(errors, fmt.Sprintf("invalid SQLite database path '%s': in-memory databases are not supported", c.SQLiteDBPath))
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

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR like 203.0.113.0/24", cidr))
		}
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.MovingAverageWindow < 1 {
		errors = append(errors, fmt.Sprintf("invalid moving average window %d: must be at least 1", c.MovingAverageWindow))
	} else if c.MovingAverageWindow > 365 {
		errors = append(errors, fmt.Sprintf("invalid moving average window %d: must be at most 365", c.MovingAverageWindow))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if c.BackupsEnabled() {
		if _, err := time.Parse("15:04", c.BackupTime); err != nil {
			errors = append(errors, fmt.Sprintf("invalid backup time '%s': must be HH:MM", c.BackupTime))
		}
		if c.BackupKeep < 0 {
			errors = append(errors, fmt.Sprintf("invalid backup keep %d: must be 0 (keep all) or more", c.BackupKeep))
		}
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

// getEnvList splits a comma-separated variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
