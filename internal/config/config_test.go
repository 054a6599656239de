package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Port:                "8081",
		ShutdownTimeout:     30 * time.Second,
		SQLiteDBPath:        "./test.db",
		LogLevel:            "info",
		MovingAverageWindow: 7,
		BackupTime:          "03:00",
		BackupKeep:          14,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "valid with backups",
			mutate:  func(c *Config) { c.BackupDir = "./backups"; c.BackupTime = "23:30" },
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range low",
			mutate:      func(c *Config) { c.Port = "0" },
			wantErr:     true,
			errorString: "invalid port 0: must be between 1 and 65535",
		},
		{
			name:        "invalid port - out of range high",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "missing database path",
			mutate:      func(c *Config) { c.SQLiteDBPath = "" },
			wantErr:     true,
			errorString: "SQLite database path cannot be empty",
		},
		{
			name:        "in-memory database path",
			mutate:      func(c *Config) { c.SQLiteDBPath = ":memory:" },
			wantErr:     true,
			errorString: "in-memory databases are not supported",
		},
		{
			name:    "valid trusted proxies",
			mutate:  func(c *Config) { c.TrustedProxies = []string{"203.0.113.0/24", "2001:db8::/32"} },
			wantErr: false,
		},
		{
			name:        "invalid trusted proxy",
			mutate:      func(c *Config) { c.TrustedProxies = []string{"203.0.113.7"} },
			wantErr:     true,
			errorString: "invalid trusted proxy '203.0.113.7'",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.LogLevel = "loud" },
			wantErr:     true,
			errorString: "invalid log level 'loud'",
		},
		{
			name:        "moving average window too small",
			mutate:      func(c *Config) { c.MovingAverageWindow = 0 },
			wantErr:     true,
			errorString: "invalid moving average window 0: must be at least 1",
		},
		{
			name:        "moving average window too large",
			mutate:      func(c *Config) { c.MovingAverageWindow = 400 },
			wantErr:     true,
			errorString: "invalid moving average window 400: must be at most 365",
		},
		{
			name:        "shutdown timeout too short",
			mutate:      func(c *Config) { c.ShutdownTimeout = 500 * time.Millisecond },
			wantErr:     true,
			errorString: "invalid shutdown timeout 500ms: must be at least 1 second",
		},
		{
			name:        "invalid backup time",
			mutate:      func(c *Config) { c.BackupDir = "./backups"; c.BackupTime = "25:00" },
			wantErr:     true,
			errorString: "invalid backup time '25:00': must be HH:MM",
		},
		{
			name:        "negative backup keep",
			mutate:      func(c *Config) { c.BackupDir = "./backups"; c.BackupKeep = -1 },
			wantErr:     true,
			errorString: "invalid backup keep -1",
		},
		{
			name:    "backup settings ignored when disabled",
			mutate:  func(c *Config) { c.BackupTime = "nonsense"; c.BackupKeep = -1 },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Config.Validate() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if tt.errorString != "" && !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("Config.Validate() error = %v, want error containing %v", err.Error(), tt.errorString)
				}
			} else if err != nil {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "abc"
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Config.Validate() error = nil, want error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "configuration validation failed:\n- ") {
		t.Errorf("unexpected error prefix: %q", msg)
	}
	if strings.Count(msg, "\n- ") != 2 {
		t.Errorf("want 2 problems listed, got %q", msg)
	}
}

func TestConfig_ValidateCreatesDatabaseDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	cfg := validConfig()
	cfg.SQLiteDBPath = filepath.Join(dir, "symptomlog.db")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Config.Validate() error = %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
}

func TestLoad(t *testing.T) {
	for _, key := range []string{
		"PORT", "SQLITE_DB_PATH", "LOG_LEVEL", "MOVING_AVERAGE_WINDOW",
		"BACKUP_DIR", "BACKUP_TIME", "BACKUP_KEEP", "SHUTDOWN_TIMEOUT", "TRUSTED_PROXIES",
	} {
		t.Setenv(key, "")
	}

	t.Run("default values", func(t *testing.T) {
		cfg := Load()

		if cfg.Port != "8081" {
			t.Errorf("Load() Port = %v, want 8081", cfg.Port)
		}
		if cfg.SQLiteDBPath != "./data/symptomlog.db" {
			t.Errorf("Load() SQLiteDBPath = %v, want ./data/symptomlog.db", cfg.SQLiteDBPath)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("Load() LogLevel = %v, want info", cfg.LogLevel)
		}
		if cfg.MovingAverageWindow != 7 {
			t.Errorf("Load() MovingAverageWindow = %v, want 7", cfg.MovingAverageWindow)
		}
		if cfg.BackupsEnabled() {
			t.Error("Load() backups enabled without BACKUP_DIR")
		}
		if cfg.BackupTime != "03:00" || cfg.BackupKeep != 14 {
			t.Errorf("Load() backup = %v/%v, want 03:00/14", cfg.BackupTime, cfg.BackupKeep)
		}
		if cfg.ShutdownTimeout != 30*time.Second {
			t.Errorf("Load() ShutdownTimeout = %v, want 30s", cfg.ShutdownTimeout)
		}
		if len(cfg.TrustedProxies) != 0 {
			t.Errorf("Load() TrustedProxies = %v, want none", cfg.TrustedProxies)
		}
	})

	t.Run("environment variables", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("SQLITE_DB_PATH", "/tmp/test.db")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("MOVING_AVERAGE_WINDOW", "14")
		t.Setenv("BACKUP_DIR", "/tmp/backups")
		t.Setenv("BACKUP_KEEP", "3")
		t.Setenv("SHUTDOWN_TIMEOUT", "5s")
		t.Setenv("TRUSTED_PROXIES", " 203.0.113.0/24, ,2001:db8::/32")

		cfg := Load()

		if cfg.Port != "9090" {
			t.Errorf("Load() Port = %v, want 9090", cfg.Port)
		}
		if cfg.SQLiteDBPath != "/tmp/test.db" {
			t.Errorf("Load() SQLiteDBPath = %v, want /tmp/test.db", cfg.SQLiteDBPath)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("Load() LogLevel = %v, want debug", cfg.LogLevel)
		}
		if cfg.MovingAverageWindow != 14 {
			t.Errorf("Load() MovingAverageWindow = %v, want 14", cfg.MovingAverageWindow)
		}
		if !cfg.BackupsEnabled() || cfg.BackupKeep != 3 {
			t.Errorf("Load() backups = %v/%v, want enabled/3", cfg.BackupDir, cfg.BackupKeep)
		}
		if cfg.ShutdownTimeout != 5*time.Second {
			t.Errorf("Load() ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
		}
		if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "203.0.113.0/24" || cfg.TrustedProxies[1] != "2001:db8::/32" {
			t.Errorf("Load() TrustedProxies = %v, want [203.0.113.0/24 2001:db8::/32]", cfg.TrustedProxies)
		}
	})

	t.Run("invalid environment variables use defaults", func(t *testing.T) {
		t.Setenv("MOVING_AVERAGE_WINDOW", "weekly")
		t.Setenv("SHUTDOWN_TIMEOUT", "soon")

		cfg := Load()

		if cfg.MovingAverageWindow != 7 {
			t.Errorf("Load() MovingAverageWindow = %v, want 7 (default for invalid input)", cfg.MovingAverageWindow)
		}
		if cfg.ShutdownTimeout != 30*time.Second {
			t.Errorf("Load() ShutdownTimeout = %v, want 30s (default for invalid input)", cfg.ShutdownTimeout)
		}
	})
}
