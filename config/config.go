// Package config loads process configuration from the environment,
// optionally seeded by a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/generic"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Biometric  BiometricConfig
	Attendance AttendanceConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Port        int
	Env         string
	LogLevel    string
	CORSOrigins []string
}

type DatabaseConfig struct {
	Driver string // sqlite | postgres
	Path   string // sqlite file, ":memory:" allowed
	URL    string // postgres DSN
}

type BiometricConfig struct {
	URL          string
	Token        string
	AuthScheme   string
	Timeout      time.Duration
	SyncInterval time.Duration // 0 disables the scheduler
}

type AttendanceConfig struct {
	WeeklyOff          generic.WeeklyOff
	OvertimeMultiplier decimal.Decimal
}

// Load reads .env files (if present) and then the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	config := &Config{}

	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}
	config.App = AppConfig{
		Port:        appPort,
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"*"}),
	}

	config.Database = DatabaseConfig{
		Driver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		Path:   getEnv("DB_PATH", "attendance.db"),
		URL:    getEnv("DATABASE_URL", ""),
	}

	timeout, err := time.ParseDuration(getEnv("BIOMETRIC_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BIOMETRIC_TIMEOUT: %w", err)
	}
	interval, err := time.ParseDuration(getEnv("BIOMETRIC_SYNC_INTERVAL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BIOMETRIC_SYNC_INTERVAL: %w", err)
	}
	config.Biometric = BiometricConfig{
		URL:          getEnv("BIOMETRIC_API_URL", ""),
		Token:        getEnv("BIOMETRIC_API_TOKEN", ""),
		AuthScheme:   getEnv("BIOMETRIC_AUTH_SCHEME", "Basic"),
		Timeout:      timeout,
		SyncInterval: interval,
	}

	weeklyOff, err := generic.ParseWeekday(getEnv("WEEKLY_OFF_DAY", "sunday"))
	if err != nil {
		return nil, fmt.Errorf("invalid WEEKLY_OFF_DAY: %w", err)
	}
	multiplier, err := decimal.NewFromString(getEnv("OT_MULTIPLIER", "1.5"))
	if err != nil {
		return nil, fmt.Errorf("invalid OT_MULTIPLIER: %w", err)
	}
	config.Attendance = AttendanceConfig{
		WeeklyOff:          generic.WeeklyOff(weeklyOff),
		OvertimeMultiplier: multiplier,
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Biometric.SyncInterval > 0 && c.Biometric.URL == "" {
		return fmt.Errorf("BIOMETRIC_API_URL is required when BIOMETRIC_SYNC_INTERVAL is set")
	}
	if !c.Attendance.OvertimeMultiplier.IsPositive() {
		return fmt.Errorf("OT_MULTIPLIER must be positive")
	}
	return nil
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// SlogLevel maps LOG_LEVEL onto slog levels, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
