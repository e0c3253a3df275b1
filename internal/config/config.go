// Package config loads stagesync settings from defaults, an optional YAML or
// TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/lotusstage/stagesync/internal/logging"
)

// EnvPrefix prefixes every environment variable, e.g. STAGESYNC_DATABASE_URL.
const EnvPrefix = "STAGESYNC"

// ErrNoAdminToken is returned by ValidateServer when admin auth is required
// but no token is configured.
var ErrNoAdminToken = errors.New("auth.admin_token is required when auth.require_token is true")

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DatabaseConfig selects the event store.
type DatabaseConfig struct {
	// URL is a SQLite file path, a libsql:// URL or a postgres:// URL.
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// SheetConfig describes where schedule rows come from.
type SheetConfig struct {
	// Source is "google" or "file".
	Source string `mapstructure:"source"`
	ID     string `mapstructure:"id"`
	Range  string `mapstructure:"range"`
	// Year of the sheet's dates; 0 means the current year.
	Year int    `mapstructure:"year"`
	File string `mapstructure:"file"`
	// Watch re-runs the preview when File changes. Only used by serve.
	Watch               bool   `mapstructure:"watch"`
	CredentialsFile     string `mapstructure:"credentials_file"`
	CredentialsJSON     string `mapstructure:"credentials_json"`
	ServiceAccountEmail string `mapstructure:"service_account_email"`
}

// AuthConfig guards the admin API.
type AuthConfig struct {
	RequireToken bool   `mapstructure:"require_token"`
	AdminToken   string `mapstructure:"admin_token"`
}

// DashboardConfig toggles the admin websocket feed.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Config is the top-level configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `mapstructure:"listen"`
	// Timezone is the IANA zone the schedule is written in.
	Timezone  string          `mapstructure:"timezone"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Sheet     SheetConfig     `mapstructure:"sheet"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`

	loc *time.Location
}

var defaults = map[string]any{
	"listen":                      "127.0.0.1:8080",
	"timezone":                    "Asia/Ho_Chi_Minh",
	"log.level":                   "info",
	"log.format":                  "json",
	"log.file":                    "",
	"log.max_size_mb":             50,
	"log.max_backups":             5,
	"log.max_age_days":            28,
	"database.url":                "data/stagesync.db",
	"database.auth_token":         "",
	"sheet.source":                "google",
	"sheet.id":                    "",
	"sheet.range":                 "Schedule!A:C",
	"sheet.year":                  0,
	"sheet.file":                  "",
	"sheet.watch":                 false,
	"sheet.credentials_file":      "",
	"sheet.credentials_json":      "",
	"sheet.service_account_email": "",
	"auth.require_token":          true,
	"auth.admin_token":            "",
	"dashboard.enabled":           true,
}

// Variable names used by existing deployments.
var envAliases = map[string]string{
	"sheet.id":                    "GOOGLE_SHEET_ID",
	"sheet.range":                 "GOOGLE_SHEET_RANGE",
	"sheet.credentials_file":      "GOOGLE_SHEETS_SERVICE_ACCOUNT_KEY_PATH",
	"sheet.credentials_json":      "GOOGLE_SHEETS_SERVICE_ACCOUNT_KEY",
	"sheet.service_account_email": "GOOGLE_SHEETS_SERVICE_ACCOUNT_EMAIL",
}

// Loader reads configuration and can watch the config file for changes.
type Loader struct {
	v    *viper.Viper
	path string

	mu sync.Mutex
}

// NewLoader prepares a loader. path may be empty to use only defaults and
// the environment.
func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, alias); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", alias, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return &Loader{v: v, path: path}, nil
}

// Load decodes and validates the current configuration.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch re-reads the config file whenever it changes and hands the result
// to fn. A file that fails to decode or validate is passed as err; the
// previous configuration stays in effect for the caller to keep. Watch is
// a no-op without a config file.
func (l *Loader) Watch(fn func(ev fsnotify.Event, cfg *Config, err error)) {
	if l.path == "" {
		return
	}
	l.v.OnConfigChange(func(ev fsnotify.Event) {
		cfg, err := l.Load()
		fn(ev, cfg, err)
	})
	l.v.WatchConfig()
}

// Load is a shortcut for NewLoader(path) followed by Load.
func Load(path string) (*Config, error) {
	l, err := NewLoader(path)
	if err != nil {
		return nil, err
	}
	return l.Load()
}

// Normalize trims values and fills zero values that have a safe default.
func (c *Config) Normalize() {
	c.Listen = strings.TrimSpace(c.Listen)
	c.Timezone = strings.TrimSpace(c.Timezone)
	if c.Timezone == "" {
		c.Timezone = "Asia/Ho_Chi_Minh"
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Sheet.Source = strings.ToLower(strings.TrimSpace(c.Sheet.Source))
	if c.Sheet.Range == "" {
		c.Sheet.Range = "Schedule!A:C"
	}
	c.Database.URL = strings.TrimSpace(c.Database.URL)
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.loc = loc

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log.format %q (want json or console)", c.Log.Format)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}

	switch c.Sheet.Source {
	case "google":
	case "file":
		if c.Sheet.File == "" {
			return fmt.Errorf("sheet.file is required when sheet.source is file")
		}
	default:
		return fmt.Errorf("invalid sheet.source %q (want google or file)", c.Sheet.Source)
	}
	if c.Sheet.Watch && c.Sheet.Source != "file" {
		return fmt.Errorf("sheet.watch requires sheet.source file")
	}
	if c.Sheet.Year != 0 && (c.Sheet.Year < 2000 || c.Sheet.Year > 2100) {
		return fmt.Errorf("sheet.year must be 0 or between 2000 and 2100 (got %d)", c.Sheet.Year)
	}
	return nil
}

// ValidateServer additionally checks the settings the HTTP server needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.Auth.RequireToken && strings.TrimSpace(c.Auth.AdminToken) == "" {
		return ErrNoAdminToken
	}
	return nil
}

// Location returns the configured timezone. Validate must have succeeded.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			c.loc = loc
		} else {
			return time.UTC
		}
	}
	return c.loc
}
