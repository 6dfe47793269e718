package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"timesheet/internal/aggregate"
	"timesheet/internal/source"
)

// Environment variables that override file values.
const (
	EnvCSV      = "TIMESHEET_CSV"
	EnvSource   = "TIMESHEET_SOURCE"
	EnvTimezone = "TIMESHEET_TIMEZONE"
)

const (
	defaultListen         = "127.0.0.1:8080"
	defaultTimezone       = "Europe/London"
	defaultWeekStart      = "monday"
	defaultCSVPath        = "time_spend_summary_sd.csv"
	defaultSchedule       = "0 7 * * 1"
	defaultCacheDir       = ".cache/ics"
	defaultCalendarID     = "primary"
	defaultClientSecret   = "client_secret.json"
	defaultTokenFile      = ".credentials/calendar-token.json"
	defaultKeyringService = "ExchangeCalShopDirect"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is an http(s) subscription, a file:// URL or a local path.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for caching and logging.
	ID string `yaml:"id" json:"id"`
}

// GoogleConfig configures the Google Calendar API source.
type GoogleConfig struct {
	CalendarID       string `yaml:"calendar_id" json:"calendar_id"`
	ClientSecretFile string `yaml:"client_secret_file" json:"client_secret_file"`
	TokenFile        string `yaml:"token_file" json:"token_file"`
}

// ExchangeConfig configures the EWS source. The password is never stored
// here; it comes from TIMESHEET_PASSWORD or the OS keyring.
type ExchangeConfig struct {
	URL            string `yaml:"url" json:"url"`
	Email          string `yaml:"email" json:"email"`
	Username       string `yaml:"username,omitempty" json:"username,omitempty"`
	KeyringService string `yaml:"keyring_service" json:"keyring_service"`
}

// Login is the account used for Basic auth, defaulting to the mailbox address.
func (e ExchangeConfig) Login() string {
	if e.Username != "" {
		return e.Username
	}
	return e.Email
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the history API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for `serve`.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone weeks are computed in (e.g. "Europe/London").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the weekday a reporting week begins on.
	WeekStart string `yaml:"week_start" json:"week_start"`

	// CSVPath is the weekly log rows are appended to.
	CSVPath string `yaml:"csv_path" json:"csv_path"`

	// HistoryDB enables the sqlite history when non-empty.
	HistoryDB string `yaml:"history_db,omitempty" json:"history_db,omitempty"`

	// Schedule is a standard 5-field cron expression used by `schedule`.
	Schedule string `yaml:"schedule" json:"schedule"`

	// Source selects the calendar backend: ics, google or exchange.
	Source string `yaml:"source" json:"source"`

	// CountAllDay includes all-day events in the totals.
	CountAllDay bool `yaml:"count_all_day" json:"count_all_day"`

	// CacheDir holds downloaded ICS bodies and their validators.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	ICS      []ICSConfig    `yaml:"ics" json:"ics"`
	Google   GoogleConfig   `yaml:"google" json:"google"`
	Exchange ExchangeConfig `yaml:"exchange" json:"exchange"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{Source: source.KindICS}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.WeekStart == "" {
		c.WeekStart = defaultWeekStart
	}
	if c.CSVPath == "" {
		c.CSVPath = defaultCSVPath
	}
	if c.Schedule == "" {
		c.Schedule = defaultSchedule
	}
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	if c.Source == "" {
		c.Source = c.inferSource()
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = fmt.Sprintf("ics-%d", i+1)
		}
	}
	if c.Google.CalendarID == "" {
		c.Google.CalendarID = defaultCalendarID
	}
	if c.Google.ClientSecretFile == "" {
		c.Google.ClientSecretFile = defaultClientSecret
	}
	if c.Google.TokenFile == "" {
		c.Google.TokenFile = defaultTokenFile
	}
	if c.Exchange.KeyringService == "" {
		c.Exchange.KeyringService = defaultKeyringService
	}
}

func (c *Config) inferSource() string {
	switch {
	case len(c.ICS) > 0:
		return source.KindICS
	case c.Exchange.URL != "":
		return source.KindExchange
	default:
		return source.KindGoogle
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if _, err := aggregate.ParseWeekday(c.WeekStart); err != nil {
		errs = append(errs, fmt.Sprintf("invalid week_start '%s'", c.WeekStart))
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("invalid schedule '%s': %v", c.Schedule, err))
	}
	if c.CSVPath == "" {
		errs = append(errs, "csv_path cannot be empty")
	}

	switch c.Source {
	case source.KindICS:
		if len(c.ICS) == 0 {
			errs = append(errs, "at least one ics entry is required when source is ics")
		}
		for i, s := range c.ICS {
			if strings.TrimSpace(s.URL) == "" {
				errs = append(errs, fmt.Sprintf("ics[%d] (%s): url cannot be empty", i, s.ID))
			}
		}
	case source.KindGoogle:
		if c.Google.CalendarID == "" {
			errs = append(errs, "google.calendar_id cannot be empty")
		}
		if c.Google.TokenFile == "" {
			errs = append(errs, "google.token_file cannot be empty")
		}
	case source.KindExchange:
		if c.Exchange.URL == "" {
			errs = append(errs, "exchange.url cannot be empty when source is exchange")
		}
		if c.Exchange.Login() == "" {
			errs = append(errs, "exchange.email cannot be empty when source is exchange")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid source '%s': must be one of %v", c.Source, source.Kinds()))
	}

	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		errs = append(errs, "basic_auth requires both username and password")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Location resolves Timezone, falling back to UTC if it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ApplyEnv overrides file values with TIMESHEET_* environment variables.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvCSV)); v != "" {
		c.CSVPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSource)); v != "" {
		c.Source = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvTimezone)); v != "" {
		c.Timezone = v
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from the given YAML (or JSON) path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - If the file is in the legacy calendarid.json layout it is converted.
//   - Environment overrides are applied, then defaults are normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			cfg.ApplyEnv()
			cfg.Normalize()
			return cfg, nil
		}
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyEnv()
	cfg.Normalize()
	return cfg, nil
}

// Parse decodes a config document in either the current or the legacy layout.
func Parse(data []byte) (*Config, error) {
	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, err
	}
	if isLegacy(top) {
		return parseLegacy(data)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".timesheet-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
