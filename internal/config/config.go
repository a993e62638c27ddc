// Package config loads geotasks settings from TOML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"geotasks/internal/geo"
	"geotasks/internal/location"
	"geotasks/internal/logging"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Location  LocationConfig  `toml:"location"`
	Geofence  GeofenceConfig  `toml:"geofence"`
	Favorites FavoritesConfig `toml:"favorites"`
	Geocoder  GeocoderConfig  `toml:"geocoder"`
	Notify    NotifyConfig    `toml:"notify"`
	Log       LogConfig       `toml:"log"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LocationConfig struct {
	MinInterval       Duration `toml:"min_interval"`
	MinDistanceMeters float64  `toml:"min_distance_meters"`
	Accuracy          string   `toml:"accuracy"`
	Permission        string   `toml:"permission"` // "granted" or "denied"
}

type GeofenceConfig struct {
	ArrivalRadiusMeters float64 `toml:"arrival_radius_meters"`
}

type FavoritesConfig struct {
	// MatchPrecision is the number of decimals compared; -1 compares raw floats.
	MatchPrecision int `toml:"match_precision"`
}

type GeocoderConfig struct {
	Enabled   bool     `toml:"enabled"`
	BaseURL   string   `toml:"base_url"`
	UserAgent string   `toml:"user_agent"`
	Timeout   Duration `toml:"timeout"`
}

type NotifyConfig struct {
	WebhookURL string   `toml:"webhook_url"`
	Timeout    Duration `toml:"timeout"`
	OutboxSize int      `toml:"outbox_size"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration that reads and writes TOML strings like "1s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the default configuration.
func Default() *Config {
	opts := location.DefaultOptions()
	return &Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "./data/geotasks.db"},
		Location: LocationConfig{
			MinInterval:       Duration{opts.MinInterval},
			MinDistanceMeters: opts.MinDistanceMeters,
			Accuracy:          opts.Accuracy,
			Permission:        "granted",
		},
		Geofence:  GeofenceConfig{ArrivalRadiusMeters: geo.ArrivalRadiusMeters},
		Favorites: FavoritesConfig{MatchPrecision: geo.DefaultMatchPrecision},
		Geocoder: GeocoderConfig{
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "geotasks",
			Timeout:   Duration{5 * time.Second},
		},
		Notify: NotifyConfig{Timeout: Duration{5 * time.Second}, OutboxSize: 100},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath returns ~/.config/geotasks/config.toml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home dir: %w", err)
	}
	return filepath.Join(homeDir, ".config", "geotasks", "config.toml"), nil
}

// Load reads configPath over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	cfg, err := LoadFrom(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom loads configuration from a specific path over the defaults.
func LoadFrom(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Database.Path = expandPath(cfg.Database.Path)
	return cfg, nil
}

// ApplyEnv overrides settings from PORT, DB_PATH, LOG_LEVEL,
// GEOTASKS_PERMISSION and GEOTASKS_WEBHOOK_URL.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Addr = ":" + v
	}
	if v := getenv("DB_PATH"); v != "" {
		c.Database.Path = expandPath(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("GEOTASKS_PERMISSION"); v != "" {
		c.Location.Permission = v
	}
	if v := getenv("GEOTASKS_WEBHOOK_URL"); v != "" {
		c.Notify.WebhookURL = v
	}
	return nil
}

// Validate checks the configuration for values the engine cannot use.
func (c *Config) Validate() error {
	var errs []error

	if c.Geofence.ArrivalRadiusMeters <= 0 {
		errs = append(errs, fmt.Errorf("geofence.arrival_radius_meters must be positive, got %v", c.Geofence.ArrivalRadiusMeters))
	}
	if c.Location.MinInterval.Duration < 0 {
		errs = append(errs, fmt.Errorf("location.min_interval must not be negative"))
	}
	if c.Location.MinDistanceMeters < 0 {
		errs = append(errs, fmt.Errorf("location.min_distance_meters must not be negative"))
	}
	switch c.Location.Permission {
	case "granted", "denied":
	default:
		errs = append(errs, fmt.Errorf("location.permission must be 'granted' or 'denied', got %q", c.Location.Permission))
	}
	if c.Favorites.MatchPrecision < -1 || c.Favorites.MatchPrecision > 15 {
		errs = append(errs, fmt.Errorf("favorites.match_precision must be between -1 and 15"))
	}
	if c.Notify.OutboxSize <= 0 {
		errs = append(errs, fmt.Errorf("notify.outbox_size must be positive"))
	}
	if c.Geocoder.Enabled && strings.TrimSpace(c.Geocoder.BaseURL) == "" {
		errs = append(errs, fmt.Errorf("geocoder.base_url is required when the geocoder is enabled"))
	}
	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q is not recognised", c.Log.Level))
	}

	return errors.Join(errs...)
}

// LocationOptions converts the location section for the tracker.
func (c *Config) LocationOptions() location.Options {
	return location.Options{
		Accuracy:          c.Location.Accuracy,
		MinInterval:       c.Location.MinInterval.Duration,
		MinDistanceMeters: c.Location.MinDistanceMeters,
	}
}

// PermissionGranted reports whether the configured permission is "granted".
func (c *Config) PermissionGranted() bool {
	return c.Location.Permission == "granted"
}

// Write encodes the configuration as TOML.
func (c *Config) Write(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	return c.Write(f)
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
