package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotasks/internal/geo"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, geo.ArrivalRadiusMeters, cfg.Geofence.ArrivalRadiusMeters)
	assert.Equal(t, time.Second, cfg.Location.MinInterval.Duration)
	assert.Equal(t, 0.5, cfg.Location.MinDistanceMeters)
	assert.True(t, cfg.PermissionGranted())
	assert.False(t, cfg.Geocoder.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFrom_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"

[location]
min_interval = "250ms"
permission = "denied"

[geofence]
arrival_radius_meters = 500.0

[geocoder]
enabled = true
timeout = "2s"

[log]
level = "debug"
format = "json"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Location.MinInterval.Duration)
	assert.Equal(t, 0.5, cfg.Location.MinDistanceMeters, "unset keys keep defaults")
	assert.False(t, cfg.PermissionGranted())
	assert.Equal(t, 500.0, cfg.Geofence.ArrivalRadiusMeters)
	assert.True(t, cfg.Geocoder.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Geocoder.Timeout.Duration)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFrom_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\naddr="), 0644))

	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "parsing config file")
}

func TestLoadFrom_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[location]\nmin_interval = \"soon\"\n"), 0644))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                 "7000",
		"DB_PATH":              "/tmp/x.db",
		"LOG_LEVEL":            "warn",
		"GEOTASKS_PERMISSION":  "denied",
		"GEOTASKS_WEBHOOK_URL": "http://localhost:9999/push",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.PermissionGranted())
	assert.Equal(t, "http://localhost:9999/push", cfg.Notify.WebhookURL)

	bad := Default()
	assert.Error(t, bad.ApplyEnv(func(k string) string {
		if k == "PORT" {
			return "eighty"
		}
		return ""
	}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero radius", func(c *Config) { c.Geofence.ArrivalRadiusMeters = 0 }},
		{"negative interval", func(c *Config) { c.Location.MinInterval.Duration = -time.Second }},
		{"negative distance", func(c *Config) { c.Location.MinDistanceMeters = -1 }},
		{"bad permission", func(c *Config) { c.Location.Permission = "maybe" }},
		{"bad precision", func(c *Config) { c.Favorites.MatchPrecision = -2 }},
		{"empty outbox", func(c *Config) { c.Notify.OutboxSize = 0 }},
		{"geocoder without url", func(c *Config) { c.Geocoder.Enabled = true; c.Geocoder.BaseURL = " " }},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveToAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Geofence.ArrivalRadiusMeters = 321
	cfg.Location.MinInterval = Duration{3 * time.Second}
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 321.0, loaded.Geofence.ArrivalRadiusMeters)
	assert.Equal(t, 3*time.Second, loaded.Location.MinInterval.Duration)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().Write(&buf))
	assert.Contains(t, buf.String(), `min_interval = "1s"`)
	assert.Contains(t, buf.String(), "[geofence]")
}

func TestLocationOptions(t *testing.T) {
	opts := Default().LocationOptions()
	assert.Equal(t, time.Second, opts.MinInterval)
	assert.Equal(t, 0.5, opts.MinDistanceMeters)
	assert.Equal(t, "high", opts.Accuracy)
}
