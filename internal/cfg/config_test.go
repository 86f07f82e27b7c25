package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graf/internal/bands"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestLoad_NoFile(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Listen)
	assert.Equal(t, bands.DefaultName, c.DefaultBand)
	assert.Contains(t, c.Bands, bands.DefaultName)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
db_url: "postgres://graf@localhost/graf"
log_level: debug
max_tx_retries: 5
audit_retention: 24h
bounds:
  min_x: -10
  max_x: 10
bands:
  default: {min: 100, max: 200}
  imported: {min: 1000, max: 2000}
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", c.Listen)
	assert.Equal(t, "postgres://graf@localhost/graf", c.DBURL)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 5, c.MaxTxRetries)
	assert.Equal(t, 24*time.Hour, c.AuditRetention)
	assert.Equal(t, int64(-10), c.Bounds.MinX)
	assert.Equal(t, int64(10), c.Bounds.MaxX)
	assert.Equal(t, int64(100000), c.Bounds.MaxY, "unset bounds keep their defaults")
	assert.Equal(t, map[string]bands.Band{
		"default":  {Min: 100, Max: 200},
		"imported": {Min: 1000, Max: 2000},
	}, c.Bands)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
bands:
  default: {min: 100, max: 200}
`)
	t.Setenv("GRAF_LISTEN", ":7070")
	t.Setenv("GRAF_MAX_NODE_ID", "150")
	t.Setenv("GRAF_BANDS_JSON", `{"extra":{"min":5000,"max":6000}}`)
	t.Setenv("GRAF_RATE_LIMIT", "12.5")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", c.Listen)
	assert.Equal(t, bands.Band{Min: 100, Max: 150}, c.Bands["default"])
	assert.Equal(t, bands.Band{Min: 5000, Max: 6000}, c.Bands["extra"])
	assert.Equal(t, 12.5, c.RateLimit)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GRAF_MIN_NODE_ID", "100")
	t.Setenv("GRAF_MAX_NODE_ID", "200")
	t.Setenv("GRAF_DEBUG", "true")
	t.Setenv("GRAF_MAX_TX_RETRIES", "not-a-number")

	c := FromEnv()
	assert.True(t, c.Debug)
	assert.Equal(t, 3, c.MaxTxRetries)
	assert.Equal(t, bands.Band{Min: 100, Max: 200}, c.Bands[bands.DefaultName])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   []string
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }, []string{"listen is required"}},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, []string{"log_level must be one of"}},
		{"inverted bounds", func(c *Config) { c.Bounds.MinYear = 3000; c.Bounds.MaxYear = 2000 }, []string{"bounds.min_year must not exceed max_year"}},
		{"too many retries", func(c *Config) { c.MaxTxRetries = 11 }, []string{"max_tx_retries must be at most 10"}},
		{"empty band", func(c *Config) { c.Bands["default"] = bands.Band{Min: 5, Max: 5} }, []string{"bands.default must satisfy min < max"}},
		{"negative band", func(c *Config) { c.Bands["neg"] = bands.Band{Min: -5, Max: 5} }, []string{"bands.neg.min must not be negative"}},
		{"unknown default band", func(c *Config) { c.DefaultBand = "other" }, []string{`default_band "other" is not defined`}},
		{"several problems", func(c *Config) { c.Listen = ""; c.MaxTxRetries = -1 }, []string{"listen is required", "max_tx_retries must be at least 0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := Validate(c)
			require.Error(t, err)
			for _, want := range tt.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}

	assert.Error(t, Validate(nil))
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "max_tx_retries", toSnake("MaxTxRetries"))
	assert.Equal(t, "dburl", toSnake("DBURL"))
	assert.Equal(t, "bounds.min_x", fieldPath("Config.Bounds.MinX"))
}
