// Package cfg provides configuration for the graph service.
package cfg

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"graf/internal/bands"
)

// Config holds service configuration.
type Config struct {
	// Listen is the address to listen on (e.g., ":8080").
	Listen string `mapstructure:"listen" validate:"required"`
	// DBURL is the database URL (SQLite path or Postgres URL).
	DBURL string `mapstructure:"db_url" validate:"required"`
	// Debug enables debug logging and access logs for every request.
	Debug bool `mapstructure:"debug"`
	// Version is the server version string.
	Version string `mapstructure:"version"`
	// LogLevel is the minimum zap level.
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	// Bounds are the accepted coordinate and year ranges.
	Bounds Bounds `mapstructure:"bounds"`
	// Bands maps band name to node id range.
	Bands map[string]bands.Band `mapstructure:"bands" validate:"required,min=1,dive"`
	// DefaultBand names the band used when a request does not pick one.
	DefaultBand string `mapstructure:"default_band" validate:"required"`
	// MaxTxRetries is how many times a request is re-run after a uniqueness conflict.
	MaxTxRetries int `mapstructure:"max_tx_retries" validate:"min=0,max=10"`
	// RateLimit is the sustained requests per second; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`
	// RateBurst is the limiter burst size.
	RateBurst int `mapstructure:"rate_burst" validate:"min=0"`
	// AuditRetention is how long audit entries are kept; 0 keeps them forever.
	AuditRetention time.Duration `mapstructure:"audit_retention" validate:"min=0"`
}

// Bounds holds the inclusive ranges for node attributes.
type Bounds struct {
	MinX    int64 `mapstructure:"min_x" validate:"ltefield=MaxX"`
	MaxX    int64 `mapstructure:"max_x"`
	MinY    int64 `mapstructure:"min_y" validate:"ltefield=MaxY"`
	MaxY    int64 `mapstructure:"max_y"`
	MinYear int64 `mapstructure:"min_year" validate:"ltefield=MaxYear"`
	MaxYear int64 `mapstructure:"max_year"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		DBURL:    "graf.db",
		Version:  "0.1.0",
		LogLevel: "info",
		Bounds: Bounds{
			MinX:    -100000,
			MaxX:    100000,
			MinY:    -100000,
			MaxY:    100000,
			MinYear: 0,
			MaxYear: 9999,
		},
		Bands: map[string]bands.Band{
			bands.DefaultName: {Min: 1, Max: math.MaxInt32},
		},
		DefaultBand:    bands.DefaultName,
		MaxTxRetries:   3,
		RateBurst:      50,
		AuditRetention: 90 * 24 * time.Hour,
	}
}

// FromEnv creates a Config from defaults and environment variables.
func FromEnv() *Config {
	cfg := Default()
	applyEnv(cfg)
	return cfg
}

// Load reads the YAML file at path (if any) over the defaults, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// A file that defines bands replaces the default set.
		if v.IsSet("bands") {
			cfg.Bands = nil
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("decoding config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Listen = getEnv("GRAF_LISTEN", cfg.Listen)
	cfg.DBURL = getEnv("GRAF_DB_URL", cfg.DBURL)
	cfg.Debug = getEnvBool("GRAF_DEBUG", cfg.Debug)
	cfg.Version = getEnv("GRAF_VERSION", cfg.Version)
	cfg.LogLevel = getEnv("GRAF_LOG_LEVEL", cfg.LogLevel)

	cfg.Bounds.MinX = getEnvInt64("GRAF_MIN_X", cfg.Bounds.MinX)
	cfg.Bounds.MaxX = getEnvInt64("GRAF_MAX_X", cfg.Bounds.MaxX)
	cfg.Bounds.MinY = getEnvInt64("GRAF_MIN_Y", cfg.Bounds.MinY)
	cfg.Bounds.MaxY = getEnvInt64("GRAF_MAX_Y", cfg.Bounds.MaxY)
	cfg.Bounds.MinYear = getEnvInt64("GRAF_MIN_YEAR", cfg.Bounds.MinYear)
	cfg.Bounds.MaxYear = getEnvInt64("GRAF_MAX_YEAR", cfg.Bounds.MaxYear)

	cfg.DefaultBand = getEnv("GRAF_DEFAULT_BAND", cfg.DefaultBand)
	cfg.MaxTxRetries = getEnvInt("GRAF_MAX_TX_RETRIES", cfg.MaxTxRetries)
	cfg.RateLimit = getEnvFloat("GRAF_RATE_LIMIT", cfg.RateLimit)
	cfg.RateBurst = getEnvInt("GRAF_RATE_BURST", cfg.RateBurst)
	cfg.AuditRetention = getEnvDuration("GRAF_AUDIT_RETENTION", cfg.AuditRetention)

	// Parse extra bands from JSON
	if bandsJSON := os.Getenv("GRAF_BANDS_JSON"); bandsJSON != "" {
		var parsed map[string]bands.Band
		if err := json.Unmarshal([]byte(bandsJSON), &parsed); err == nil {
			if cfg.Bands == nil {
				cfg.Bands = make(map[string]bands.Band, len(parsed))
			}
			for name, b := range parsed {
				cfg.Bands[name] = b
			}
		}
	}

	// The default band's limits also have their own variables.
	if os.Getenv("GRAF_MIN_NODE_ID") != "" || os.Getenv("GRAF_MAX_NODE_ID") != "" {
		if cfg.Bands == nil {
			cfg.Bands = make(map[string]bands.Band)
		}
		b := cfg.Bands[cfg.DefaultBand]
		b.Min = getEnvInt64("GRAF_MIN_NODE_ID", b.Min)
		b.Max = getEnvInt64("GRAF_MAX_NODE_ID", b.Max)
		cfg.Bands[cfg.DefaultBand] = b
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
