// Package config centralizes qrscan settings, merged from config files,
// environment variables, and command-line flags.
package config

import (
	"fmt"
	"strings"
)

// Config represents the complete configuration for the qrscan application.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Cascade and region extraction settings
	Cascade CascadeConfig `mapstructure:"cascade" yaml:"cascade" json:"cascade"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// CascadeConfig contains detection cascade settings.
type CascadeConfig struct {
	// Padding is the quiet-zone margin in pixels added around an
	// extracted code region.
	Padding int `mapstructure:"padding" yaml:"padding" json:"padding"`

	// IncludeRegion controls whether the cropped code region is encoded
	// into results.
	IncludeRegion bool `mapstructure:"include_region" yaml:"include_region" json:"include_region"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string `mapstructure:"host" yaml:"host" json:"host"`
	Port        int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin  string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB int64  `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`

	// Rate limiting
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// ValidFormats lists the accepted CLI output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// DefaultConfig returns the configuration defaults applied before any
// file, environment, or flag overrides.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Cascade: CascadeConfig{
			Padding:       10,
			IncludeRegion: true,
		},
		Output: OutputConfig{
			Format: "text",
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       50,
			TimeoutSec:        120,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 10000,
			MaxDataPerDayMB:   1024,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.Cascade.Padding < 0 {
		return fmt.Errorf("invalid cascade padding: %d (must be >= 0)", c.Cascade.Padding)
	}

	valid := false
	for _, f := range ValidFormats {
		if c.Output.Format == f {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(ValidFormats, ", "))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("invalid max upload size: %d MB", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec < 1 {
		return fmt.Errorf("invalid server timeout: %d", c.Server.TimeoutSec)
	}
	return nil
}
