package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name of config files (without extension).
	ConfigFileName = "qrscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "QRSCAN"
)

// Loader handles configuration loading from files and environment variables.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a configuration loader with the standard search
// paths and environment bindings.
func NewLoader() *Loader {
	v := viper.New()
	l := &Loader{v: v}
	l.setDefaults()
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	return l
}

// Load reads configuration from the first config file found in the
// search paths, merged with environment variables. A missing config
// file is not an error; defaults apply.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return l.unmarshal()
}

// LoadWithFile reads configuration from an explicit config file path.
// Unlike Load, a missing file is an error here.
func (l *Loader) LoadWithFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	return l.unmarshal()
}

// Viper exposes the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
		l.v.AddConfigPath(filepath.Join(home, ".config", "qrscan"))
	}

	l.v.AddConfigPath("/etc/qrscan")
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
}

func (l *Loader) setDefaults() {
	def := DefaultConfig()

	l.v.SetDefault("log_level", def.LogLevel)
	l.v.SetDefault("verbose", def.Verbose)

	l.v.SetDefault("cascade.padding", def.Cascade.Padding)
	l.v.SetDefault("cascade.include_region", def.Cascade.IncludeRegion)

	l.v.SetDefault("output.format", def.Output.Format)
	l.v.SetDefault("output.file", def.Output.File)
	l.v.SetDefault("output.overlay_dir", def.Output.OverlayDir)

	l.v.SetDefault("server.host", def.Server.Host)
	l.v.SetDefault("server.port", def.Server.Port)
	l.v.SetDefault("server.cors_origin", def.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", def.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", def.Server.TimeoutSec)
	l.v.SetDefault("server.rate_limit_enabled", def.Server.RateLimitEnabled)
	l.v.SetDefault("server.requests_per_minute", def.Server.RequestsPerMinute)
	l.v.SetDefault("server.requests_per_hour", def.Server.RequestsPerHour)
	l.v.SetDefault("server.max_requests_per_day", def.Server.MaxRequestsPerDay)
	l.v.SetDefault("server.max_data_per_day_mb", def.Server.MaxDataPerDayMB)
}
