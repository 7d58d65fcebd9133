// Package config loads the rollcall configuration file.
//
// Configuration is YAML. Every field is optional: SetDefaults fills in
// anything left out and a handful of settings can be overridden from the
// environment (or a .env file in the working directory):
//
//	ROLLCALL_BACKEND_URL   backend.url
//	ROLLCALL_LISTEN_ADDR   server.listen_addr
//	ROLLCALL_LOG_LEVEL     logging.level
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nomis52/rollcall/cron"
	"github.com/nomis52/rollcall/logging"
)

const (
	// Default backend settings
	defaultBackendURL     = "http://localhost:8000"
	defaultBackendTimeout = 30 * time.Second

	// Default server settings
	defaultListenAddr = "127.0.0.1:8080"

	// Default monitoring settings
	defaultMetricsPrefix = "rollcall"
	defaultJobName       = "rollcall"

	// Default logging settings
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
	defaultLogOutput = "stderr"
)

// Environment variables that override file settings.
const (
	EnvBackendURL = "ROLLCALL_BACKEND_URL"
	EnvListenAddr = "ROLLCALL_LISTEN_ADDR"
	EnvLogLevel   = "ROLLCALL_LOG_LEVEL"
)

// UnregisterPolicy selects what happens after a successful unregister.
type UnregisterPolicy string

const (
	// UnregisterPatch removes the row and patches availability in place.
	UnregisterPatch UnregisterPolicy = "patch"
	// UnregisterRefresh reloads every activity instead.
	UnregisterRefresh UnregisterPolicy = "refresh"
)

// Config represents the complete application configuration
type Config struct {
	Backend    BackendConfig    `yaml:"backend"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Behavior   BehaviorConfig   `yaml:"behavior"`
	Server     ServerConfig     `yaml:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    logging.Config   `yaml:"logging"`
}

// BackendConfig holds the activities API connection settings
type BackendConfig struct {
	// URL is the base URL of the activities API, e.g. http://localhost:8000
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	// UserAgent overrides the User-Agent header. Defaults to rollcall/<version>.
	UserAgent string `yaml:"user_agent"`
}

// RefreshConfig schedules background reloads of the roster
type RefreshConfig struct {
	// Schedule is a 5 field cron spec. Empty disables scheduled refreshes.
	Schedule string `yaml:"schedule"`
}

// BehaviorConfig defines application behavior settings
type BehaviorConfig struct {
	UnregisterPolicy UnregisterPolicy `yaml:"unregister_policy"`
}

// ServerConfig holds the local web UI settings
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// TLSCert and TLSKey enable HTTPS. Both or neither must be set.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// MonitoringConfig holds metrics and monitoring settings
type MonitoringConfig struct {
	// VictoriaMetricsURL enables pushing metrics from one-shot commands.
	VictoriaMetricsURL string `yaml:"victoriametrics_url"`
	MetricsPrefix      string `yaml:"metrics_prefix"`
	JobName            string `yaml:"jobname"`
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil {
		return fmt.Errorf("backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend url must be http or https, got %q", c.Backend.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("backend url has no host: %q", c.Backend.URL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	if c.Refresh.Schedule != "" {
		if _, err := cron.ParseSchedules(c.Refresh.Schedule); err != nil {
			return fmt.Errorf("refresh schedule %q: %w", c.Refresh.Schedule, err)
		}
	}
	switch c.Behavior.UnregisterPolicy {
	case UnregisterPatch, UnregisterRefresh:
	default:
		return fmt.Errorf("unknown unregister policy %q (want %q or %q)",
			c.Behavior.UnregisterPolicy, UnregisterPatch, UnregisterRefresh)
	}
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server listen address is required")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return fmt.Errorf("server tls_cert and tls_key must be set together")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging level: %w", err)
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	if c.Backend.URL == "" {
		c.Backend.URL = defaultBackendURL
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = defaultBackendTimeout
	}
	if c.Behavior.UnregisterPolicy == "" {
		c.Behavior.UnregisterPolicy = UnregisterPatch
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = defaultListenAddr
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
}

// ApplyEnv overrides settings from the environment. Values in a .env file
// are loaded first but never replace variables that are already set.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv(EnvBackendURL); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv(EnvListenAddr); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct.
// An empty path yields the defaults plus any environment overrides.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to open config file %s: %w", path, err)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		// An empty file is an empty config.
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("failed to decode YAML config: %w", err)
		}
	}
	cfg.ApplyEnv()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
