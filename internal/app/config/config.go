package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/CalibraFlow/internal/adapters/opcua"
	"github.com/ghalamif/CalibraFlow/internal/adapters/remote"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

type Config struct {
	Sync    ports.SyncPolicy `yaml:"sync"`
	Remote  remote.Config    `yaml:"remote"`
	Archive ArchiveConfig    `yaml:"archive"`
	OPCUA   *opcua.Config    `yaml:"opcua"`
	HTTP    HTTPConfig       `yaml:"http"`
	Log     LogConfig        `yaml:"log"`
}

// ArchiveConfig enables the durable Postgres archive of produced readings.
// The archive is disabled when ConnString is empty.
type ArchiveConfig struct {
	ConnString string              `yaml:"conn_string"`
	Table      string              `yaml:"table"`
	JournalDir string              `yaml:"journal_dir"`
	Policy     ports.ArchivePolicy `yaml:"policy"`
}

func (a ArchiveConfig) Enabled() bool { return a.ConnString != "" }

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Disabled       bool     `yaml:"disabled"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Encoding    string `yaml:"encoding"`
	Development bool   `yaml:"development"`
}

// envOverrides are applied after the YAML file; unset variables leave the file values alone.
type envOverrides struct {
	RemoteBaseURL *string `env:"CALIBRA_REMOTE_BASE_URL"`
	RemoteToken   *string `env:"CALIBRA_REMOTE_TOKEN"`
	ArchiveConn   *string `env:"CALIBRA_ARCHIVE_CONN"`
	HTTPAddr      *string `env:"CALIBRA_HTTP_ADDR"`
	LogLevel      *string `env:"CALIBRA_LOG_LEVEL"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration that runs against the local platform
// with simulation only and no archive.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("env overrides: %w", err)
	}
	if o.RemoteBaseURL != nil {
		c.Remote.BaseURL = *o.RemoteBaseURL
	}
	if o.RemoteToken != nil {
		c.Remote.Token = *o.RemoteToken
	}
	if o.ArchiveConn != nil {
		c.Archive.ConnString = *o.ArchiveConn
	}
	if o.HTTPAddr != nil {
		c.HTTP.Addr = *o.HTTPAddr
	}
	if o.LogLevel != nil {
		c.Log.Level = *o.LogLevel
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Sync.ApplyDefaults()
	c.Remote.ApplyDefaults()
	c.Archive.Policy.ApplyDefaults()

	if c.Archive.Table == "" {
		c.Archive.Table = "sensor_readings"
	}
	if c.Archive.JournalDir == "" {
		c.Archive.JournalDir = "./data/journal"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = "json"
	}
	if c.OPCUA != nil {
		c.OPCUA.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	if c.OPCUA != nil {
		if err := c.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	}
	if c.Sync.Thresholds.HighPriority < c.Sync.Thresholds.Schedule {
		return fmt.Errorf("sync.thresholds.high_priority (%g) must not be below sync.thresholds.schedule (%g)",
			c.Sync.Thresholds.HighPriority, c.Sync.Thresholds.Schedule)
	}
	if c.Sync.Interval < 100*time.Millisecond {
		return fmt.Errorf("sync.interval must be at least 100ms, got %s", c.Sync.Interval)
	}
	switch c.Archive.Policy.OnQueueFull {
	case "block", "drop", "reject":
	default:
		return fmt.Errorf("archive.policy.on_queue_full: unknown policy %q", c.Archive.Policy.OnQueueFull)
	}
	switch c.Archive.Policy.OnJournalFull {
	case "block", "drop":
	default:
		return fmt.Errorf("archive.policy.on_journal_full: unknown policy %q", c.Archive.Policy.OnJournalFull)
	}
	if c.Archive.Enabled() && c.Archive.JournalDir == "" {
		return fmt.Errorf("archive.journal_dir is required")
	}
	switch strings.ToLower(c.Log.Encoding) {
	case "json", "console":
	default:
		return fmt.Errorf("log.encoding must be json or console, got %q", c.Log.Encoding)
	}
	if !c.HTTP.Disabled && c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	return nil
}
