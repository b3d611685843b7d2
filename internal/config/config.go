// Package config holds the application configuration, loaded through viper
// from config file, environment, and flags.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration object.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Batch     BatchConfig     `mapstructure:"batch" yaml:"batch"`
	Detection DetectionConfig `mapstructure:"detection" yaml:"detection"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the shared headless browser process.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string `mapstructure:"args" yaml:"args"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
}

// NetworkConfig tunes per-URL navigation behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	RobotsTimeout     time.Duration `mapstructure:"robots_timeout" yaml:"robots_timeout"`
}

// BatchConfig controls the batch runner.
type BatchConfig struct {
	Workers     int     `mapstructure:"workers" yaml:"workers"`
	RateLimit   float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Mode        string  `mapstructure:"mode" yaml:"mode"`
	SnapshotDir string  `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`
}

// Batch run modes.
const (
	ModeLive     = "live"
	ModeSnapshot = "snapshot"
)

// DetectionConfig tunes the engine's decision making.
type DetectionConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
}

// DatabaseConfig holds the optional outcome-store connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "stackscope")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")

	// -- Network --
	v.SetDefault("network.navigation_timeout", "45s")
	v.SetDefault("network.fetch_timeout", "10s")
	v.SetDefault("network.post_load_wait", "1s")
	v.SetDefault("network.robots_timeout", "10s")

	// -- Batch --
	v.SetDefault("batch.workers", 4)
	v.SetDefault("batch.rate_limit", 2.0)
	v.SetDefault("batch.mode", ModeLive)
	v.SetDefault("batch.snapshot_dir", "snapshots")

	// -- Detection --
	v.SetDefault("detection.confidence_threshold", 0.6)
}

// New creates a configuration from a viper instance.
func New(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefault returns a configuration populated with defaults only.
func NewDefault() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := New(v)
	if err != nil {
		// Defaults must always validate; anything else is a programming error.
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be a positive integer")
	}
	if c.Batch.RateLimit <= 0 {
		return fmt.Errorf("batch.rate_limit must be positive")
	}
	if c.Batch.Mode != ModeLive && c.Batch.Mode != ModeSnapshot {
		return fmt.Errorf("batch.mode must be %q or %q", ModeLive, ModeSnapshot)
	}
	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold > 1 {
		return fmt.Errorf("detection.confidence_threshold must be between 0.0 and 1.0")
	}
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	return nil
}
