package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Monitor MonitorConfig `mapstructure:"monitor"`
	Usage   UsageConfig   `mapstructure:"usage"`
	Device  DeviceConfig  `mapstructure:"device"`
	Apps    AppsConfig    `mapstructure:"apps"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MonitorConfig controls the limit monitoring loop
type MonitorConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	ErrorBackoff     time.Duration `mapstructure:"error_backoff"`
	ForegroundWindow time.Duration `mapstructure:"foreground_window"`
	SelfPackage      string        `mapstructure:"self_package"` // never evaluated as foreground
	WarningPercent   float64       `mapstructure:"warning_percent"`
}

// UsageConfig defines aggregation and history settings
type UsageConfig struct {
	TodaySlack    time.Duration `mapstructure:"today_slack"`
	Timezone      string        `mapstructure:"timezone"`
	HistoryDays   int           `mapstructure:"history_days"`
	RetentionDays int           `mapstructure:"retention_days"`
	RetentionTime string        `mapstructure:"retention_time"` // HH:MM, local to Timezone
}

// DeviceConfig points at the device agent
type DeviceConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AppsConfig defines app metadata lookup settings
type AppsConfig struct {
	CatalogPath string        `mapstructure:"catalog_path"`
	CacheSize   int           `mapstructure:"cache_size"`
	MissTTL     time.Duration `mapstructure:"miss_ttl"` // how long an unresolvable package is not re-queried
}

// NotifyConfig defines notification delivery
type NotifyConfig struct {
	URLs    []string      `mapstructure:"urls"`
	Timeout time.Duration `mapstructure:"timeout"`
	Channel string        `mapstructure:"channel"`
}

// DefaultStorageType is a backend the daemon and the operator commands can
// open at the same time. bolt locks its file to a single process.
const DefaultStorageType = "sqlite"

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Path  string      `mapstructure:"path"`
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig defines the metrics listener
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	BindAddress string `mapstructure:"bind_address"`
	Port        int    `mapstructure:"port"`
}

// Location resolves the configured timezone.
func (u UsageConfig) Location() (*time.Location, error) {
	if u.Timezone == "" || strings.EqualFold(u.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(u.Timezone)
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetEnvPrefix("SCREENGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found, use defaults and environment variables
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration produced by defaults alone.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

// UnknownKeys lists the keys set in the file at path that no setting reads.
func UnknownKeys(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	known := viper.New()
	setDefaults(known)
	valid := make(map[string]bool)
	for _, key := range known.AllKeys() {
		valid[key] = true
	}

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Monitor defaults
	v.SetDefault("monitor.interval", "3s")
	v.SetDefault("monitor.error_backoff", "5s")
	v.SetDefault("monitor.foreground_window", "5s")
	v.SetDefault("monitor.self_package", "")
	v.SetDefault("monitor.warning_percent", 80.0)

	// Usage defaults
	v.SetDefault("usage.today_slack", "60s")
	v.SetDefault("usage.timezone", "Local")
	v.SetDefault("usage.history_days", 7)
	v.SetDefault("usage.retention_days", 90)
	v.SetDefault("usage.retention_time", "00:00")

	// Device defaults
	v.SetDefault("device.url", "http://127.0.0.1:8765")
	v.SetDefault("device.token", "")
	v.SetDefault("device.timeout", "5s")

	// App metadata defaults
	v.SetDefault("apps.catalog_path", "")
	v.SetDefault("apps.cache_size", 512)
	v.SetDefault("apps.miss_ttl", "1m")

	// Notification defaults
	v.SetDefault("notify.urls", []string{})
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.channel", "limits")

	// Storage defaults
	v.SetDefault("storage.path", "/var/lib/screenguard/screenguard.db")
	v.SetDefault("storage.type", DefaultStorageType)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.bind_address", "127.0.0.1")
	v.SetDefault("metrics.port", 9090)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", cfg.Monitor.Interval)
	}
	if cfg.Monitor.ErrorBackoff <= 0 {
		return fmt.Errorf("monitor error_backoff must be positive, got %s", cfg.Monitor.ErrorBackoff)
	}
	if cfg.Monitor.ForegroundWindow <= 0 {
		return fmt.Errorf("monitor foreground_window must be positive, got %s", cfg.Monitor.ForegroundWindow)
	}
	if cfg.Monitor.WarningPercent <= 0 || cfg.Monitor.WarningPercent >= 100 {
		return fmt.Errorf("monitor warning_percent must be between 0 and 100, got %v", cfg.Monitor.WarningPercent)
	}

	if cfg.Usage.TodaySlack < 0 {
		return fmt.Errorf("usage today_slack must not be negative")
	}
	if _, err := cfg.Usage.Location(); err != nil {
		return fmt.Errorf("invalid usage timezone %q: %w", cfg.Usage.Timezone, err)
	}
	if cfg.Usage.HistoryDays <= 0 {
		return fmt.Errorf("usage history_days must be positive, got %d", cfg.Usage.HistoryDays)
	}
	if cfg.Usage.RetentionDays < cfg.Usage.HistoryDays {
		return fmt.Errorf("usage retention_days (%d) must cover history_days (%d)", cfg.Usage.RetentionDays, cfg.Usage.HistoryDays)
	}
	if _, err := time.Parse("15:04", cfg.Usage.RetentionTime); err != nil {
		return fmt.Errorf("invalid usage retention_time %q: %w", cfg.Usage.RetentionTime, err)
	}

	if cfg.Device.URL == "" {
		return fmt.Errorf("device url is required")
	}
	if cfg.Device.Timeout <= 0 {
		return fmt.Errorf("device timeout must be positive")
	}

	if cfg.Apps.CacheSize <= 0 {
		return fmt.Errorf("apps cache_size must be positive, got %d", cfg.Apps.CacheSize)
	}
	if cfg.Apps.MissTTL <= 0 {
		return fmt.Errorf("apps miss_ttl must be positive")
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Metrics.Port)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = DefaultStorageType
	}
	switch cfg.Storage.Type {
	case "bolt", "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage redis host is required")
		}
	default:
		return fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	return nil
}
