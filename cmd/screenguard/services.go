package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goodtune/screenguard/internal/appmeta"
	"github.com/goodtune/screenguard/internal/config"
	"github.com/goodtune/screenguard/internal/device"
	"github.com/goodtune/screenguard/internal/storage"
	"github.com/goodtune/screenguard/internal/storage/bolt"
	"github.com/goodtune/screenguard/internal/storage/redis"
	"github.com/goodtune/screenguard/internal/storage/sqlite"
	"github.com/goodtune/screenguard/internal/usage"
	"github.com/rs/zerolog"
)

// services bundles the components shared by serve and the operator commands.
type services struct {
	cfg        *config.Config
	store      storage.Store
	device     *device.Client
	resolver   *appmeta.Resolver
	aggregator *usage.Aggregator
	history    *usage.HistoryCache
	location   *time.Location
	clock      usage.Clock
}

func openServices(cfg *config.Config, logger zerolog.Logger) (*services, error) {
	location, err := cfg.Usage.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client, err := device.NewClient(device.Config{
		URL:     cfg.Device.URL,
		Token:   cfg.Device.Token,
		Timeout: cfg.Device.Timeout,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize device client: %w", err)
	}

	resolver, err := appmeta.NewResolver(client, appmeta.Config{
		CacheSize:   cfg.Apps.CacheSize,
		CatalogPath: cfg.Apps.CatalogPath,
		MissTTL:     cfg.Apps.MissTTL,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize app metadata: %w", err)
	}

	clock := usage.ZonedClock{Location: location}
	aggregator := usage.NewAggregator(client, resolver, usage.AggregatorConfig{
		TodaySlack: cfg.Usage.TodaySlack,
	}, logger)

	return &services{
		cfg:        cfg,
		store:      store,
		device:     client,
		resolver:   resolver,
		aggregator: aggregator,
		history:    usage.NewHistoryCache(aggregator, store.History(), clock, location, logger),
		location:   location,
		clock:      clock,
	}, nil
}

func (s *services) Close() error {
	return s.store.Close()
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = config.DefaultStorageType
	}

	switch storageType {
	case "bolt":
		return bolt.Open(cfg.Path)
	case "sqlite":
		return sqlite.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// quietLogger keeps operator command output clean of component chatter.
func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
}

// loadServices loads configuration and opens everything an operator command needs.
func loadServices() (*services, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return openServices(cfg, quietLogger())
}
