package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/screenguard/internal/config"
	"github.com/goodtune/screenguard/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "screenguard:"

// Change channels, one per live-read collection.
const (
	channelLimits        = keyPrefix + "changes:limits"
	channelNotifications = keyPrefix + "changes:notifications"
)

// Store implements the storage.Store interface using Redis
type Store struct {
	client        *redis.Client
	limits        *limitStore
	notifications *notificationStore
	history       *historyStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Host may already carry the port
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newStore(client), nil
}

func newStore(client *redis.Client) *Store {
	logger := log.Logger.With().Str("component", "redis-store").Logger()
	return &Store{
		client:        client,
		limits:        &limitStore{client: client, feed: &channelFeed{client: client, channel: channelLimits, logger: logger}},
		notifications: &notificationStore{client: client, feed: &channelFeed{client: client, channel: channelNotifications, logger: logger}},
		history:       &historyStore{client: client},
	}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Limits returns the LimitStore implementation
func (s *Store) Limits() storage.LimitStore {
	return s.limits
}

// Notifications returns the NotificationStore implementation
func (s *Store) Notifications() storage.NotificationStore {
	return s.notifications
}

// History returns the HistoryStore implementation
func (s *Store) History() storage.HistoryStore {
	return s.history
}

func limitKey(packageID string) string {
	return keyPrefix + "limit:" + packageID
}

func historyKey(date string) string {
	return keyPrefix + "history:" + date
}

const (
	limitsIndexKey        = keyPrefix + "limits"
	notificationsIndexKey = keyPrefix + "notifications"
	notificationSeqKey    = keyPrefix + "notification:seq"
	historyIndexKey       = keyPrefix + "history"
)
