package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/screenguard/internal/storage"
	"github.com/redis/go-redis/v9"
)

type notificationStore struct {
	client *redis.Client
	feed   *channelFeed
}

// Add appends an entry; the id comes from an INCR sequence
func (s *notificationStore) Add(ctx context.Context, n storage.NotificationRecord) (int64, error) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	keys := []string{notificationSeqKey, notificationsIndexKey}
	args := []interface{}{
		keyPrefix + "notification:",
		n.Title,
		n.Message,
		n.Timestamp.Format(time.RFC3339Nano),
	}
	id, err := addNotification.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return 0, fmt.Errorf("add notification: %w", err)
	}

	s.feed.Publish(ctx)
	return id, nil
}

func (s *notificationStore) List(ctx context.Context) ([]storage.NotificationRecord, error) {
	ids, err := s.client.ZRevRange(ctx, notificationsIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]storage.NotificationRecord, 0, len(ids))
	if len(ids) == 0 {
		return entries, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, keyPrefix+"notification:"+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		entry, err := parseNotification(data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	storage.SortNotifications(entries)
	return entries, nil
}

func (s *notificationStore) DeleteAll(ctx context.Context) (int, error) {
	deleted, err := clearNotifs.Run(ctx, s.client, []string{notificationsIndexKey}, keyPrefix+"notification:").Int()
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}

	s.feed.Publish(ctx)
	return deleted, nil
}

func (s *notificationStore) Watch(ctx context.Context) <-chan []storage.NotificationRecord {
	return storage.Watch(ctx, s.feed, s.List)
}
