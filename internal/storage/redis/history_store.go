package redis

import (
	"context"
	"fmt"

	"github.com/goodtune/screenguard/internal/storage"
	"github.com/redis/go-redis/v9"
)

type historyStore struct {
	client *redis.Client
}

func (s *historyStore) Get(ctx context.Context, date string) (*storage.DailyHistory, error) {
	data, err := s.client.HGetAll(ctx, historyKey(date)).Result()
	if err != nil {
		return nil, err
	}
	return parseHistory(data)
}

// Upsert stores a completed day and indexes it by date
func (s *historyStore) Upsert(ctx context.Context, h storage.DailyHistory) error {
	score, err := dateScore(h.Date)
	if err != nil {
		return err
	}

	keys := []string{historyKey(h.Date), historyIndexKey}
	args := []interface{}{
		h.Date,
		h.TotalMillis,
		h.AppCount,
		h.MostUsedApp,
		h.DayName,
		h.DateLabel,
		score,
	}
	if err := upsertHistory.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("upsert history %s: %w", h.Date, err)
	}
	return nil
}

func (s *historyStore) List(ctx context.Context, limit int) ([]storage.DailyHistory, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	dates, err := s.client.ZRevRange(ctx, historyIndexKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]storage.DailyHistory, 0, len(dates))
	if len(dates) == 0 {
		return entries, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(dates))
	for i, date := range dates {
		cmds[i] = pipe.HGetAll(ctx, historyKey(date))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		entry, err := parseHistory(data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}

	return storage.SortHistory(entries, limit), nil
}

// DeleteBefore removes every day strictly older than cutoffDate
func (s *historyStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	score, err := dateScore(cutoffDate)
	if err != nil {
		return 0, err
	}

	deleted, err := deleteHistoryOld.Run(ctx, s.client, []string{historyIndexKey}, keyPrefix+"history:", score).Int()
	if err != nil {
		return 0, fmt.Errorf("delete history before %s: %w", cutoffDate, err)
	}
	return deleted, nil
}
