package redis

import (
	"context"
	"fmt"

	"github.com/goodtune/screenguard/internal/storage"
	"github.com/redis/go-redis/v9"
)

type limitStore struct {
	client *redis.Client
	feed   *channelFeed
}

// Get returns the limit for a package
func (s *limitStore) Get(ctx context.Context, packageID string) (*storage.LimitRecord, error) {
	data, err := s.client.HGetAll(ctx, limitKey(packageID)).Result()
	if err != nil {
		return nil, err
	}
	return parseLimit(data)
}

// List returns every limit ordered by package
func (s *limitStore) List(ctx context.Context) ([]storage.LimitRecord, error) {
	ids, err := s.client.SMembers(ctx, limitsIndexKey).Result()
	if err != nil {
		return nil, err
	}

	limits := make([]storage.LimitRecord, 0, len(ids))
	if len(ids) == 0 {
		return limits, nil
	}

	// Use pipeline for batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, limitKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}
		limit, err := parseLimit(data)
		if err != nil {
			return nil, err
		}
		limits = append(limits, *limit)
	}

	storage.SortLimits(limits)
	return limits, nil
}

func (s *limitStore) ListActive(ctx context.Context) ([]storage.LimitRecord, error) {
	limits, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return storage.ActiveOnly(limits), nil
}

// Upsert atomically replaces the limit and announces the change
func (s *limitStore) Upsert(ctx context.Context, limit storage.LimitRecord) error {
	if err := limit.Validate(); err != nil {
		return err
	}

	keys := []string{limitKey(limit.PackageID), limitsIndexKey}
	args := []interface{}{
		limit.PackageID,
		limit.DisplayName,
		limit.LimitMinutes,
		boolFlag(limit.Active),
	}
	if err := upsertLimit.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("upsert limit %s: %w", limit.PackageID, err)
	}

	s.feed.Publish(ctx)
	return nil
}

func (s *limitStore) Delete(ctx context.Context, packageID string) error {
	keys := []string{limitKey(packageID), limitsIndexKey}
	removed, err := deleteLimit.Run(ctx, s.client, keys, packageID).Int()
	if err != nil {
		return fmt.Errorf("delete limit %s: %w", packageID, err)
	}
	if removed == 0 {
		return storage.ErrNotFound
	}

	s.feed.Publish(ctx)
	return nil
}

func (s *limitStore) Watch(ctx context.Context) <-chan []storage.LimitRecord {
	return storage.Watch(ctx, s.feed, s.List)
}
