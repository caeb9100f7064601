package bolt

import (
	"context"

	"github.com/goodtune/screenguard/internal/storage"
)

type limitStore struct {
	records bucket[storage.LimitRecord]
	feed    *storage.Feed
}

func (s *limitStore) Get(ctx context.Context, packageID string) (*storage.LimitRecord, error) {
	return s.records.get(ctx, packageID)
}

func (s *limitStore) List(ctx context.Context) ([]storage.LimitRecord, error) {
	limits, err := s.records.all(ctx)
	if err != nil {
		return nil, err
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

func (s *limitStore) Upsert(ctx context.Context, limit storage.LimitRecord) error {
	if err := limit.Validate(); err != nil {
		return err
	}
	if err := s.records.put(ctx, limit.PackageID, limit); err != nil {
		return err
	}
	s.feed.Publish()
	return nil
}

func (s *limitStore) Delete(ctx context.Context, packageID string) error {
	if err := s.records.remove(ctx, packageID); err != nil {
		return err
	}
	s.feed.Publish()
	return nil
}

func (s *limitStore) Watch(ctx context.Context) <-chan []storage.LimitRecord {
	return storage.Watch(ctx, s.feed, s.List)
}
