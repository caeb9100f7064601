package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/screenguard/internal/storage"
	"go.etcd.io/bbolt"
)

const dateLayout = "2006-01-02"

type historyStore struct {
	records bucket[storage.DailyHistory]
}

func (s *historyStore) Get(ctx context.Context, date string) (*storage.DailyHistory, error) {
	return s.records.get(ctx, date)
}

func (s *historyStore) Upsert(ctx context.Context, h storage.DailyHistory) error {
	if _, err := time.Parse(dateLayout, h.Date); err != nil {
		return fmt.Errorf("invalid history date %q: %w", h.Date, err)
	}
	return s.records.put(ctx, h.Date, h)
}

// List walks the date-ordered keys backwards so only limit entries are decoded.
func (s *historyStore) List(ctx context.Context, limit int) ([]storage.DailyHistory, error) {
	entries := make([]storage.DailyHistory, 0)
	err := s.records.view(ctx, func(bkt *bbolt.Bucket) error {
		c := bkt.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			h, err := decode[storage.DailyHistory](v)
			if err != nil {
				return err
			}
			entries = append(entries, h)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *historyStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	if _, err := time.Parse(dateLayout, cutoffDate); err != nil {
		return 0, fmt.Errorf("invalid cutoff date: %w", err)
	}
	var deleted int
	err := s.records.update(ctx, func(bkt *bbolt.Bucket) error {
		n, err := deleteKeys(bkt, func(k []byte) bool { return string(k) < cutoffDate })
		deleted = n
		return err
	})
	return deleted, err
}
