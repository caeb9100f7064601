package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodtune/screenguard/internal/storage"
	"go.etcd.io/bbolt"
)

type notificationStore struct {
	records bucket[storage.NotificationRecord]
	feed    *storage.Feed
}

// Add assigns the next bucket sequence as the ID. Keys are big-endian so
// cursor order matches insertion order.
func (s *notificationStore) Add(ctx context.Context, n storage.NotificationRecord) (int64, error) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	err := s.records.update(ctx, func(bkt *bbolt.Bucket) error {
		seq, err := bkt.NextSequence()
		if err != nil {
			return fmt.Errorf("next notification id: %w", err)
		}
		n.ID = int64(seq)
		data, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("encode notification: %w", err)
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bkt.Put(key, data)
	})
	if err != nil {
		return 0, err
	}
	s.feed.Publish()
	return n.ID, nil
}

func (s *notificationStore) List(ctx context.Context) ([]storage.NotificationRecord, error) {
	entries, err := s.records.all(ctx)
	if err != nil {
		return nil, err
	}
	storage.SortNotifications(entries)
	return entries, nil
}

// DeleteAll empties the log. The sequence is kept so IDs are never reused.
func (s *notificationStore) DeleteAll(ctx context.Context) (int, error) {
	var deleted int
	err := s.records.update(ctx, func(bkt *bbolt.Bucket) error {
		n, err := deleteKeys(bkt, func([]byte) bool { return true })
		deleted = n
		return err
	})
	if err != nil {
		return 0, err
	}
	s.feed.Publish()
	return deleted, nil
}

func (s *notificationStore) Watch(ctx context.Context) <-chan []storage.NotificationRecord {
	return storage.Watch(ctx, s.feed, s.List)
}
