// Package bolt stores limits, the notification log and daily history in a
// single bbolt file. Each collection is one bucket of JSON values.
package bolt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goodtune/screenguard/internal/storage"
	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

const (
	bucketLimits        = "app_limits"
	bucketNotifications = "notifications"
	bucketHistory       = "usage_history"
)

// ErrLocked is returned by Open when another process holds the file.
var ErrLocked = errors.New("bolt database is in use by another process; use the sqlite or redis backend to share storage")

// lockTimeout bounds the wait for the file lock.
var lockTimeout = 2 * time.Second

// Store implements storage.Store on bbolt. The file is locked to one
// process, so the daemon and the operator commands cannot share it. Changes
// to limits and notifications are announced on in-process feeds for Watch.
type Store struct {
	db            *bbolt.DB
	limits        *limitStore
	notifications *notificationStore
	history       *historyStore
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: lockTimeout})
	if errors.Is(err, berrors.ErrTimeout) {
		return nil, fmt.Errorf("open %s: %w", path, ErrLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketLimits, bucketNotifications, bucketHistory} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db: db,
		limits: &limitStore{
			records: newBucket[storage.LimitRecord](db, bucketLimits),
			feed:    storage.NewFeed(),
		},
		notifications: &notificationStore{
			records: newBucket[storage.NotificationRecord](db, bucketNotifications),
			feed:    storage.NewFeed(),
		},
		history: &historyStore{
			records: newBucket[storage.DailyHistory](db, bucketHistory),
		},
	}, nil
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Limits() storage.LimitStore { return s.limits }
func (s *Store) Notifications() storage.NotificationStore { return s.notifications }
func (s *Store) History() storage.HistoryStore { return s.history }
