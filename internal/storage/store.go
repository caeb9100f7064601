package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a record is missing from storage.
	ErrNotFound = errors.New("storage: record not found")

	// ErrInvalidLimit is returned when a limit record fails validation.
	ErrInvalidLimit = errors.New("storage: invalid limit")
)

// Store represents the root storage interface. One instance is created per
// process and handed to every component that needs persistence.
type Store interface {
	Close() error
	Limits() LimitStore
	Notifications() NotificationStore
	History() HistoryStore
}

// LimitStore manages per-app daily limits keyed by package identifier.
type LimitStore interface {
	Get(ctx context.Context, packageID string) (*LimitRecord, error)
	List(ctx context.Context) ([]LimitRecord, error)
	ListActive(ctx context.Context) ([]LimitRecord, error)
	// Upsert replaces any existing record with the same package identifier.
	Upsert(ctx context.Context, limit LimitRecord) error
	Delete(ctx context.Context, packageID string) error
	// Watch emits the full limit list now and after every change until ctx is done.
	Watch(ctx context.Context) <-chan []LimitRecord
}

// NotificationStore is the append-only log of alerts shown to the user.
type NotificationStore interface {
	Add(ctx context.Context, n NotificationRecord) (int64, error)
	// List returns entries newest first.
	List(ctx context.Context) ([]NotificationRecord, error)
	DeleteAll(ctx context.Context) (int, error)
	Watch(ctx context.Context) <-chan []NotificationRecord
}

// HistoryStore holds completed daily summaries keyed by date (YYYY-MM-DD).
type HistoryStore interface {
	Get(ctx context.Context, date string) (*DailyHistory, error)
	Upsert(ctx context.Context, h DailyHistory) error
	// List returns at most limit entries, newest first.
	List(ctx context.Context, limit int) ([]DailyHistory, error)
	DeleteBefore(ctx context.Context, cutoffDate string) (int, error)
}
