package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goodtune/screenguard/internal/storage"

	_ "modernc.org/sqlite" // register sqlite driver
)

// schemaVersion is stored in PRAGMA user_version. A database written with
// any other version is wiped and recreated; there is no upgrade path.
const schemaVersion = 2

// DefaultPollInterval is how often watchers check for commits made by other
// processes sharing the file.
const DefaultPollInterval = time.Second

// Store implements the storage.Store interface using SQLite. Several
// processes may open the same file; the daemon and the CLI usually do.
type Store struct {
	db            *sql.DB
	limitsFeed    *storage.PollingFeed
	notifications *storage.PollingFeed
}

// Open opens or creates the database at path and brings the schema to the
// current version.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite limitation
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &Store{db: db}
	s.limitsFeed = storage.NewPollingFeed(s.dataVersion, DefaultPollInterval)
	s.notifications = storage.NewPollingFeed(s.dataVersion, DefaultPollInterval)
	return s, nil
}

// dataVersion moves whenever another connection commits. The pool holds a
// single connection, so successive reads compare like with like.
func (s *Store) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// SetPollInterval changes how often later Watch calls poll for external commits.
func (s *Store) SetPollInterval(d time.Duration) {
	s.limitsFeed.SetInterval(d)
	s.notifications.SetInterval(d)
}

// migrate recreates every table when the stored version differs.
func migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current == schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"app_limits", "notifications", "usage_history"} {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return tx.Commit()
}

const schemaSQL = `
CREATE TABLE app_limits (
	package_id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	limit_minutes INTEGER NOT NULL,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp_ms INTEGER NOT NULL
);

CREATE INDEX idx_notifications_timestamp ON notifications(timestamp_ms DESC);

CREATE TABLE usage_history (
	date TEXT PRIMARY KEY,
	total_ms INTEGER NOT NULL,
	app_count INTEGER NOT NULL,
	most_used_app TEXT NOT NULL,
	day_name TEXT NOT NULL,
	date_label TEXT NOT NULL
);
`

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Limits returns the limit store.
func (s *Store) Limits() storage.LimitStore {
	return &limitStore{db: s.db, feed: s.limitsFeed}
}

// Notifications returns the notification log store.
func (s *Store) Notifications() storage.NotificationStore {
	return &notificationStore{db: s.db, feed: s.notifications}
}

// History returns the daily history store.
func (s *Store) History() storage.HistoryStore {
	return &historyStore{db: s.db}
}
