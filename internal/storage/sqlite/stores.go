package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/screenguard/internal/storage"
)

type limitStore struct {
	db   *sql.DB
	feed *storage.PollingFeed
}

func (s *limitStore) Get(ctx context.Context, packageID string) (*storage.LimitRecord, error) {
	var l storage.LimitRecord
	err := s.db.QueryRowContext(ctx,
		"SELECT package_id, display_name, limit_minutes, active FROM app_limits WHERE package_id = ?",
		packageID,
	).Scan(&l.PackageID, &l.DisplayName, &l.LimitMinutes, &l.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *limitStore) List(ctx context.Context) ([]storage.LimitRecord, error) {
	return s.query(ctx, "SELECT package_id, display_name, limit_minutes, active FROM app_limits ORDER BY package_id")
}

func (s *limitStore) ListActive(ctx context.Context) ([]storage.LimitRecord, error) {
	return s.query(ctx, "SELECT package_id, display_name, limit_minutes, active FROM app_limits WHERE active = 1 ORDER BY package_id")
}

func (s *limitStore) query(ctx context.Context, q string) ([]storage.LimitRecord, error) {
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	limits := make([]storage.LimitRecord, 0)
	for rows.Next() {
		var l storage.LimitRecord
		if err := rows.Scan(&l.PackageID, &l.DisplayName, &l.LimitMinutes, &l.Active); err != nil {
			return nil, err
		}
		limits = append(limits, l)
	}
	return limits, rows.Err()
}

func (s *limitStore) Upsert(ctx context.Context, limit storage.LimitRecord) error {
	if err := limit.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO app_limits (package_id, display_name, limit_minutes, active) VALUES (?, ?, ?, ?)",
		limit.PackageID, limit.DisplayName, limit.LimitMinutes, limit.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert limit %s: %w", limit.PackageID, err)
	}
	s.feed.Publish()
	return nil
}

func (s *limitStore) Delete(ctx context.Context, packageID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM app_limits WHERE package_id = ?", packageID)
	if err != nil {
		return fmt.Errorf("delete limit %s: %w", packageID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrNotFound
	}
	s.feed.Publish()
	return nil
}

func (s *limitStore) Watch(ctx context.Context) <-chan []storage.LimitRecord {
	return storage.Watch(ctx, s.feed, s.List)
}

type notificationStore struct {
	db   *sql.DB
	feed *storage.PollingFeed
}

func (s *notificationStore) Add(ctx context.Context, n storage.NotificationRecord) (int64, error) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO notifications (title, message, timestamp_ms) VALUES (?, ?, ?)",
		n.Title, n.Message, n.Timestamp.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("add notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.feed.Publish()
	return id, nil
}

func (s *notificationStore) List(ctx context.Context) ([]storage.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, message, timestamp_ms FROM notifications ORDER BY timestamp_ms DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := make([]storage.NotificationRecord, 0)
	for rows.Next() {
		var (
			n  storage.NotificationRecord
			ms int64
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Message, &ms); err != nil {
			return nil, err
		}
		n.Timestamp = time.UnixMilli(ms).UTC()
		entries = append(entries, n)
	}
	return entries, rows.Err()
}

func (s *notificationStore) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM notifications")
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.feed.Publish()
	return int(n), nil
}

func (s *notificationStore) Watch(ctx context.Context) <-chan []storage.NotificationRecord {
	return storage.Watch(ctx, s.feed, s.List)
}

type historyStore struct {
	db *sql.DB
}

func (s *historyStore) Get(ctx context.Context, date string) (*storage.DailyHistory, error) {
	var h storage.DailyHistory
	err := s.db.QueryRowContext(ctx,
		"SELECT date, total_ms, app_count, most_used_app, day_name, date_label FROM usage_history WHERE date = ?",
		date,
	).Scan(&h.Date, &h.TotalMillis, &h.AppCount, &h.MostUsedApp, &h.DayName, &h.DateLabel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *historyStore) Upsert(ctx context.Context, h storage.DailyHistory) error {
	if _, err := time.Parse("2006-01-02", h.Date); err != nil {
		return fmt.Errorf("invalid history date %q: %w", h.Date, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_history (date, total_ms, app_count, most_used_app, day_name, date_label)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_ms = excluded.total_ms,
			app_count = excluded.app_count,
			most_used_app = excluded.most_used_app,
			day_name = excluded.day_name,
			date_label = excluded.date_label`,
		h.Date, h.TotalMillis, h.AppCount, h.MostUsedApp, h.DayName, h.DateLabel,
	)
	if err != nil {
		return fmt.Errorf("upsert history %s: %w", h.Date, err)
	}
	return nil
}

func (s *historyStore) List(ctx context.Context, limit int) ([]storage.DailyHistory, error) {
	q := "SELECT date, total_ms, app_count, most_used_app, day_name, date_label FROM usage_history ORDER BY date DESC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := make([]storage.DailyHistory, 0)
	for rows.Next() {
		var h storage.DailyHistory
		if err := rows.Scan(&h.Date, &h.TotalMillis, &h.AppCount, &h.MostUsedApp, &h.DayName, &h.DateLabel); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

func (s *historyStore) DeleteBefore(ctx context.Context, cutoffDate string) (int, error) {
	if _, err := time.Parse("2006-01-02", cutoffDate); err != nil {
		return 0, fmt.Errorf("invalid cutoff date: %w", err)
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM usage_history WHERE date < ?", cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("delete history before %s: %w", cutoffDate, err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
