package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/goodtune/screenguard/internal/config"
	"github.com/goodtune/screenguard/internal/storage"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() returns "host:port", so the port stays unset
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}

	return store, mr
}

func TestOpenRejectsBadTimeout(t *testing.T) {
	_, err := Open(config.RedisConfig{Host: "localhost:1", DialTimeout: "soon", ReadTimeout: "1s", WriteTimeout: "1s"})
	if err == nil {
		t.Fatal("Expected error for invalid dial_timeout")
	}
}

func TestLimitStore_UpsertAndList(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	limits := store.Limits()

	for _, l := range []storage.LimitRecord{
		{PackageID: "com.example.video", DisplayName: "Video", LimitMinutes: 60, Active: true},
		{PackageID: "com.example.game", DisplayName: "Game", LimitMinutes: 30, Active: true},
		{PackageID: "com.example.chat", DisplayName: "Chat", LimitMinutes: 15, Active: false},
	} {
		if err := limits.Upsert(ctx, l); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	// Replacing keeps one record per package
	if err := limits.Upsert(ctx, storage.LimitRecord{PackageID: "com.example.game", DisplayName: "Game", LimitMinutes: 45, Active: true}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	all, err := limits.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 limits, got %d", len(all))
	}
	if all[0].PackageID != "com.example.chat" || all[1].LimitMinutes != 45 {
		t.Errorf("Unexpected ordering or value: %+v", all)
	}

	active, err := limits.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("Expected 2 active limits, got %d", len(active))
	}

	got, err := limits.Get(ctx, "com.example.video")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.DisplayName != "Video" || !got.Active {
		t.Errorf("Unexpected limit: %+v", got)
	}
}

func TestLimitStore_RejectsInvalid(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	err := store.Limits().Upsert(context.Background(), storage.LimitRecord{PackageID: "com.example.game"})
	if !errors.Is(err, storage.ErrInvalidLimit) {
		t.Fatalf("Expected ErrInvalidLimit, got %v", err)
	}
}

func TestLimitStore_Delete(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	limits := store.Limits()

	if err := limits.Delete(ctx, "com.example.none"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	if err := limits.Upsert(ctx, storage.LimitRecord{PackageID: "com.example.game", LimitMinutes: 30, Active: true}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := limits.Delete(ctx, "com.example.game"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := limits.Get(ctx, "com.example.game"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestLimitStore_WriteSucceedsWhenAnnounceFails(t *testing.T) {
	store, mr := setupTestStore(t)
	defer func() { _ = store.Close() }()

	// Announcements go through a client that is already closed
	dead := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	_ = dead.Close()
	limits := &limitStore{
		client: store.client,
		feed:   &channelFeed{client: dead, channel: channelLimits, logger: zerolog.Nop()},
	}

	ctx := context.Background()
	if err := limits.Upsert(ctx, storage.LimitRecord{PackageID: "com.example.game", LimitMinutes: 30, Active: true}); err != nil {
		t.Fatalf("Upsert reported failure for a committed write: %v", err)
	}
	got, err := limits.Get(ctx, "com.example.game")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.LimitMinutes != 30 {
		t.Errorf("Expected 30 minutes, got %d", got.LimitMinutes)
	}
	if err := limits.Delete(ctx, "com.example.game"); err != nil {
		t.Fatalf("Delete reported failure for a committed write: %v", err)
	}
}

func TestLimitStore_Watch(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limits := store.Limits()
	updates := limits.Watch(ctx)

	first := waitFor(t, updates)
	if len(first) != 0 {
		t.Fatalf("Expected empty initial snapshot, got %d", len(first))
	}

	if err := limits.Upsert(ctx, storage.LimitRecord{PackageID: "com.example.game", LimitMinutes: 30, Active: true}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	next := waitFor(t, updates)
	if len(next) != 1 || next[0].PackageID != "com.example.game" {
		t.Fatalf("Unexpected snapshot after upsert: %+v", next)
	}
}

func TestNotificationStore_AddListClear(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	notes := store.Notifications()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	for i, title := range []string{"first", "second", "third"} {
		id, err := notes.Add(ctx, storage.NotificationRecord{
			Title:     title,
			Message:   "body",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if id != int64(i+1) {
			t.Errorf("Expected id %d, got %d", i+1, id)
		}
	}

	list, err := notes.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 || list[0].Title != "third" || list[2].Title != "first" {
		t.Fatalf("Expected newest first, got %+v", list)
	}
	if !list[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("Timestamp not preserved: %v", list[0].Timestamp)
	}

	deleted, err := notes.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 deleted, got %d", deleted)
	}

	list, err = notes.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected empty log, got %d", len(list))
	}
}

func TestHistoryStore_UpsertListDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	history := store.History()

	for _, date := range []string{"2025-01-01", "2025-01-03", "2025-01-02"} {
		if err := history.Upsert(ctx, storage.DailyHistory{
			Date:        date,
			TotalMillis: 3_600_000,
			AppCount:    2,
			MostUsedApp: "Game",
			DayName:     "Wed",
			DateLabel:   date[8:] + "/" + date[5:7],
		}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	if err := history.Upsert(ctx, storage.DailyHistory{Date: "yesterday"}); err == nil {
		t.Error("Expected error for invalid date")
	}

	got, err := history.Get(ctx, "2025-01-02")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.TotalMillis != 3_600_000 || got.DateLabel != "02/01" {
		t.Errorf("Unexpected history entry: %+v", got)
	}

	if _, err := history.Get(ctx, "2024-12-31"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	recent, err := history.List(ctx, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(recent) != 2 || recent[0].Date != "2025-01-03" || recent[1].Date != "2025-01-02" {
		t.Fatalf("Unexpected list: %+v", recent)
	}

	deleted, err := history.DeleteBefore(ctx, "2025-01-02")
	if err != nil {
		t.Fatalf("DeleteBefore failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted entry, got %d", deleted)
	}
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}
