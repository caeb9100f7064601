package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/screenguard/internal/storage"
)

func TestLimitStoreListActive(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	limits := []storage.LimitRecord{
		{PackageID: "com.example.video", DisplayName: "Video", LimitMinutes: 60, Active: true},
		{PackageID: "com.example.chat", DisplayName: "Chat", LimitMinutes: 15, Active: false},
		{PackageID: "com.example.game", DisplayName: "Game", LimitMinutes: 30, Active: true},
	}

	for _, limit := range limits {
		if err := store.Limits().Upsert(context.Background(), limit); err != nil {
			t.Fatalf("upsert limit: %v", err)
		}
	}

	active, err := store.Limits().ListActive(context.Background())
	if err != nil {
		t.Fatalf("list active limits: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active limits, got %d", len(active))
	}
	if active[0].PackageID != "com.example.game" {
		t.Fatalf("expected limits ordered by package, got %s first", active[0].PackageID)
	}
}

func TestLimitStoreUpsertReplaces(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.Limits().Upsert(ctx, storage.LimitRecord{PackageID: "com.example.game", LimitMinutes: 30, Active: true}); err != nil {
		t.Fatalf("upsert limit: %v", err)
	}
	if err := store.Limits().Upsert(ctx, storage.LimitRecord{PackageID: "com.example.game", LimitMinutes: 45, Active: false}); err != nil {
		t.Fatalf("upsert limit: %v", err)
	}

	all, err := store.Limits().List(ctx)
	if err != nil {
		t.Fatalf("list limits: %v", err)
	}
	if len(all) != 1 || all[0].LimitMinutes != 45 || all[0].Active {
		t.Fatalf("expected single replaced limit, got %+v", all)
	}

	if err := store.Limits().Upsert(ctx, storage.LimitRecord{PackageID: "com.example.game", LimitMinutes: 0}); !errors.Is(err, storage.ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestLimitStoreDelete(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.Limits().Delete(ctx, "com.example.none"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Limits().Upsert(ctx, storage.LimitRecord{PackageID: "com.example.game", LimitMinutes: 30, Active: true}); err != nil {
		t.Fatalf("upsert limit: %v", err)
	}
	if err := store.Limits().Delete(ctx, "com.example.game"); err != nil {
		t.Fatalf("delete limit: %v", err)
	}
	if _, err := store.Limits().Get(ctx, "com.example.game"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestLimitStoreWatch(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := store.Limits().Watch(ctx)
	if snapshot := next(t, updates); len(snapshot) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d", len(snapshot))
	}

	if err := store.Limits().Upsert(ctx, storage.LimitRecord{PackageID: "com.example.game", LimitMinutes: 30, Active: true}); err != nil {
		t.Fatalf("upsert limit: %v", err)
	}
	if snapshot := next(t, updates); len(snapshot) != 1 {
		t.Fatalf("expected 1 limit after upsert, got %d", len(snapshot))
	}
}

func TestNotificationStoreLog(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	notes := store.Notifications()
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		id, err := notes.Add(ctx, storage.NotificationRecord{
			Title:     "Heads up!",
			Message:   "message",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("add notification: %v", err)
		}
		if id != int64(i+1) {
			t.Fatalf("expected id %d, got %d", i+1, id)
		}
	}

	list, err := notes.List(ctx)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(list) != 3 || list[0].ID != 3 {
		t.Fatalf("expected newest first, got %+v", list)
	}

	deleted, err := notes.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("delete notifications: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted notifications, got %d", deleted)
	}

	id, err := notes.Add(ctx, storage.NotificationRecord{Title: "again"})
	if err != nil {
		t.Fatalf("add notification: %v", err)
	}
	if id != 4 {
		t.Fatalf("expected ids to keep increasing after clear, got %d", id)
	}
}

func TestHistoryStoreRetention(t *testing.T) {
	store := openTestStore(t)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	history := store.History()

	for _, date := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		if err := history.Upsert(ctx, storage.DailyHistory{Date: date, TotalMillis: 60_000, AppCount: 1, MostUsedApp: "Game"}); err != nil {
			t.Fatalf("upsert history: %v", err)
		}
	}

	recent, err := history.List(ctx, 2)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(recent) != 2 || recent[0].Date != "2024-01-03" {
		t.Fatalf("expected two newest entries, got %+v", recent)
	}

	deleted, err := history.DeleteBefore(ctx, "2024-01-03")
	if err != nil {
		t.Fatalf("delete history before: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted entries, got %d", deleted)
	}

	if _, err := history.Get(ctx, "2024-01-01"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screenguard.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Limits().Upsert(context.Background(), storage.LimitRecord{PackageID: "com.example.game", LimitMinutes: 30, Active: true}); err != nil {
		t.Fatalf("upsert limit: %v", err)
	}
	_ = store.Close()

	store, err = Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, err := store.Limits().Get(context.Background(), "com.example.game"); err != nil {
		t.Fatalf("get limit after reopen: %v", err)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "screenguard.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func next[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("watch channel closed")
		}
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}

func TestSecondOpenReportsLocked(t *testing.T) {
	saved := lockTimeout
	lockTimeout = 50 * time.Millisecond
	t.Cleanup(func() { lockTimeout = saved })

	path := filepath.Join(t.TempDir(), "screenguard.bolt")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	second, err := Open(path)
	if err == nil {
		_ = second.Close()
		t.Fatal("expected the second handle to be refused")
	}
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
