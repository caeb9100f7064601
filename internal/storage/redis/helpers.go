package redis

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/screenguard/internal/storage"
)

// parseLimit converts a Redis hash to LimitRecord
func parseLimit(data map[string]string) (*storage.LimitRecord, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	minutes, err := strconv.Atoi(data["limit_minutes"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse limit_minutes: %w", err)
	}

	active, err := strconv.ParseBool(data["active"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse active: %w", err)
	}

	return &storage.LimitRecord{
		PackageID:    data["package"],
		DisplayName:  data["display_name"],
		LimitMinutes: minutes,
		Active:       active,
	}, nil
}

// parseNotification converts a Redis hash to NotificationRecord
func parseNotification(data map[string]string) (*storage.NotificationRecord, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	id, err := strconv.ParseInt(data["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse id: %w", err)
	}

	timestamp, err := time.Parse(time.RFC3339Nano, data["timestamp"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	return &storage.NotificationRecord{
		ID:        id,
		Title:     data["title"],
		Message:   data["message"],
		Timestamp: timestamp,
	}, nil
}

// parseHistory converts a Redis hash to DailyHistory
func parseHistory(data map[string]string) (*storage.DailyHistory, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	total, err := strconv.ParseInt(data["total_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total_ms: %w", err)
	}

	appCount, err := strconv.Atoi(data["app_count"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse app_count: %w", err)
	}

	return &storage.DailyHistory{
		Date:        data["date"],
		TotalMillis: total,
		AppCount:    appCount,
		MostUsedApp: data["most_used_app"],
		DayName:     data["day_name"],
		DateLabel:   data["date_label"],
	}, nil
}

// dateScore turns YYYY-MM-DD into a sortable YYYYMMDD score.
func dateScore(date string) (int64, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return strconv.ParseInt(strings.ReplaceAll(date, "-", ""), 10, 64)
}

func boolFlag(b bool) string {
	return strconv.FormatBool(b)
}
