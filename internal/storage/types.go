package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// LimitRecord is a user-defined daily limit for one app.
type LimitRecord struct {
	PackageID    string `json:"package"`
	DisplayName  string `json:"display_name"`
	LimitMinutes int    `json:"limit_minutes"`
	Active       bool   `json:"active"`
}

// Validate checks the record before it is written.
func (l LimitRecord) Validate() error {
	if strings.TrimSpace(l.PackageID) == "" {
		return fmt.Errorf("%w: package is required", ErrInvalidLimit)
	}
	if l.LimitMinutes <= 0 {
		return fmt.Errorf("%w: limit_minutes must be positive, got %d", ErrInvalidLimit, l.LimitMinutes)
	}
	return nil
}

// NotificationRecord is one entry of the notification log.
type NotificationRecord struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// DailyHistory is the persisted aggregate of a completed day. The per-app
// breakdown is not stored.
type DailyHistory struct {
	Date        string `json:"date"` // YYYY-MM-DD
	TotalMillis int64  `json:"total_ms"`
	AppCount    int    `json:"app_count"`
	MostUsedApp string `json:"most_used_app"`
	DayName     string `json:"day_name"`
	DateLabel   string `json:"date_label"`
}

// SortLimits orders limits by package identifier.
func SortLimits(limits []LimitRecord) {
	sort.Slice(limits, func(i, j int) bool {
		return limits[i].PackageID < limits[j].PackageID
	})
}

// SortNotifications orders entries newest first, breaking ties by id.
func SortNotifications(entries []NotificationRecord) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID > entries[j].ID
	})
}

// SortHistory orders entries newest date first and truncates to limit (<= 0 keeps all).
func SortHistory(entries []DailyHistory, limit int) []DailyHistory {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date > entries[j].Date
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// ActiveOnly filters limits down to the active ones.
func ActiveOnly(limits []LimitRecord) []LimitRecord {
	out := make([]LimitRecord, 0, len(limits))
	for _, l := range limits {
		if l.Active {
			out = append(out, l)
		}
	}
	return out
}
