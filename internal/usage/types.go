package usage

import (
	"errors"
	"time"
)

// ErrPermissionDenied is returned by a Source when the platform refuses access
// to usage statistics. Callers treat it as "no data".
var ErrPermissionDenied = errors.New("usage: permission denied")

// Interval is the bucket granularity requested from a Source.
type Interval string

const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
	IntervalBest    Interval = "best"
)

// Category groups apps for the statistics views.
type Category string

const (
	CategoryGames        Category = "Games"
	CategoryMedia        Category = "Media"
	CategorySocial       Category = "Social"
	CategoryProductivity Category = "Productivity"
	CategorySystem       Category = "System"
	CategoryOther        Category = "Other"
)

// MaxDayMillis is the length of one calendar day in milliseconds.
const MaxDayMillis = int64(24 * time.Hour / time.Millisecond)

// UsageSample is one raw observation returned by a Source for a queried window.
// Several samples may exist for the same package when OS buckets overlap.
type UsageSample struct {
	PackageID             string `json:"package"`
	TotalForegroundMillis int64  `json:"total_foreground_ms"`
	LastTimeUsed          int64  `json:"last_time_used"`
}

// AppUsageSummary is the deduplicated usage of one app within a window.
type AppUsageSummary struct {
	PackageID   string   `json:"package"`
	DisplayName string   `json:"display_name"`
	UsageMillis int64    `json:"usage_ms"`
	Category    Category `json:"category"`
}

// DailySummary describes one calendar day. AppList is empty when the day was
// served from the persisted history.
type DailySummary struct {
	DateKey     string            `json:"date"`
	TotalMillis int64             `json:"total_ms"`
	AppCount    int               `json:"app_count"`
	MostUsedApp string            `json:"most_used_app"`
	DayLabel    string            `json:"day"`
	DateLabel   string            `json:"date_label"`
	AppList     []AppUsageSummary `json:"apps,omitempty"`
}

// Usage returns the total as a duration.
func (d DailySummary) Usage() time.Duration {
	return time.Duration(d.TotalMillis) * time.Millisecond
}
