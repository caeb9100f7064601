package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/screenguard/internal/metrics"
	"github.com/goodtune/screenguard/internal/storage"
	"github.com/rs/zerolog"
)

// NoApp is the most-used label of a day without usage.
const NoApp = "N/A"

// HistoryCache serves N-day summaries, reading completed days from the
// history store and computing today live.
type HistoryCache struct {
	aggregator *Aggregator
	store      storage.HistoryStore
	clock      Clock
	location   *time.Location
	logger     zerolog.Logger
}

// NewHistoryCache creates a history cache. A nil location means time.Local.
func NewHistoryCache(aggregator *Aggregator, store storage.HistoryStore, clock Clock, location *time.Location, logger zerolog.Logger) *HistoryCache {
	if location == nil {
		location = time.Local
	}
	return &HistoryCache{
		aggregator: aggregator,
		store:      store,
		clock:      clock,
		location:   location,
		logger:     logger.With().Str("component", "history-cache").Logger(),
	}
}

// Get returns one summary per calendar day for the last days days, oldest
// first, ending with today. Past days missing from the store are computed and
// written back; today is never written.
func (h *HistoryCache) Get(ctx context.Context, days int) ([]DailySummary, error) {
	if days <= 0 {
		return []DailySummary{}, nil
	}

	now := h.clock.Now().In(h.location)
	today := StartOfDay(now)
	result := make([]DailySummary, days)

	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, -i)
		summary, err := h.day(ctx, day, now, i == 0)
		if err != nil {
			return nil, err
		}
		result[days-1-i] = summary
	}

	return result, nil
}

func (h *HistoryCache) day(ctx context.Context, day, now time.Time, isToday bool) (DailySummary, error) {
	key := DateKey(day)

	if isToday {
		metrics.HistoryCacheRequests.WithLabelValues("today").Inc()
		apps, err := h.aggregator.Aggregate(ctx, day, now, true)
		if err != nil {
			return DailySummary{}, fmt.Errorf("aggregate %s: %w", key, err)
		}
		return buildSummary(day, apps), nil
	}

	cached, err := h.store.Get(ctx, key)
	switch {
	case err == nil:
		metrics.HistoryCacheRequests.WithLabelValues("hit").Inc()
		return FromHistory(*cached), nil
	case !errors.Is(err, storage.ErrNotFound):
		h.logger.Warn().Err(err).Str("date", key).Msg("Failed to read history, recomputing day")
	}

	metrics.HistoryCacheRequests.WithLabelValues("miss").Inc()
	apps, err := h.aggregator.Aggregate(ctx, day, EndOfDay(day), false)
	if err != nil {
		return DailySummary{}, fmt.Errorf("aggregate %s: %w", key, err)
	}
	summary := buildSummary(day, apps)

	if err := h.store.Upsert(ctx, summary.History()); err != nil {
		h.logger.Warn().Err(err).Str("date", key).Msg("Failed to persist daily history")
	} else {
		h.logger.Debug().Str("date", key).Int64("total_ms", summary.TotalMillis).Msg("Backfilled daily history")
	}

	return summary, nil
}

func buildSummary(day time.Time, apps []AppUsageSummary) DailySummary {
	var total int64
	mostUsed := NoApp
	var best int64 = -1
	for _, app := range apps {
		total += app.UsageMillis
		if app.UsageMillis > best {
			best = app.UsageMillis
			mostUsed = app.DisplayName
		}
	}
	if total > MaxDayMillis {
		total = MaxDayMillis
	}

	return DailySummary{
		DateKey:     DateKey(day),
		TotalMillis: total,
		AppCount:    len(apps),
		MostUsedApp: mostUsed,
		DayLabel:    day.Format("Mon"),
		DateLabel:   day.Format("02/01"),
		AppList:     apps,
	}
}

// History converts the summary to its persisted form, dropping the app list.
func (d DailySummary) History() storage.DailyHistory {
	return storage.DailyHistory{
		Date:        d.DateKey,
		TotalMillis: d.TotalMillis,
		AppCount:    d.AppCount,
		MostUsedApp: d.MostUsedApp,
		DayName:     d.DayLabel,
		DateLabel:   d.DateLabel,
	}
}

// FromHistory rebuilds a summary from a persisted day. AppList stays empty.
func FromHistory(h storage.DailyHistory) DailySummary {
	return DailySummary{
		DateKey:     h.Date,
		TotalMillis: h.TotalMillis,
		AppCount:    h.AppCount,
		MostUsedApp: h.MostUsedApp,
		DayLabel:    h.DayName,
		DateLabel:   h.DateLabel,
		AppList:     []AppUsageSummary{},
	}
}
