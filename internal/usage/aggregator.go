package usage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goodtune/screenguard/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	// DefaultTodaySlack widens the end of a current-day query because the OS
	// under-reports activity close to the query boundary.
	DefaultTodaySlack = 60 * time.Second
)

// Source is the OS usage-statistics facility. An empty result and
// ErrPermissionDenied both mean "no data".
type Source interface {
	Query(ctx context.Context, interval Interval, start, end time.Time) ([]UsageSample, error)
}

// Resolver maps package identifiers to app metadata. Implementations must not
// fail: unknown packages resolve to the identifier itself and CategoryOther.
// Resolve is called once per package per aggregation.
type Resolver interface {
	Resolve(ctx context.Context, packageID string) (displayName string, category Category)
}

// AggregatorConfig holds aggregator configuration
type AggregatorConfig struct {
	TodaySlack time.Duration
}

// Aggregator turns raw usage samples into one summary per app.
type Aggregator struct {
	source     Source
	resolver   Resolver
	todaySlack time.Duration
	logger     zerolog.Logger
}

// NewAggregator creates a new usage aggregator
func NewAggregator(source Source, resolver Resolver, config AggregatorConfig, logger zerolog.Logger) *Aggregator {
	if config.TodaySlack == 0 {
		config.TodaySlack = DefaultTodaySlack
	}

	return &Aggregator{
		source:     source,
		resolver:   resolver,
		todaySlack: config.TodaySlack,
		logger:     logger.With().Str("component", "usage-aggregator").Logger(),
	}
}

// Aggregate returns the per-app usage for [start, end], sorted by descending usage.
//
// For the current day the running maximum of each app's buckets is used and
// samples are accepted from start onwards with no upper bound. For a past day
// the sample with the latest LastTimeUsed inside the window wins.
func (a *Aggregator) Aggregate(ctx context.Context, start, end time.Time, currentDay bool) ([]AppUsageSummary, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("invalid window: end %s before start %s", end, start)
	}

	queryEnd := end
	if currentDay {
		queryEnd = end.Add(a.todaySlack)
	}

	samples, err := a.source.Query(ctx, IntervalDaily, start, queryEnd)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			a.logger.Debug().Msg("Usage access denied, treating as no data")
			return []AppUsageSummary{}, nil
		}
		metrics.UsageSourceErrors.WithLabelValues("aggregate").Inc()
		return nil, fmt.Errorf("failed to query usage stats: %w", err)
	}
	if len(samples) == 0 {
		return []AppUsageSummary{}, nil
	}

	startMs := toMillis(start)
	endMs := toMillis(end)

	nonZero := make([]UsageSample, 0, len(samples))
	for _, s := range samples {
		if s.TotalForegroundMillis > 0 {
			nonZero = append(nonZero, s)
		}
	}

	var perApp map[string]int64
	if currentDay {
		filtered := filterSamples(nonZero, func(s UsageSample) bool {
			return s.LastTimeUsed >= startMs
		})
		if len(filtered) == 0 {
			// Right after midnight no bucket has closed yet.
			filtered = nonZero
		}
		perApp = maxPerPackage(filtered)
	} else {
		filtered := filterSamples(nonZero, func(s UsageSample) bool {
			return s.LastTimeUsed >= startMs && s.LastTimeUsed <= endMs
		})
		perApp = latestPerPackage(filtered)
	}

	ceiling := endMs - startMs
	if ceiling > MaxDayMillis {
		ceiling = MaxDayMillis
	}

	summaries := make([]AppUsageSummary, 0, len(perApp))
	for pkg, millis := range perApp {
		if millis > ceiling {
			millis = ceiling
		}
		name, category := a.resolver.Resolve(ctx, pkg)
		summaries = append(summaries, AppUsageSummary{
			PackageID:   pkg,
			DisplayName: name,
			UsageMillis: millis,
			Category:    category,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].UsageMillis != summaries[j].UsageMillis {
			return summaries[i].UsageMillis > summaries[j].UsageMillis
		}
		return summaries[i].PackageID < summaries[j].PackageID
	})

	a.logger.Debug().
		Time("start", start).
		Time("end", end).
		Bool("current_day", currentDay).
		Int("samples", len(samples)).
		Int("apps", len(summaries)).
		Msg("Aggregated usage window")

	return summaries, nil
}

// Today aggregates usage from the start of now's calendar day up to now.
func (a *Aggregator) Today(ctx context.Context, now time.Time) ([]AppUsageSummary, error) {
	return a.Aggregate(ctx, StartOfDay(now), now, true)
}

// Find returns the summary for packageID, if present.
func Find(summaries []AppUsageSummary, packageID string) (AppUsageSummary, bool) {
	for _, s := range summaries {
		if s.PackageID == packageID {
			return s, true
		}
	}
	return AppUsageSummary{}, false
}

func filterSamples(samples []UsageSample, keep func(UsageSample) bool) []UsageSample {
	out := make([]UsageSample, 0, len(samples))
	for _, s := range samples {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func maxPerPackage(samples []UsageSample) map[string]int64 {
	out := make(map[string]int64)
	for _, s := range samples {
		if cur, ok := out[s.PackageID]; !ok || s.TotalForegroundMillis > cur {
			out[s.PackageID] = s.TotalForegroundMillis
		}
	}
	return out
}

func latestPerPackage(samples []UsageSample) map[string]int64 {
	type best struct {
		lastUsed int64
		millis   int64
	}
	latest := make(map[string]best)
	for _, s := range samples {
		cur, ok := latest[s.PackageID]
		if !ok || s.LastTimeUsed > cur.lastUsed {
			latest[s.PackageID] = best{lastUsed: s.LastTimeUsed, millis: s.TotalForegroundMillis}
		}
	}
	out := make(map[string]int64, len(latest))
	for pkg, b := range latest {
		out[pkg] = b.millis
	}
	return out
}
