package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// daySource reports one hour of game use and half an hour of video for every
// day asked about, stamped within that day.
func daySource() *fakeSource {
	return &fakeSource{fn: func(start, _ time.Time) ([]UsageSample, error) {
		return []UsageSample{
			{PackageID: "com.example.game", TotalForegroundMillis: 3_600_000, LastTimeUsed: ms(start.Add(2 * time.Hour))},
			{PackageID: "com.example.video", TotalForegroundMillis: 1_800_000, LastTimeUsed: ms(start.Add(3 * time.Hour))},
		}, nil
	}}
}

func newTestCache(source *fakeSource, store *memHistory, clock Clock) *HistoryCache {
	return NewHistoryCache(newTestAggregator(source), store, clock, time.UTC, zerolog.Nop())
}

func TestHistoryCacheFirstCallBackfillsPastDays(t *testing.T) {
	source := daySource()
	store := newMemHistory()
	clock := &TestClock{CurrentTime: testNow}

	summaries, err := newTestCache(source, store, clock).Get(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, "2025-01-13", summaries[0].DateKey)
	assert.Equal(t, "2025-01-14", summaries[1].DateKey)
	assert.Equal(t, "2025-01-15", summaries[2].DateKey)

	// The two oldest are persisted, today never is
	assert.Equal(t, []string{"2025-01-13", "2025-01-14"}, store.dates())

	day := summaries[0]
	assert.Equal(t, int64(5_400_000), day.TotalMillis)
	assert.Equal(t, 2, day.AppCount)
	assert.Equal(t, "Game", day.MostUsedApp)
	assert.Equal(t, "Mon", day.DayLabel)
	assert.Equal(t, "13/01", day.DateLabel)
	assert.Len(t, day.AppList, 2)
}

func TestHistoryCacheSecondCallServesPastDaysFromStore(t *testing.T) {
	source := daySource()
	store := newMemHistory()
	clock := &TestClock{CurrentTime: testNow}
	cache := newTestCache(source, store, clock)

	first, err := cache.Get(context.Background(), 3)
	require.NoError(t, err)

	source.reset()
	clock.Advance(time.Hour)
	second, err := cache.Get(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, second, 3)

	// Only today is recomputed
	calls := source.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, testDay, calls[0].start)

	for i := 0; i < 2; i++ {
		assert.Equal(t, first[i].History(), second[i].History())
		assert.Empty(t, second[i].AppList)
	}
	assert.Equal(t, "2025-01-15", second[2].DateKey)
	assert.NotEmpty(t, second[2].AppList)
}

func TestHistoryCacheIdempotentForPersistedDays(t *testing.T) {
	source := daySource()
	store := newMemHistory()
	clock := &TestClock{CurrentTime: testNow}
	cache := newTestCache(source, store, clock)

	_, err := cache.Get(context.Background(), 5)
	require.NoError(t, err)

	a, err := cache.Get(context.Background(), 5)
	require.NoError(t, err)
	source.reset()
	b, err := cache.Get(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, a[:4], b[:4])
	for _, q := range source.calls() {
		assert.Equal(t, testDay, q.start, "no query for a persisted day")
	}
}

func TestHistoryCacheEmptyDay(t *testing.T) {
	store := newMemHistory()
	summaries, err := newTestCache(staticSource(), store, &TestClock{CurrentTime: testNow}).Get(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, NoApp, summaries[0].MostUsedApp)
	assert.Zero(t, summaries[0].TotalMillis)
	assert.Zero(t, summaries[0].AppCount)
}

func TestHistoryCacheWriteFailureIsSkipped(t *testing.T) {
	store := newMemHistory()
	store.writeErr = errors.New("disk full")

	summaries, err := newTestCache(daySource(), store, &TestClock{CurrentTime: testNow}).Get(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, int64(5_400_000), summaries[0].TotalMillis)
	assert.Empty(t, store.dates())
}

func TestHistoryCacheReadFailureRecomputes(t *testing.T) {
	source := daySource()
	store := newMemHistory()
	store.getErr = errors.New("corrupt page")

	summaries, err := newTestCache(source, store, &TestClock{CurrentTime: testNow}).Get(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Len(t, source.calls(), 2)
}

func TestHistoryCacheSourceFailure(t *testing.T) {
	source := &fakeSource{fn: func(time.Time, time.Time) ([]UsageSample, error) {
		return nil, errors.New("agent offline")
	}}

	_, err := newTestCache(source, newMemHistory(), &TestClock{CurrentTime: testNow}).Get(context.Background(), 2)
	assert.Error(t, err)
}

func TestHistoryCacheZeroDays(t *testing.T) {
	summaries, err := newTestCache(daySource(), newMemHistory(), &TestClock{CurrentTime: testNow}).Get(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestSummaryTotalClampedToDay(t *testing.T) {
	apps := []AppUsageSummary{
		{PackageID: "a", DisplayName: "A", UsageMillis: MaxDayMillis},
		{PackageID: "b", DisplayName: "B", UsageMillis: MaxDayMillis / 2},
	}
	summary := buildSummary(testDay, apps)
	assert.Equal(t, MaxDayMillis, summary.TotalMillis)
	assert.Equal(t, "A", summary.MostUsedApp)
	assert.Equal(t, "Wed", summary.DayLabel)
}
