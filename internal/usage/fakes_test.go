package usage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/screenguard/internal/storage"
)

type query struct {
	start, end time.Time
}

// fakeSource answers every query through fn and records the windows asked for.
type fakeSource struct {
	mu      sync.Mutex
	queries []query
	fn      func(start, end time.Time) ([]UsageSample, error)
}

func (f *fakeSource) Query(_ context.Context, _ Interval, start, end time.Time) ([]UsageSample, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query{start: start, end: end})
	f.mu.Unlock()
	if f.fn == nil {
		return nil, nil
	}
	return f.fn(start, end)
}

func (f *fakeSource) calls() []query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]query(nil), f.queries...)
}

func (f *fakeSource) reset() {
	f.mu.Lock()
	f.queries = nil
	f.mu.Unlock()
}

func staticSource(samples ...UsageSample) *fakeSource {
	return &fakeSource{fn: func(time.Time, time.Time) ([]UsageSample, error) {
		return samples, nil
	}}
}

type mapResolver map[string]string

func (m mapResolver) Resolve(_ context.Context, pkg string) (string, Category) {
	if name, ok := m[pkg]; ok {
		return name, CategoryOther
	}
	return pkg, CategoryOther
}

// countingResolver records how often each package is resolved.
type countingResolver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingResolver) Resolve(_ context.Context, pkg string) (string, Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[pkg]++
	return pkg, CategoryOther
}

// memHistory is an in-memory HistoryStore with injectable failures.
type memHistory struct {
	mu       sync.Mutex
	entries  map[string]storage.DailyHistory
	getErr   error
	writeErr error
	writes   int
}

func newMemHistory() *memHistory {
	return &memHistory{entries: make(map[string]storage.DailyHistory)}
}

func (m *memHistory) Get(_ context.Context, date string) (*storage.DailyHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	h, ok := m.entries[date]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &h, nil
}

func (m *memHistory) Upsert(_ context.Context, h storage.DailyHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.entries[h.Date] = h
	return nil
}

func (m *memHistory) List(_ context.Context, limit int) ([]storage.DailyHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.DailyHistory, 0, len(m.entries))
	for _, h := range m.entries {
		out = append(out, h)
	}
	return storage.SortHistory(out, limit), nil
}

func (m *memHistory) DeleteBefore(_ context.Context, cutoff string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0)
	for k := range m.entries {
		if k < cutoff {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		delete(m.entries, k)
	}
	return len(keys), nil
}

func (m *memHistory) dates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
