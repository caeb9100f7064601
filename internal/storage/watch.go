package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Subscriber hands out change signals. The returned func releases the subscription.
type Subscriber interface {
	Subscribe() (<-chan struct{}, func())
}

// Feed is an in-process change signal fanned out to every subscriber.
// Signals coalesce: a slow subscriber sees at most one pending change.
type Feed struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan struct{})}
}

// Subscribe registers a new subscriber.
func (f *Feed) Subscribe() (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	ch := make(chan struct{}, 1)
	f.subs[id] = ch

	return ch, func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Publish signals every subscriber without blocking.
func (f *Feed) Publish() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// VersionFunc reports a counter that moves whenever another process commits.
type VersionFunc func(ctx context.Context) (int64, error)

// PollingFeed is a Feed that also signals when a shared version counter
// moves. It serves file databases opened by several processes at once,
// where local publishes never reach the other handles.
type PollingFeed struct {
	*Feed
	version  VersionFunc
	interval atomic.Int64
}

// NewPollingFeed creates a feed polling version every interval.
func NewPollingFeed(version VersionFunc, interval time.Duration) *PollingFeed {
	p := &PollingFeed{Feed: NewFeed(), version: version}
	p.SetInterval(interval)
	return p
}

// SetInterval changes the poll interval for subscriptions made afterwards.
// Non-positive values select one second.
func (p *PollingFeed) SetInterval(d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	p.interval.Store(int64(d))
}

// Subscribe reads the baseline version before returning, so a commit made
// after the caller's first load is always signalled.
func (p *PollingFeed) Subscribe() (<-chan struct{}, func()) {
	local, release := p.Feed.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())

	last, err := p.version(ctx)
	known := err == nil

	out := make(chan struct{}, 1)
	signal := func() {
		select {
		case out <- struct{}{}:
		default:
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Duration(p.interval.Load()))
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-local:
				signal()
			case <-ticker.C:
				v, err := p.version(ctx)
				if err != nil {
					continue
				}
				if known && v != last {
					signal()
				}
				last, known = v, true
			}
		}
	}()

	return out, func() {
		cancel()
		<-done
		release()
	}
}

// Watch emits load's result immediately and again after every change signal.
// The returned channel is closed once ctx is done. Failed loads are skipped.
func Watch[T any](ctx context.Context, feed Subscriber, load func(context.Context) ([]T, error)) <-chan []T {
	changes, unsubscribe := feed.Subscribe()
	out := make(chan []T, 1)

	go func() {
		defer close(out)
		defer unsubscribe()

		emit := func() bool {
			items, err := load(ctx)
			if err != nil {
				return ctx.Err() == nil
			}
			select {
			case out <- items:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok || !emit() {
					return
				}
			}
		}
	}()

	return out
}
