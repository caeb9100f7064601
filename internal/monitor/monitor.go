// Package monitor enforces daily app limits. A single polling loop detects
// the foreground app, compares today's usage with the active limits, warns
// as usage approaches a limit and raises the block screen once it is spent.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/screenguard/internal/metrics"
	"github.com/goodtune/screenguard/internal/notify"
	"github.com/goodtune/screenguard/internal/storage"
	"github.com/goodtune/screenguard/internal/usage"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval     = 3 * time.Second
	DefaultErrorBackoff = 5 * time.Second
	DefaultChannel      = "limits"

	warningTitle = "Heads up!"
)

// Notifier delivers alerts. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// Blocker raises the full-screen interstitial for a blocked app.
type Blocker interface {
	PresentBlockScreen(ctx context.Context, appName string) error
}

// TodayUsage reports the per-app usage since the start of now's day.
type TodayUsage interface {
	Today(ctx context.Context, now time.Time) ([]usage.AppUsageSummary, error)
}

// Config holds monitor configuration
type Config struct {
	Interval       time.Duration
	ErrorBackoff   time.Duration
	SelfPackage    string
	WarningPercent float64
	Channel        string
}

// Monitor is the limit enforcement loop.
type Monitor struct {
	limits    storage.LimitStore
	usage     TodayUsage
	detector  *ForegroundDetector
	notifier  Notifier
	blocker   Blocker
	clock     usage.Clock
	config    Config
	heartbeat func()
	logger    zerolog.Logger

	// notified holds the warning keys already sent. Only the loop goroutine
	// touches it and it starts empty on every process start.
	notified map[string]struct{}
}

// New creates a monitor
func New(limits storage.LimitStore, today TodayUsage, detector *ForegroundDetector, notifier Notifier, blocker Blocker, config Config, logger zerolog.Logger) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = DefaultErrorBackoff
	}
	if config.WarningPercent <= 0 {
		config.WarningPercent = DefaultWarningPercent
	}
	if config.Channel == "" {
		config.Channel = DefaultChannel
	}

	return &Monitor{
		limits:   limits,
		usage:    today,
		detector: detector,
		notifier: notifier,
		blocker:  blocker,
		clock:    usage.RealClock{},
		config:   config,
		logger:   logger.With().Str("component", "limit-monitor").Logger(),
		notified: make(map[string]struct{}),
	}
}

// SetClock replaces the clock (for testing)
func (m *Monitor) SetClock(clock usage.Clock) {
	m.clock = clock
}

// SetHeartbeat registers fn to be called after every tick, failed or not.
func (m *Monitor) SetHeartbeat(fn func()) {
	m.heartbeat = fn
}

// Run polls until ctx is cancelled. A failed tick never ends the loop; the
// next one is delayed by the error backoff instead of the interval. Delays
// are measured from the end of a tick so ticks never overlap.
func (m *Monitor) Run(ctx context.Context) error {
	metrics.MonitorRunning.Set(1)
	defer metrics.MonitorRunning.Set(0)

	m.logger.Info().
		Dur("interval", m.config.Interval).
		Dur("error_backoff", m.config.ErrorBackoff).
		Msg("Limit monitor started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Limit monitor stopped")
			return nil
		case <-timer.C:
		}

		delay := m.config.Interval
		if err := m.safeTick(ctx); err != nil {
			if ctx.Err() != nil {
				m.logger.Info().Msg("Limit monitor stopped")
				return nil
			}
			delay = m.config.ErrorBackoff
			m.logger.Warn().Err(err).Dur("backoff", delay).Msg("Monitor tick failed")
		}
		if m.heartbeat != nil {
			m.heartbeat()
		}
		timer.Reset(delay)
	}
}

func (m *Monitor) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.MonitorTicks.WithLabelValues("error").Inc()
			err = fmt.Errorf("monitor tick panicked: %v", r)
		}
	}()
	return m.Tick(ctx)
}

// Tick runs one evaluation: detect the foreground app, load the active
// limits, aggregate today's usage, then warn and block as needed.
func (m *Monitor) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.MonitorTickDuration.Observe(time.Since(start).Seconds())
	}()

	result, err := m.tick(ctx)
	if err != nil {
		metrics.MonitorTicks.WithLabelValues("error").Inc()
		return err
	}
	metrics.MonitorTicks.WithLabelValues(result).Inc()
	return nil
}

func (m *Monitor) tick(ctx context.Context) (string, error) {
	now := m.clock.Now()

	foreground, err := m.detector.Current(ctx, now)
	if err != nil {
		return "", err
	}
	if m.config.SelfPackage != "" && foreground == m.config.SelfPackage {
		m.logger.Debug().Msg("Own app in foreground, skipping tick")
		return "skipped", nil
	}

	limits, err := m.limits.ListActive(ctx)
	if err != nil {
		return "", fmt.Errorf("list active limits: %w", err)
	}
	metrics.ActiveLimits.Set(float64(len(limits)))
	if len(limits) == 0 {
		return "ok", nil
	}

	summaries, err := m.usage.Today(ctx, now)
	if err != nil {
		return "", fmt.Errorf("aggregate today's usage: %w", err)
	}

	for _, limit := range limits {
		var used int64
		if s, ok := usage.Find(summaries, limit.PackageID); ok {
			used = s.UsageMillis
		}

		d := Evaluate(limit, used, foreground, m.config.WarningPercent)
		if d.Warn {
			m.warn(ctx, d)
		}
		if d.Block {
			m.block(ctx, d)
		}
	}

	m.logger.Debug().
		Str("foreground", foreground).
		Int("limits", len(limits)).
		Int("apps", len(summaries)).
		Msg("Monitor tick complete")
	return "ok", nil
}

// warn sends the pre-warning once per key. The key is marked even when
// delivery fails so the notification log never receives duplicates.
func (m *Monitor) warn(ctx context.Context, d Decision) {
	key := WarningKey(d.Limit, m.config.WarningPercent)
	if _, sent := m.notified[key]; sent {
		return
	}
	m.notified[key] = struct{}{}

	msg := notify.Message{
		Channel: m.config.Channel,
		Title:   warningTitle,
		Body: fmt.Sprintf("You have used %s%% of the time allowed for %s",
			formatPercent(m.config.WarningPercent), AppName(d.Limit)),
		DedupeKey: key,
	}
	if err := m.notifier.Notify(ctx, msg); err != nil {
		m.logger.Warn().Err(err).Str("package", d.Limit.PackageID).Msg("Failed to deliver limit warning")
	}

	metrics.LimitWarnings.WithLabelValues(d.Limit.PackageID).Inc()
	m.logger.Info().
		Str("package", d.Limit.PackageID).
		Int64("used_minutes", d.UsedMinutes).
		Int("limit_minutes", d.Limit.LimitMinutes).
		Float64("percent", d.Percent).
		Msg("Limit warning sent")
}

func (m *Monitor) block(ctx context.Context, d Decision) {
	if err := m.blocker.PresentBlockScreen(ctx, AppName(d.Limit)); err != nil {
		m.logger.Warn().Err(err).Str("package", d.Limit.PackageID).Msg("Failed to present block screen")
		return
	}

	metrics.Blocks.WithLabelValues(d.Limit.PackageID).Inc()
	m.logger.Info().
		Str("package", d.Limit.PackageID).
		Int64("used_minutes", d.UsedMinutes).
		Int("limit_minutes", d.Limit.LimitMinutes).
		Msg("App blocked")
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%g", p)
}
