package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/screenguard/internal/metrics"
	"github.com/goodtune/screenguard/internal/usage"
	"github.com/rs/zerolog"
)

// UnknownApp is reported when the foreground app cannot be determined.
const UnknownApp = "unknown"

// DefaultForegroundWindow is how far back the detector looks for activity.
const DefaultForegroundWindow = 5 * time.Second

// ForegroundDetector infers the foreground app from recent usage samples.
// The OS may report transitions late, so the answer can lag by one interval.
type ForegroundDetector struct {
	source usage.Source
	window time.Duration
	logger zerolog.Logger
}

// NewForegroundDetector creates a detector querying the trailing window.
func NewForegroundDetector(source usage.Source, window time.Duration, logger zerolog.Logger) *ForegroundDetector {
	if window <= 0 {
		window = DefaultForegroundWindow
	}
	return &ForegroundDetector{
		source: source,
		window: window,
		logger: logger.With().Str("component", "foreground-detector").Logger(),
	}
}

// Current returns the package used most recently in (now-window, now], or
// UnknownApp when nothing was reported. Denied access also yields UnknownApp.
func (d *ForegroundDetector) Current(ctx context.Context, now time.Time) (string, error) {
	samples, err := d.source.Query(ctx, usage.IntervalDaily, now.Add(-d.window), now)
	if err != nil {
		if errors.Is(err, usage.ErrPermissionDenied) {
			return UnknownApp, nil
		}
		metrics.UsageSourceErrors.WithLabelValues("foreground").Inc()
		return "", fmt.Errorf("detect foreground app: %w", err)
	}

	var (
		current  string
		lastUsed int64
	)
	for _, s := range samples {
		if s.PackageID == "" {
			continue
		}
		if current == "" || s.LastTimeUsed > lastUsed {
			current = s.PackageID
			lastUsed = s.LastTimeUsed
		}
	}
	if current == "" {
		return UnknownApp, nil
	}

	d.logger.Debug().Str("package", current).Msg("Detected foreground app")
	return current, nil
}
