package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/screenguard/internal/storage"
	"github.com/rs/zerolog"
)

// RetentionScheduler deletes old daily history once a day
type RetentionScheduler struct {
	store         storage.HistoryStore
	runAt         time.Time // Time of day to run (only hour and minute are used)
	retentionDays int
	clock         Clock
	location      *time.Location
	logger        zerolog.Logger
	stopChan      chan struct{}
	done          chan struct{}
}

// NewRetentionScheduler creates a new retention scheduler
func NewRetentionScheduler(store storage.HistoryStore, runAt string, retentionDays int, location *time.Location, logger zerolog.Logger) (*RetentionScheduler, error) {
	// Parse run time (HH:MM format)
	parsedTime, err := time.Parse("15:04", runAt)
	if err != nil {
		return nil, fmt.Errorf("invalid retention time %q: %w", runAt, err)
	}
	if retentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}
	if location == nil {
		location = time.Local
	}

	return &RetentionScheduler{
		store:         store,
		runAt:         parsedTime,
		retentionDays: retentionDays,
		clock:         RealClock{},
		location:      location,
		logger:        logger.With().Str("component", "retention-scheduler").Logger(),
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}, nil
}

// Start begins the retention scheduler
func (rs *RetentionScheduler) Start() {
	go rs.run()
	rs.logger.Info().
		Str("run_at", rs.runAt.Format("15:04")).
		Int("retention_days", rs.retentionDays).
		Msg("History retention scheduler started")
}

// Stop stops the scheduler and waits for the loop to exit
func (rs *RetentionScheduler) Stop() {
	close(rs.stopChan)
	<-rs.done
	rs.logger.Info().Msg("History retention scheduler stopped")
}

// Run blocks until ctx is done, for use under an errgroup
func (rs *RetentionScheduler) Run(ctx context.Context) error {
	rs.Start()
	<-ctx.Done()
	rs.Stop()
	return nil
}

func (rs *RetentionScheduler) run() {
	defer close(rs.done)
	for {
		nextRun := rs.nextRun()
		waitDuration := nextRun.Sub(rs.clock.Now())

		rs.logger.Debug().
			Time("next_run", nextRun).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next history cleanup")

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
			if _, err := rs.Cleanup(context.Background()); err != nil {
				rs.logger.Error().Err(err).Msg("Failed to clean up old history")
			}
		case <-rs.stopChan:
			timer.Stop()
			return
		}
	}
}

// nextRun returns the next occurrence of the run time
func (rs *RetentionScheduler) nextRun() time.Time {
	now := rs.clock.Now().In(rs.location)

	todayRun := time.Date(
		now.Year(), now.Month(), now.Day(),
		rs.runAt.Hour(), rs.runAt.Minute(), 0, 0,
		rs.location,
	)

	// Already passed today, schedule for tomorrow
	if !now.Before(todayRun) {
		return todayRun.AddDate(0, 0, 1)
	}

	return todayRun
}

// Cleanup deletes every history entry older than the retention window
func (rs *RetentionScheduler) Cleanup(ctx context.Context) (int, error) {
	now := rs.clock.Now().In(rs.location)
	cutoffDate := DateKey(StartOfDay(now).AddDate(0, 0, -rs.retentionDays))

	deleted, err := rs.store.DeleteBefore(ctx, cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("delete history before %s: %w", cutoffDate, err)
	}

	rs.logger.Info().
		Int("rows_deleted", deleted).
		Str("cutoff_date", cutoffDate).
		Msg("Old daily history cleaned up")
	return deleted, nil
}
