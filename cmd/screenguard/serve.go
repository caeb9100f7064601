package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goodtune/screenguard/internal/config"
	"github.com/goodtune/screenguard/internal/metrics"
	"github.com/goodtune/screenguard/internal/monitor"
	"github.com/goodtune/screenguard/internal/notify"
	"github.com/goodtune/screenguard/internal/systemd"
	"github.com/goodtune/screenguard/internal/usage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the limit monitor daemon",
	Long:  `Run the limit monitor, the daily history retention job and the metrics endpoint until interrupted.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting ScreenGuard")

	metricsListener, err := systemd.MetricsListener()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}

	svc, err := openServices(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("device", cfg.Device.URL).
		Str("timezone", svc.location.String()).
		Msg("Storage and device client initialized")

	notifier, err := buildNotifier(cfg.Notify, svc, logger)
	if err != nil {
		return err
	}

	detector := monitor.NewForegroundDetector(svc.device, cfg.Monitor.ForegroundWindow, logger)
	limitMonitor := monitor.New(
		svc.store.Limits(),
		svc.aggregator,
		detector,
		notifier,
		svc.device,
		monitor.Config{
			Interval:       cfg.Monitor.Interval,
			ErrorBackoff:   cfg.Monitor.ErrorBackoff,
			SelfPackage:    cfg.Monitor.SelfPackage,
			WarningPercent: cfg.Monitor.WarningPercent,
			Channel:        cfg.Notify.Channel,
		},
		logger,
	)
	limitMonitor.SetClock(svc.clock)

	if interval := systemd.WatchdogInterval(); interval > 0 {
		logger.Info().Dur("watchdog", interval).Msg("systemd watchdog enabled")
		limitMonitor.SetHeartbeat(func() {
			if err := systemd.NotifyWatchdog(); err != nil {
				logger.Warn().Err(err).Msg("Failed to send systemd watchdog notification")
			}
		})
	}

	retention, err := usage.NewRetentionScheduler(
		svc.store.History(),
		cfg.Usage.RetentionTime,
		cfg.Usage.RetentionDays,
		svc.location,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize retention scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return limitMonitor.Run(gctx) })
	g.Go(func() error { return retention.Run(gctx) })
	g.Go(func() error {
		// Backfill past days so stats and export are served from storage.
		if _, err := svc.history.Get(gctx, cfg.Usage.HistoryDays); err != nil {
			logger.Warn().Err(err).Msg("Failed to prime daily history")
		}
		return nil
	})

	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port)
		metricsServer := metrics.NewServer(metricsAddr, logger)
		if metricsListener != nil {
			metricsServer.SetListener(metricsListener)
		}
		g.Go(func() error { return metricsServer.Run(gctx) })
	}

	logger.Info().Msg("ScreenGuard startup complete")

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}
	if err := systemd.NotifyStatus("Monitoring app limits"); err != nil {
		logger.Debug().Err(err).Msg("Failed to send systemd status")
	}

	err = g.Wait()

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}
	_ = systemd.NotifyStatus("Stopped")

	if err != nil {
		return fmt.Errorf("screenguard stopped with error: %w", err)
	}
	logger.Info().Msg("ScreenGuard stopped")
	return nil
}

// buildNotifier records every alert and pushes it to any configured URLs.
func buildNotifier(cfg config.NotifyConfig, svc *services, logger zerolog.Logger) (*notify.Fanout, error) {
	notifiers := []notify.Notifier{notify.NewRecorder(svc.store.Notifications())}

	if len(cfg.URLs) > 0 {
		push, err := notify.NewShoutrrr(cfg.URLs, cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize notification delivery: %w", err)
		}
		notifiers = append(notifiers, push)
		logger.Info().Int("urls", len(cfg.URLs)).Msg("Push notifications enabled")
	}

	return notify.NewFanout(logger, notifiers...), nil
}
