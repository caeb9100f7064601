package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Monitor loop metrics
	MonitorTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenguard_monitor_ticks_total",
			Help: "Monitor loop iterations by result",
		},
		[]string{"result"},
	)

	MonitorTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screenguard_monitor_tick_duration_seconds",
			Help:    "Monitor tick duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	MonitorRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screenguard_monitor_running",
			Help: "1 while the monitor loop is running",
		},
	)

	// Enforcement metrics
	LimitWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenguard_limit_warnings_total",
			Help: "Pre-warning notifications sent",
		},
		[]string{"package"},
	)

	Blocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenguard_blocks_total",
			Help: "Block screens raised",
		},
		[]string{"package"},
	)

	ActiveLimits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screenguard_active_limits",
			Help: "Number of active limits seen by the last tick",
		},
	)

	// History metrics
	HistoryCacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenguard_history_cache_total",
			Help: "History day lookups by result (hit, miss, today)",
		},
		[]string{"result"},
	)

	// Usage source metrics
	UsageSourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "screenguard_usage_source_errors_total",
			Help: "Usage statistics queries that failed",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		MonitorTicks,
		MonitorTickDuration,
		MonitorRunning,
		LimitWarnings,
		Blocks,
		ActiveLimits,
		HistoryCacheRequests,
		UsageSourceErrors,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Handler exposes the mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is done, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server error")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Stopping metrics server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}
