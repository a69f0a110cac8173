package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tracking metrics
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabwarden_ticks_total",
			Help: "Total tracking ticks processed",
		},
		[]string{"site"},
	)

	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabwarden_sessions_started_total",
			Help: "Total tracking sessions started",
		},
		[]string{"site"},
	)

	TimeoutsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabwarden_timeouts_triggered_total",
			Help: "Total daily-limit timeouts triggered",
		},
		[]string{"site"},
	)

	TabsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabwarden_tabs_closed_total",
			Help: "Total tab close commands issued on limit breach",
		},
		[]string{"site"},
	)

	TrackedSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabwarden_tracked_seconds_total",
			Help: "Total seconds of tracked usage recorded",
		},
		[]string{"site"},
	)

	// Storage metrics
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabwarden_store_errors_total",
			Help: "Storage read/write failures by operation",
		},
		[]string{"op"},
	)

	// Bridge metrics
	BridgeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabwarden_bridge_events_total",
			Help: "Browser lifecycle events received over the bridge",
		},
		[]string{"type"},
	)

	BridgeClientsConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tabwarden_bridge_clients_connected",
			Help: "Number of connected extension clients",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		SessionsStarted,
		TimeoutsTriggered,
		TabsClosed,
		TrackedSeconds,
		StoreErrors,
		BridgeEventsTotal,
		BridgeClientsConnected,
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
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
