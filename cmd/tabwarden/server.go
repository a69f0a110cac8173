package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tabwarden/tabwarden/internal/bridge"
	"github.com/tabwarden/tabwarden/internal/config"
	"github.com/tabwarden/tabwarden/internal/metrics"
	"github.com/tabwarden/tabwarden/internal/settings"
	"github.com/tabwarden/tabwarden/internal/sites"
	"github.com/tabwarden/tabwarden/internal/storage"
	"github.com/tabwarden/tabwarden/internal/storage/bolt"
	redisstore "github.com/tabwarden/tabwarden/internal/storage/redis"
	"github.com/tabwarden/tabwarden/internal/systemd"
	"github.com/tabwarden/tabwarden/internal/tracker"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the tabwarden daemon",
	Long:  `Start the tabwarden daemon with the extension bridge and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting tabwarden")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	ctx := context.Background()
	if err := store.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize state: %w", err)
	}

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	// Domain classifier
	classifier, err := sites.NewClassifier(cfg.Tracking.TrackedDomains, cfg.Tracking.ClassifierCacheSize)
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}

	logger.Info().
		Strs("domains", classifier.Domains()).
		Msg("Domain classifier initialized")

	// Tracking state machine
	trk := tracker.New(store, classifier, tracker.Config{
		TickInterval: cfg.Tracking.Interval(),
	}, logger)
	defer trk.Stop()

	logger.Info().Msg("Tracker initialized")

	// Settings write surface
	svc := settings.NewService(store, logger)

	// Bridge server (implements the tracker's browser collaborator)
	bridgeAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.BridgePort)
	bridgeServer := bridge.NewServer(bridge.Config{ListenAddr: bridgeAddr}, trk, svc, logger)
	if sdListeners.Bridge != nil {
		bridgeServer.SetListener(sdListeners.Bridge)
	}
	trk.SetBrowser(bridgeServer)

	if err := bridgeServer.Start(); err != nil {
		return fmt.Errorf("failed to start bridge server: %w", err)
	}

	logger.Info().Str("addr", bridgeAddr).Msg("Bridge server started")

	// Retention scheduler
	retention := tracker.NewRetentionScheduler(store, cfg.Tracking.RetentionDays, logger)
	retention.Sweep(ctx)
	retention.Start()

	// Metrics server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	logger.Info().Str("addr", metricsAddr).Msg("Metrics server started")

	if _, err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd readiness")
	}

	logger.Info().Msg("tabwarden startup complete")
	logger.Info().Msgf("Bridge: ws://%s/ws", bridgeAddr)
	logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if _, err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd stopping")
	}

	retention.Stop()
	trk.Stop()

	if err := bridgeServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping bridge server")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("tabwarden stopped")
	return nil
}

// openStorage opens the configured storage backend.
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "redis":
		return redisstore.Open(redisstore.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  parseDuration(cfg.Redis.DialTimeout, 5*time.Second),
			ReadTimeout:  parseDuration(cfg.Redis.ReadTimeout, 3*time.Second),
			WriteTimeout: parseDuration(cfg.Redis.WriteTimeout, 3*time.Second),
		})
	default:
		return bolt.Open(cfg.Path)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
