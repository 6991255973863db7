package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Papyszoo/ImmichVR-sub001/internal/logger"
	"github.com/Papyszoo/ImmichVR-sub001/internal/telemetry"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/api"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/artifacts"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/config"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/events"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/inference"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/library"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/metrics"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/modelmanager"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/orchestrator"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/queue"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/store"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/worker"

	// Import prometheus metrics to register init() functions
	_ "github.com/Papyszoo/ImmichVR-sub001/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the orchestrator server",
	Long: `Start the orchestrator server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/immichvr/config.yaml. Without a
config file, environment variables and defaults apply.

Examples:
  # Start with default config location
  immichvr start

  # Start with custom config file
  immichvr start --config /etc/immichvr/config.yaml

  # Start with environment variable overrides
  IMMICHVR_LOGGING_LEVEL=DEBUG AI_SERVICE_URL=http://gpu:8000 immichvr start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "immichvr",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}

	// Initialize metrics before any component that records them
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "endpoint", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Persistence layer
	if cfg.Database.Type == store.DatabaseTypePostgres {
		if err := store.RunPostgresMigrations(ctx, &cfg.Database.Postgres); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	db, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() { _ = db.Close() }()
	logger.Info("Database initialized", "type", cfg.Database.Type)

	// Artifact cache with filesystem watcher
	artifactStore, err := artifacts.NewStore(db, cfg.Storage.ArtifactDir)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	watcher, err := artifacts.NewWatcher(artifactStore)
	if err != nil {
		logger.Warn("Artifact watcher unavailable, stale index entries will be dropped lazily", "error", err)
	} else {
		defer func() { _ = watcher.Close() }()
	}

	// Outbound clients
	client := inference.New(cfg.Inference)
	var lib *library.Client
	if cfg.Library.BaseURL != "" {
		lib = library.New(cfg.Library)
		logger.Info("Media library configured", "url", cfg.Library.BaseURL)
	} else {
		logger.Info("No media library configured, external asset operations disabled")
	}

	// Pipeline components
	bus := events.NewBus()
	manager := modelmanager.New(cfg.Models, db, client, bus)
	q := queue.New(db)
	w := worker.New(cfg.Worker.Config, q, db, manager, client, artifactStore, lib, bus)

	orch, err := orchestrator.New(orchestrator.Config{
		UploadDir:       cfg.Storage.UploadDir,
		AutoStartWorker: cfg.AutoStartWorker(),
	}, db, q, artifactStore, manager, client, lib, bus, w)
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}
	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}
	defer orch.Stop()

	apiServer := api.NewServer(cfg.API, orch)
	logger.Info("API server configured", "port", apiServer.Port())

	// Start server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
