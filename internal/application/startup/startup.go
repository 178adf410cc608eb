// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arzani/roledetect-go/internal/application/container"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/cleanup"
	"github.com/arzani/roledetect-go/internal/infrastructure/caching/manager"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/metrics"
	"github.com/arzani/roledetect-go/internal/infrastructure/observability/performance"
	"github.com/arzani/roledetect-go/internal/infrastructure/persistence/database"
	"github.com/arzani/roledetect-go/internal/presentation/http/server"
	"github.com/arzani/roledetect-go/pkg/config"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("Initializing...")

	// Step 1: Channeled logging
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Channeled logging initialized")

	// Step 2: Database connection and schema
	logger.Startup().Info("Connecting to database", "driver", config.DBDriver, "path", config.DBPath)
	if config.DBDriver == "libsql" {
		if err := database.TestRemoteConnection(config.DBPath, config.DBAuthToken); err != nil {
			return fmt.Errorf("remote database unreachable: %w", err)
		}
		logger.Startup().Info("Remote database connectivity verified")
	}
	db, err := database.NewConnectionWithLogger(config.DBDriver, config.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.NewTableCreator().CreateSchema(db.DB); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	logger.Startup().Info("Database schema verified")

	// Step 3: Observability
	perfTracker := performance.NewTracker(performance.DefaultTrackerConfig())
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	logger.Startup().Info("Performance tracking and metrics initialized")

	// Step 4: In-memory cache tiers
	cacheManager := manager.NewManager(time.Now, logger)

	// Step 5: Dependency injection container
	logger.Startup().Info("Initializing dependency injection container...")
	appContainer, err := container.NewContainer(db, cacheManager, perfTracker, collector, time.Now, logger)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	logger.Startup().Info("Dependency injection container created with singleton services")

	// Step 6: Background workers
	logger.Startup().Info("Starting background workers...")
	appContainer.RecorderService.Start(ctx)
	appContainer.WriterService.Start(ctx)

	cleanupConfig := cleanup.NewConfig()
	cleanupWorker := cleanup.NewWorker(cacheManager, appContainer.SessionRepo, appContainer.EventRepo, cleanupConfig, logger)
	go cleanupWorker.Start(ctx)

	go performanceCleanupLoop(ctx, perfTracker)
	logger.Startup().Info("Background workers started")

	// Step 7: HTTP server
	port := config.Port
	httpServer := server.New(port, appContainer, registry)
	logger.Startup().Info("HTTP server initialized", "port", port)

	// Step 8: Graceful shutdown wiring
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", port)

	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Stop background workers; the recorder drains its queue on cancel.
	cancelBackgroundTasks()
	appContainer.RecorderService.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// performanceCleanupLoop prunes stale markers and alerts on a fixed cadence.
func performanceCleanupLoop(ctx context.Context, tracker *performance.Tracker) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tracker.Cleanup()
		}
	}
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
