package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/config"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/db"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/events"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/metrics"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/repository"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/router"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/services"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/storage"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := utils.NewLogger(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal("Failed to create data directory", "path", cfg.DataDir, "error", err)
	}

	// Run migrations
	if err := db.RunMigrations(cfg.DatabasePath); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	// Initialize database
	database, err := db.NewSQLiteDB(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to open database", "error", err)
	}
	defer database.Close()

	ctx := context.Background()

	files, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage", "backend", cfg.StorageBackend, "error", err)
	}

	bus := events.NewBus(256)
	var publisher events.Publisher = bus
	if cfg.RedisURL != "" {
		redisPub, err := events.NewRedisPublisher(ctx, cfg.RedisURL, events.DefaultChannel, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", "error", err)
		}
		defer redisPub.Close()
		publisher = events.Multi{bus, redisPub}
		logger.Info("Mirroring events to Redis", "channel", events.DefaultChannel)
	}

	m := metrics.New()
	queue := worker.NewQueue(cfg.QueueSize, cfg.WorkerCount, logger, worker.Hooks{
		Started: func(string) { m.JobsInFlight.Inc() },
		Finished: func(_ string, err error, elapsed time.Duration) {
			m.JobsInFlight.Dec()
			outcome := "success"
			switch {
			case errors.Is(err, context.Canceled):
				outcome = "cancelled"
			case err != nil:
				outcome = "error"
			}
			m.JobDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
		},
	})

	svc := services.New(&services.Deps{
		Store:   repository.NewStore(database),
		Storage: files,
		Events:  publisher,
		Queue:   queue,
		Metrics: m,
		Config:  cfg,
		Logger:  logger,
	})

	// Setup HTTP router
	handler := router.NewRouter(svc, bus, m, cfg, logger)

	// Event streams end when streamCtx is cancelled at shutdown.
	streamCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	// WriteTimeout stays unset: /api/v1/events holds its response open.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streamCtx },
	}

	// Start server
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "storage", cfg.StorageBackend, "workers", cfg.WorkerCount)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	stopStreams()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	queue.Stop(shutdownCtx)

	logger.Info("Server exited")
}
