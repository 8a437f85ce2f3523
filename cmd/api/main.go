package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/saturnino-fabrica-de-software/facestream/internal/api"
	"github.com/saturnino-fabrica-de-software/facestream/internal/config"
	"github.com/saturnino-fabrica-de-software/facestream/internal/face"
	"github.com/saturnino-fabrica-de-software/facestream/internal/matcher"
	"github.com/saturnino-fabrica-de-software/facestream/internal/provider"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registry"
	"github.com/saturnino-fabrica-de-software/facestream/internal/registrysync"
	"github.com/saturnino-fabrica-de-software/facestream/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting facestream",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("provider", cfg.ProviderType),
		slog.String("registry_source", cfg.RegistrySource),
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The embedding provider is the only dependency allowed to stop startup
	embedder, err := face.NewEmbedder(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	checker, _ := embedder.(provider.HealthChecker)

	reg := registry.New(cfg.EmbeddingDimension)
	m := matcher.New(matcher.Options{
		Threshold:         cfg.MatchThreshold,
		Mode:              matcher.Mode(cfg.MatchIndex),
		IndexMinTemplates: cfg.MatchIndexMinTemplates,
	}, logger)

	backend, err := registrysync.NewBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open registry source: %w", err)
	}
	defer backend.Close()

	faceService := service.NewFaceService(embedder, reg, m, logger)

	var synchronizer *registrysync.Synchronizer
	if backend.Source != nil {
		synchronizer = registrysync.NewSynchronizer(reg, backend.Source, logger, cfg.SyncTimeout)
		faceService.WithLoader(synchronizer)
	}

	if cfg.PersistRegistrations && backend.Store != nil {
		var publisher service.ChangePublisher
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
			})
			defer func() { _ = rdb.Close() }()

			notifier := registrysync.NewRedisNotifier(rdb, cfg.RedisChannel, logger)
			publisher = notifier

			go func() {
				err := notifier.Listen(ctx, func(ctx context.Context) {
					_, _ = synchronizer.Sync(ctx)
				})
				if err != nil {
					logger.Warn("registry change listener exited", slog.Any("error", err))
				}
			}()
		}
		faceService.WithStore(backend.Store, publisher)
		logger.Info("write-through persistence enabled", "notifications", cfg.RedisAddr != "")
	}

	if synchronizer != nil {
		// A failed first load is retried lazily and on the interval
		go func() { _, _ = synchronizer.Sync(ctx) }()

		if cfg.SyncInterval > 0 {
			go synchronizer.Run(ctx, cfg.SyncInterval)
		}
	}

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		FaceService:     faceService,
		Registry:        reg,
		Synchronizer:    synchronizer,
		HealthChecker:   checker,
		WSQueueSize:     cfg.WSQueueSize,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
	})
	router.Setup()

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	logger.Info("server stopped")

	return nil
}
