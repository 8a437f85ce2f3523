package registrysync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saturnino-fabrica-de-software/facestream/internal/config"
	"github.com/saturnino-fabrica-de-software/facestream/internal/database"
	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
	"github.com/saturnino-fabrica-de-software/facestream/internal/repository"
)

// Store persists registrations made on this instance.
type Store interface {
	SaveIdentity(ctx context.Context, identity domain.Identity) error
}

// Backend bundles what the configured registry source provides.
type Backend struct {
	Source Source
	// Store is nil unless the source is a database.
	Store Store
	Close func()
}

// NewBackend opens the registry source named by cfg.RegistrySource.
// It returns a nil Source when none is configured.
func NewBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	noop := func() {}

	switch cfg.RegistrySource {
	case config.SourceNone:
		return &Backend{Close: noop}, nil

	case config.SourceHTTP:
		logger.Info("registry source configured", "source", "http", "url", cfg.RegistryURL)
		return &Backend{Source: NewHTTPSource(cfg.RegistryURL, cfg.SyncTimeout), Close: noop}, nil

	case config.SourceFile:
		logger.Info("registry source configured", "source", "file", "path", cfg.RegistryFile)
		return &Backend{Source: NewFileSource(cfg.RegistryFile), Close: noop}, nil

	case config.SourcePostgres:
		pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("connect postgres registry: %w", err)
		}
		repo := repository.NewPostgresIdentityRepository(pool)
		logger.Info("registry source configured", "source", "postgres")
		return &Backend{Source: repo, Store: repo, Close: pool.Close}, nil

	case config.SourceMongo:
		client, coll, err := repository.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, fmt.Errorf("connect mongo registry: %w", err)
		}
		repo := repository.NewMongoIdentityRepository(coll)
		logger.Info("registry source configured",
			"source", "mongo",
			"database", cfg.MongoDatabase,
			"collection", cfg.MongoCollection,
		)
		return &Backend{
			Source: repo,
			Store:  repo,
			Close: func() {
				_ = client.Disconnect(context.Background())
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown registry source %q", cfg.RegistrySource)
	}
}
