package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"threadboard/internal/app/health"
	"threadboard/internal/app/post"
	"threadboard/internal/app/upload"
	"threadboard/internal/config"
	"threadboard/internal/db"
	"threadboard/internal/db/seeder"
	"threadboard/internal/gateways/websocket"
	"threadboard/internal/metrics"
	"threadboard/internal/providers/minio"
	"threadboard/internal/providers/redis"
	"threadboard/internal/router"
	"threadboard/internal/store"
	"threadboard/internal/utils"

	"go.uber.org/zap"
)

type Application struct {
	Router *router.Router
	Store  store.Store
	Posts  post.Repository

	cancel    context.CancelFunc
	closeFunc func() error
	logger    *zap.Logger
}

// OpenStore opens the post store selected by cfg.StoreDriver. The returned
// close function releases the store and whatever connection backs it.
func OpenStore(cfg *config.Config, logger *zap.Logger) (store.Store, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		st := store.NewMemory()
		return st, st.Close, nil

	case config.StoreBolt:
		st, err := store.NewBolt(cfg.BoltPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil

	case config.StoreRedis:
		provider := redis.NewRedisProvider(cfg.RedisURL, logger)
		st := store.NewRedis(provider.Client, cfg.RedisKeyPrefix)
		return st, provider.Close, nil

	case config.StorePostgres:
		conn, err := db.Connect(cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := db.Migrate(conn, logger); err != nil {
			db.Close(conn)
			return nil, nil, fmt.Errorf("failed to migrate post_records: %w", err)
		}
		return store.NewPostgres(conn), func() error { return db.Close(conn) }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func openUploads(cfg *config.Config, logger *zap.Logger) (upload.Storage, error) {
	if cfg.UploadDriver == config.UploadMinio {
		provider, err := minio.NewMinioProvider(cfg, logger)
		if err != nil {
			return nil, err
		}
		return upload.NewMinioStorage(provider, cfg.MaxFileSize), nil
	}
	disk, err := upload.NewDiskStorage(cfg.UploadDir, cfg.UploadURLPrefix, cfg.MaxFileSize, logger)
	if err != nil {
		return nil, err
	}
	return disk, nil
}

func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, closeStore, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	repo, err := post.NewRepository(ctx, st, m, logger)
	if err != nil {
		closeStore()
		return nil, err
	}

	if cfg.SeedWelcome {
		if err := seeder.NewSeeder(repo, logger).Seed(ctx); err != nil {
			logger.Warn("Failed to run seeders", zap.Error(err))
		}
	}

	uploads, err := openUploads(cfg, logger)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf("failed to initialize %s uploads: %w", cfg.UploadDriver, err)
	}

	eventBus := utils.NewEventBus()
	runCtx, cancel := context.WithCancel(context.Background())
	hub := websocket.NewHub(logger, eventBus)
	go hub.Run(runCtx)

	postService := post.NewService(repo, eventBus, logger, cfg.PostsPerPage)
	postHandler := post.NewHandler(postService, uploads, cfg.MaxFileSize, logger)

	healthHandler := health.NewHandler(health.NewService(&utils.HealthChecker{
		Checks: []utils.HealthCheck{
			{Name: "store:" + cfg.StoreDriver, Pinger: st},
			{Name: "uploads:" + cfg.UploadDriver, Pinger: uploads},
		},
	}))

	r := router.NewRouter(logger, cfg.FrontendURL)
	r.RegisterHealthRoutes(healthHandler)
	r.RegisterPostRoutes(postHandler)
	r.RegisterMetricsRoutes(m)
	r.RegisterWebSocketRoutes(hub)
	if disk, ok := uploads.(*upload.DiskStorage); ok && strings.HasPrefix(cfg.UploadURLPrefix, "/") {
		r.RegisterStaticUploads(cfg.UploadURLPrefix, disk.Dir())
	}

	return &Application{
		Router:    r,
		Store:     st,
		Posts:     repo,
		cancel:    cancel,
		closeFunc: closeStore,
		logger:    logger,
	}, nil
}

// Close stops the websocket hub, flushes the store and releases it.
func (a *Application) Close(ctx context.Context) error {
	a.cancel()
	return errors.Join(a.Store.Flush(ctx), a.closeFunc())
}
