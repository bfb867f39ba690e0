package commands

import (
	"context"
	"io"
	"log/slog"
	"time"

	"slipsync/cache"
	"slipsync/config"
	"slipsync/database"
	"slipsync/logging"
	"slipsync/repository"
	"slipsync/services"

	"github.com/redis/go-redis/v9"
)

// runtime is the wiring every command shares: config, logger, gateway and store.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger
	gw     *database.Gateway
	store  *repository.Store
	teams  cache.TeamCache
	redis  *redis.Client
}

func newRuntime(ctx context.Context, opts *RootOptions, logOut io.Writer) (*runtime, error) {
	cfg := config.Load()
	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger := logging.SetupTo(logOut, level, "slipsync")

	dialect, err := database.DialectorFor(cfg.DB)
	if err != nil {
		return nil, err
	}
	gw := database.NewGateway(dialect,
		database.WithPool(database.PoolConfig{
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		}),
		database.WithLogger(logger),
		database.WithReconnectBackoff(cfg.ReconnectBackoff),
	)

	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		gw:     gw,
		store:  repository.New(gw),
		teams:  cache.Noop{},
	}

	if cfg.Redis.URL != "" {
		client, err := cache.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("team cache disabled", "error", err)
		} else {
			rt.redis = client
			rt.teams = cache.NewRedisTeams(client, cfg.Redis.TeamCacheTTL, logger)
		}
	}
	return rt, nil
}

func (rt *runtime) ids() services.IDGenerator {
	return services.IDGenerator{Prefix: rt.cfg.SlipIDPrefix, Now: time.Now}
}

func (rt *runtime) syncProcessor() *services.SyncProcessor {
	return services.NewSyncProcessor(rt.store, rt.teams, rt.ids(), rt.logger)
}

func (rt *runtime) close() {
	if err := rt.gw.Close(); err != nil {
		rt.logger.Warn("closing database", "error", err)
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.logger.Warn("closing redis", "error", err)
		}
	}
}
