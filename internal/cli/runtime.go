package cli

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"studynotes-client/internal/api"
	"studynotes-client/internal/app"
	"studynotes-client/internal/config"
	"studynotes-client/internal/infra/memory"
	pgstore "studynotes-client/internal/infra/postgres"
	redisstore "studynotes-client/internal/infra/redis"
	"studynotes-client/internal/jobs"
	"studynotes-client/internal/logging"
)

// runtime holds what every command needs; optional stores are nil when not configured.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger
	client *api.Client
	redis  *redis.Client
	pool   *pgxpool.Pool
}

func loadRuntime(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if token != "" {
		cfg.Backend.Token = token
	}

	logger := logging.New(cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)

	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		client: api.New(cfg.Backend.URL,
			api.WithDefaultToken(cfg.Backend.Token),
			api.WithHTTPClient(&http.Client{Timeout: config.TTLDuration(cfg.Backend.Timeout, 30*time.Second)}),
		),
	}
	if cfg.Redis.Addr != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		rt.pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
}

func (rt *runtime) summaryCache() app.SummaryCache {
	ttl := config.TTLDuration(rt.cfg.Cache.SummaryTTL, 30*time.Minute)
	if rt.redis != nil {
		return redisstore.NewSummaryCache(rt.redis, ttl)
	}
	return memory.NewSummaryCache(ttl)
}

func (rt *runtime) sessionRegistry() app.SessionRegistry {
	if rt.redis != nil {
		return redisstore.NewSessionRegistry(rt.redis, config.TTLDuration(rt.cfg.Redis.TTL, 10*time.Minute))
	}
	return memory.NewSessionRegistry()
}

func (rt *runtime) attemptStore() app.AttemptStore {
	if rt.pool != nil {
		return pgstore.NewAttemptStore(rt.pool)
	}
	return memory.NewAttemptStore()
}

func (rt *runtime) summaryService(trackerOpts ...jobs.Option) *app.SummaryService {
	trackerOpts = append([]jobs.Option{jobs.WithLogger(rt.logger)}, trackerOpts...)
	return app.NewSummaryService(rt.client,
		app.WithSummaryCache(rt.summaryCache()),
		app.WithSummaryPolicies(rt.cfg.SummaryPolicy(), rt.cfg.DocumentReadinessPolicy()),
		app.WithSummaryTrackerOptions(trackerOpts...),
		app.WithSummaryLogger(rt.logger),
	)
}
