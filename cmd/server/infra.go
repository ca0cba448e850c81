package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/imgcompare/pkg/config"
	"github.com/dmitrymomot/imgcompare/pkg/environment"
	"github.com/dmitrymomot/imgcompare/pkg/httpserver"
	"github.com/dmitrymomot/imgcompare/pkg/logger"
	"github.com/dmitrymomot/imgcompare/pkg/mongo"
	"github.com/dmitrymomot/imgcompare/pkg/pg"
	"github.com/dmitrymomot/imgcompare/pkg/ratelimiter"
	"github.com/dmitrymomot/imgcompare/pkg/redis"
	"github.com/dmitrymomot/imgcompare/svc/mirror"
	"github.com/dmitrymomot/imgcompare/svc/quota"
	"github.com/dmitrymomot/imgcompare/svc/user"
)

var ErrMemoryBackendInProduction = errors.New("in-memory backends are not allowed in production")

// infra holds the stores selected by configuration and their probes.
type infra struct {
	users         user.Store
	quota         quota.Store
	notifications mirror.Log
	redis         *goredis.Client
	mongo         *mongodriver.Database
	checks        map[string]httpserver.Check
	closers       []func(context.Context) error
	log           *slog.Logger
}

func (i *infra) close(ctx context.Context) {
	for _, c := range i.closers {
		if err := c(ctx); err != nil {
			i.log.ErrorContext(ctx, "failed to close connection", logger.Error(err))
		}
	}
}

func connect(ctx context.Context, cfg appConfig, env environment.Environment, log *slog.Logger) (*infra, error) {
	in := &infra{checks: map[string]httpserver.Check{}, log: log}

	if env.IsProduction() && (cfg.DataBackend == backendMemory || cfg.QuotaBackend == backendMemory) {
		return nil, ErrMemoryBackendInProduction
	}

	switch cfg.DataBackend {
	case backendMemory:
		in.users = user.NewMemoryStore()
		in.notifications = mirror.NewMemoryLog()
		log.WarnContext(ctx, "using in-memory user store and notification log")
	case backendMongo:
		if err := in.connectMongo(ctx); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown DATA_BACKEND %q", cfg.DataBackend)
	}

	if cfg.QuotaBackend == backendRedis || cfg.SharedRateLimit {
		redisCfg, err := config.Load[redis.Config]()
		if err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			if cfg.QuotaBackend == backendRedis {
				return nil, err
			}
			log.WarnContext(ctx, "redis unavailable, rate limiting stays in process", logger.Error(err))
		} else {
			in.redis = client
			in.checks["redis"] = redis.Healthcheck(client)
			in.closers = append(in.closers, func(context.Context) error { return client.Close() })
		}
	}

	switch cfg.QuotaBackend {
	case backendMemory:
		in.quota = quota.NewMemoryStore()
		log.WarnContext(ctx, "using in-memory quota store")
	case backendMongo:
		db, err := in.mongoDatabase(ctx)
		if err != nil {
			return nil, err
		}
		in.quota = quota.NewMongoStore(db)
	case backendPostgres:
		pgCfg, err := config.Load[pg.Config]()
		if err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		if err := pg.MigrateFS(ctx, pool, pgCfg, quota.Migrations, quota.MigrationsDir, log); err != nil {
			pool.Close()
			return nil, err
		}
		in.checks["postgres"] = pg.Healthcheck(pool)
		in.closers = append(in.closers, func(context.Context) error { pool.Close(); return nil })
		in.quota = quota.NewPostgresStore(pool)
	case backendRedis:
		in.quota = quota.NewRedisStore(in.redis)
	default:
		return nil, fmt.Errorf("unknown QUOTA_BACKEND %q", cfg.QuotaBackend)
	}
	return in, nil
}

func (i *infra) connectMongo(ctx context.Context) error {
	db, err := i.mongoDatabase(ctx)
	if err != nil {
		return err
	}
	users := user.NewMongoStore(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		return err
	}
	notifications := mirror.NewMongoLog(db)
	if err := notifications.EnsureIndexes(ctx); err != nil {
		return err
	}
	i.users = users
	i.notifications = notifications
	return nil
}

// mongoDatabase connects once and reuses the client for every store.
func (i *infra) mongoDatabase(ctx context.Context) (*mongodriver.Database, error) {
	if i.mongo != nil {
		return i.mongo, nil
	}
	cfg, err := config.Load[mongo.Config]()
	if err != nil {
		return nil, err
	}
	client, err := mongo.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	i.checks["mongo"] = mongo.Healthcheck(client)
	i.closers = append(i.closers, client.Disconnect)
	i.mongo = client.Database(cfg.Database)
	return i.mongo, nil
}

func newLimiter(in *infra) (ratelimiter.Limiter, error) {
	cfg, err := config.Load[ratelimiter.Config]()
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, nil
	}
	local, err := ratelimiter.NewLocal(cfg.Limit())
	if err != nil {
		return nil, err
	}
	if in.redis == nil {
		return local, nil
	}
	shared, err := ratelimiter.NewRedis(in.redis, cfg.Limit(), "imgcompare:ratelimit:")
	if err != nil {
		return nil, err
	}
	return ratelimiter.Fallback{Primary: shared, Secondary: local}, nil
}
