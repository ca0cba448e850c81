package quota_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/imgcompare/pkg/mongo"
	"github.com/dmitrymomot/imgcompare/pkg/pg"
	"github.com/dmitrymomot/imgcompare/pkg/redis"
	"github.com/dmitrymomot/imgcompare/svc/quota"
)

func TestMongoStore(t *testing.T) {
	url := os.Getenv("MONGODB_TEST_URL")
	if url == "" {
		t.Skip("MONGODB_TEST_URL is not set")
	}
	ctx := context.Background()
	db, err := mongo.NewWithDatabase(ctx, mongo.Config{
		ConnectionURL:  url,
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    50,
		RetryAttempts:  1,
	}, "imgcompare_test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Client().Disconnect(context.Background()) })

	runStoreSuite(t, func(t *testing.T, c *clock) quota.Store {
		return quota.NewMongoStore(db, quota.WithClock(c.Now))
	})
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("PG_TEST_URL")
	if url == "" {
		t.Skip("PG_TEST_URL is not set")
	}
	ctx := context.Background()
	cfg := pg.Config{
		ConnectionString:  url,
		MaxOpenConns:      40,
		MaxIdleConns:      1,
		HealthCheckPeriod: time.Minute,
		MaxConnIdleTime:   time.Minute,
		MaxConnLifetime:   time.Hour,
		RetryAttempts:     1,
		MigrationsTable:   "quota_schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pg.MigrateFS(ctx, pool, cfg, quota.Migrations, quota.MigrationsDir, slog.Default()))

	runStoreSuite(t, func(t *testing.T, c *clock) quota.Store {
		return quota.NewPostgresStore(pool, quota.WithClock(c.Now))
	})
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL is not set")
	}
	client, err := redis.Connect(context.Background(), redis.Config{
		ConnectionURL:  url,
		RetryAttempts:  1,
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	runStoreSuite(t, func(t *testing.T, c *clock) quota.Store {
		return quota.NewRedisStore(client, quota.WithClock(c.Now))
	})
}
