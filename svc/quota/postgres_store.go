package quota

import (
	"context"
	"embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/imgcompare/pkg/pg"
	"github.com/dmitrymomot/imgcompare/svc/plan"
)

// Migrations holds the goose migrations for the quota_counters table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose should read.
const MigrationsDir = "migrations"

// PostgresStore keeps counters in the quota_counters table. Each
// consumption runs in a transaction holding a row lock on the user's
// counter.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts storeOptions
}

// NewPostgresStore creates a store on pool.
func NewPostgresStore(pool *pgxpool.Pool, opts ...Option) *PostgresStore {
	return &PostgresStore{pool: pool, opts: newOptions(opts)}
}

// pgAttempts bounds retries when the server aborts a transaction with a
// serialization failure, which happens under a SERIALIZABLE default isolation.
const pgAttempts = 3

// CheckAndConsume consumes one unit of today's allowance inside a
// transaction holding the counter row lock.
func (s *PostgresStore) CheckAndConsume(ctx context.Context, userID string, tier plan.Tier, limit int) (Usage, error) {
	if userID == "" {
		return Usage{}, ErrMissingUserID
	}
	for attempt := 1; ; attempt++ {
		usage, err := s.consume(ctx, userID, tier, limit)
		if err == nil || attempt == pgAttempts || !pg.IsSerializationFailure(err) {
			return usage, err
		}
	}
}

func (s *PostgresStore) consume(ctx context.Context, userID string, tier plan.Tier, limit int) (Usage, error) {
	now := s.opts.now().UTC()
	day := Day(now)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Usage{}, errors.Join(ErrStoreUnavailable, err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	// Make sure the row exists so FOR UPDATE has something to lock.
	if _, err := tx.Exec(ctx, `
		INSERT INTO quota_counters (user_id, day, count, max, plan, updated_at)
		VALUES ($1, '', 0, 0, '', $2)
		ON CONFLICT (user_id) DO NOTHING`, userID, now); err != nil {
		return Usage{}, errors.Join(ErrStoreUnavailable, err)
	}

	c := Counter{UserID: userID}
	if err := tx.QueryRow(ctx, `
		SELECT day, count, max, plan, updated_at
		FROM quota_counters
		WHERE user_id = $1
		FOR UPDATE`, userID).Scan(&c.Day, &c.Count, &c.Max, &c.Plan, &c.UpdatedAt); err != nil {
		return Usage{}, errors.Join(ErrStoreUnavailable, err)
	}

	used := c.UsedOn(day)
	if used >= limit {
		return Usage{Day: day, Plan: tier, Used: used, Max: limit}, ErrLimitExceeded
	}

	c = Counter{UserID: userID, Day: day, Count: used + 1, Max: limit, Plan: string(tier), UpdatedAt: now}
	if _, err := tx.Exec(ctx, `
		UPDATE quota_counters
		SET day = $2, count = $3, max = $4, plan = $5, updated_at = $6
		WHERE user_id = $1`, c.UserID, c.Day, c.Count, c.Max, c.Plan, c.UpdatedAt); err != nil {
		return Usage{}, errors.Join(ErrStoreUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Usage{}, errors.Join(ErrStoreUnavailable, err)
	}
	return usageOf(c, day), nil
}

// Usage returns today's consumption for userID without writing.
func (s *PostgresStore) Usage(ctx context.Context, userID string) (Usage, error) {
	c := Counter{UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT day, count, max, plan, updated_at
		FROM quota_counters
		WHERE user_id = $1`, userID).Scan(&c.Day, &c.Count, &c.Max, &c.Plan, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Usage{Day: Day(s.opts.now())}, nil
	}
	if err != nil {
		return Usage{}, errors.Join(ErrStoreUnavailable, err)
	}
	return usageOf(c, Day(s.opts.now())), nil
}
