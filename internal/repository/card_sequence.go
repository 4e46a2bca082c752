package repository

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// CardSequence hands out monotonically increasing card numbers.
//
// Next is atomic across every process sharing the backing store.
// EnsureAtLeast raises the sequence so the following Next returns at
// least n+1; it never lowers it.
type CardSequence interface {
	Next(ctx context.Context) (int64, error)
	EnsureAtLeast(ctx context.Context, n int64) error
}

type postgresCardSequence struct {
	pool *pgxpool.Pool
}

// NewPostgresCardSequence uses the ticket_card_seq sequence.
func NewPostgresCardSequence(pool *pgxpool.Pool) CardSequence {
	return &postgresCardSequence{pool: pool}
}

func (s *postgresCardSequence) Next(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT nextval('ticket_card_seq')`).Scan(&n)
	return n, err
}

func (s *postgresCardSequence) EnsureAtLeast(ctx context.Context, n int64) error {
	if n <= 0 {
		return nil
	}
	const query = `
        SELECT setval('ticket_card_seq',
            GREATEST($1::bigint, (SELECT CASE WHEN is_called THEN last_value ELSE 0 END FROM ticket_card_seq)),
            true)`
	_, err := s.pool.Exec(ctx, query, n)
	return err
}

const sqliteCardCounter = "ticket_card"

type sqliteCardSequence struct {
	db *sql.DB
}

// NewSQLiteCardSequence uses a row in the counters table.
func NewSQLiteCardSequence(db *sql.DB) CardSequence {
	return &sqliteCardSequence{db: db}
}

func (s *sqliteCardSequence) Next(ctx context.Context) (int64, error) {
	const query = `
        INSERT INTO counters (name, value) VALUES (?, 1)
        ON CONFLICT (name) DO UPDATE SET value = value + 1
        RETURNING value`
	var n int64
	err := s.db.QueryRowContext(ctx, query, sqliteCardCounter).Scan(&n)
	return n, err
}

func (s *sqliteCardSequence) EnsureAtLeast(ctx context.Context, n int64) error {
	if n <= 0 {
		return nil
	}
	const query = `
        INSERT INTO counters (name, value) VALUES (?, ?)
        ON CONFLICT (name) DO UPDATE SET value = MAX(value, excluded.value)`
	_, err := s.db.ExecContext(ctx, query, sqliteCardCounter, n)
	return err
}

var ensureAtLeastScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if current < floor then
  redis.call('SET', KEYS[1], floor)
  return floor
end
return current
`)

type redisCardSequence struct {
	client *redis.Client
	key    string
}

// NewRedisCardSequence keeps the counter in a Redis string key.
func NewRedisCardSequence(client *redis.Client, key string) CardSequence {
	return &redisCardSequence{client: client, key: key}
}

func (s *redisCardSequence) Next(ctx context.Context) (int64, error) {
	return s.client.Incr(ctx, s.key).Result()
}

func (s *redisCardSequence) EnsureAtLeast(ctx context.Context, n int64) error {
	if n <= 0 {
		return nil
	}
	return ensureAtLeastScript.Run(ctx, s.client, []string{s.key}, n).Err()
}
