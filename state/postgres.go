package state

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/gramkart/commerce-core/db"
)

const (
	getStateSQL = `SELECT payload FROM client_state WHERE key = $1`

	setStateSQL = `INSERT INTO client_state (key, payload, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`

	deleteStateSQL = `DELETE FROM client_state WHERE key = $1`

	appendSubmissionSQL = `INSERT INTO submission_log (batch_id, line_key, line_type, amount, ok, message)
	VALUES ($1, $2, $3, $4, $5, $6)`
)

var _ Store = (*Postgres)(nil)

// Postgres is a Store backed by PostgreSQL. Each key maps to a single row,
// written with an upsert, which gives the atomic per-key visibility the
// stores require. It also records the order submission journal.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool configured with shopspring/decimal support for
// NUMERIC columns and applies the embedded schema.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database config")
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create connection pool")
	}

	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, getStateSQL, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get state %q", key)
	}
	return payload, true, nil
}

func (s *Postgres) Set(ctx context.Context, key string, payload []byte) error {
	if _, err := s.pool.Exec(ctx, setStateSQL, key, payload); err != nil {
		return errors.Wrapf(err, "set state %q", key)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, deleteStateSQL, key); err != nil {
		return errors.Wrapf(err, "delete state %q", key)
	}
	return nil
}

// AppendSubmission records one attempted order line in the submission journal.
func (s *Postgres) AppendSubmission(
	ctx context.Context,
	batchID uuid.UUID,
	lineKey, lineType string,
	amount decimal.Decimal,
	ok bool,
	message string,
) error {
	_, err := s.pool.Exec(ctx, appendSubmissionSQL,
		batchID, lineKey, lineType, amount, ok, message,
	)
	if err != nil {
		return errors.Wrapf(err, "append submission for line %q", lineKey)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the underlying connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}
