package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/irs990-cli/internal/model"
)

// pool defines the minimal database pool interface used by PostgresStore.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements CacheStore using pgxpool.
type PostgresStore struct {
	pool pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	p, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: p}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS org_cache (
	ein           TEXT PRIMARY KEY,
	record        JSONB NOT NULL,
	newest_filing TIMESTAMPTZ,
	cached_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_org_cache_newest ON org_cache(newest_filing);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, ein string) (*model.Record, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM org_cache WHERE ein = $1`, ein,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, miss("postgres", ein)
		}
		return nil, eris.Wrapf(err, "postgres: load %s", ein)
	}
	rec, err := model.DecodeRecord(data)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: decode %s", ein)
	}
	return rec, nil
}

func (s *PostgresStore) Store(ctx context.Context, ein string, rec *model.Record) error {
	data, err := model.EncodeRecord(rec)
	if err != nil {
		return eris.Wrapf(err, "postgres: encode %s", ein)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO org_cache (ein, record, newest_filing, cached_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (ein) DO UPDATE SET record = EXCLUDED.record, newest_filing = EXCLUDED.newest_filing, cached_at = EXCLUDED.cached_at`,
		ein, data, newestColumn(rec), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: store %s", ein)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, ein string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM org_cache WHERE ein = $1)`, ein,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: exists %s", ein)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT ein FROM org_cache ORDER BY ein`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list")
	}
	defer rows.Close()

	var eins []string
	for rows.Next() {
		var ein string
		if err := rows.Scan(&ein); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ein")
		}
		eins = append(eins, ein)
	}
	return eins, eris.Wrap(rows.Err(), "postgres: iterate")
}
