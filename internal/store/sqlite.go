package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/irs990-cli/internal/model"
)

// SQLiteStore implements CacheStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS org_cache (
	ein           TEXT PRIMARY KEY,
	record        TEXT NOT NULL,
	newest_filing TEXT,
	cached_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_org_cache_newest ON org_cache(newest_filing);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, ein string) (*model.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM org_cache WHERE ein = ?`, ein,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, miss("sqlite", ein)
		}
		return nil, eris.Wrapf(err, "sqlite: load %s", ein)
	}
	rec, err := model.DecodeRecord([]byte(data))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: decode %s", ein)
	}
	return rec, nil
}

func (s *SQLiteStore) Store(ctx context.Context, ein string, rec *model.Record) error {
	data, err := model.EncodeRecord(rec)
	if err != nil {
		return eris.Wrapf(err, "sqlite: encode %s", ein)
	}

	var newest sql.NullString
	if ts := newestColumn(rec); ts != nil {
		newest = sql.NullString{String: ts.Format(time.RFC3339Nano), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO org_cache (ein, record, newest_filing, cached_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(ein) DO UPDATE SET record = excluded.record, newest_filing = excluded.newest_filing, cached_at = excluded.cached_at`,
		ein, string(data), newest, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: store %s", ein)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, ein string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM org_cache WHERE ein = ?`, ein,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: exists %s", ein)
	}
	return n > 0, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ein FROM org_cache ORDER BY ein`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list")
	}
	defer rows.Close() //nolint:errcheck

	var eins []string
	for rows.Next() {
		var ein string
		if err := rows.Scan(&ein); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ein")
		}
		eins = append(eins, ein)
	}
	return eins, eris.Wrap(rows.Err(), "sqlite: iterate")
}
