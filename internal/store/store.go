// Package store persists one organization record per EIN.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/irs990-cli/internal/config"
	"github.com/sells-group/irs990-cli/internal/model"
)

// ErrCacheMiss is returned by Load when no snapshot exists for an EIN. It is
// a valid state, not a failure.
var ErrCacheMiss = errors.New("cache miss")

// CacheStore defines persistence of cached organization snapshots.
type CacheStore interface {
	// Load returns the snapshot for ein or an error wrapping ErrCacheMiss.
	Load(ctx context.Context, ein string) (*model.Record, error)
	// Store replaces the snapshot for ein.
	Store(ctx context.Context, ein string, rec *model.Record) error
	// Exists reports whether a snapshot exists for ein.
	Exists(ctx context.Context, ein string) (bool, error)
	// List returns the cached EINs in ascending order.
	List(ctx context.Context) ([]string, error)

	Close() error
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func miss(backend, ein string) error {
	return eris.Wrapf(ErrCacheMiss, "%s: load %s", backend, ein)
}

// newestColumn renders a record's newest filing timestamp for the indexed
// column the SQL backends keep alongside the document.
func newestColumn(rec *model.Record) *time.Time {
	ts, ok := model.Newest(rec)
	if !ok {
		return nil
	}
	ts = ts.UTC()
	return &ts
}

// Open builds the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.CacheConfig) (CacheStore, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "irs990.db"
		}
		st, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("store: postgres driver requires cache.database_url")
		}
		st, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, eris.Errorf("store: unknown cache driver %q", cfg.Driver)
	}
}
