// Package cache decides when a freshly fetched organization record replaces
// the cached snapshot.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/irs990-cli/internal/model"
	"github.com/sells-group/irs990-cli/internal/store"
	"github.com/sells-group/irs990-cli/pkg/propublica"
)

// NewerFunc reports whether the fetched newest-filing timestamp should
// replace the cached one.
type NewerFunc func(fetched, cached time.Time) bool

// StrictlyNewer overwrites only when fetched is after cached. Equal
// timestamps never overwrite.
func StrictlyNewer(fetched, cached time.Time) bool {
	return fetched.After(cached)
}

// Outcome describes what Refresh returned and whether it wrote.
type Outcome struct {
	Record *model.Record
	// Overwrote is true when the snapshot was created or replaced.
	Overwrote bool
	// FromCache is true when the record came from the store.
	FromCache bool
	// Stale is true when the fetch failed and the cached snapshot was served.
	Stale bool
	// FetchErr holds the fetch failure behind a stale result.
	FetchErr error
}

// Refresher combines a CacheStore with the remote client.
type Refresher struct {
	store  store.CacheStore
	client propublica.Client
	newer  NewerFunc
	group  singleflight.Group

	mu    sync.Mutex
	locks map[string]*einLock
}

// einLock serializes reads and writes of one EIN's snapshot.
type einLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithNewer overrides the timestamp comparison.
func WithNewer(fn NewerFunc) Option {
	return func(r *Refresher) {
		if fn != nil {
			r.newer = fn
		}
	}
}

// New creates a Refresher.
func New(st store.CacheStore, client propublica.Client, opts ...Option) *Refresher {
	r := &Refresher{store: st, client: client, newer: StrictlyNewer, locks: make(map[string]*einLock)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying CacheStore.
func (r *Refresher) Store() store.CacheStore { return r.store }

// Refresh returns the record for ein, fetching it when force is set or no
// snapshot exists. Concurrent calls for the same ein and force flag share one
// execution, and executions for the same ein run one at a time, so a snapshot
// is never written by two callers at once. The shared execution outlives a
// cancelled caller; ctx only bounds how long this caller waits.
func (r *Refresher) Refresh(ctx context.Context, ein string, force bool) (Outcome, error) {
	key := ein + "|" + strconv.FormatBool(force)
	ch := r.group.DoChan(key, func() (any, error) {
		unlock := r.lock(ein)
		defer unlock()
		return r.refresh(context.WithoutCancel(ctx), ein, force)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Outcome{}, res.Err
		}
		return res.Val.(Outcome), nil
	case <-ctx.Done():
		return Outcome{}, eris.Wrapf(ctx.Err(), "cache: refresh %s", ein)
	}
}

// lock takes the per-EIN lock and returns its release.
func (r *Refresher) lock(ein string) func() {
	r.mu.Lock()
	l, ok := r.locks[ein]
	if !ok {
		l = &einLock{}
		r.locks[ein] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, ein)
		}
		r.mu.Unlock()
	}
}

func (r *Refresher) refresh(ctx context.Context, ein string, force bool) (Outcome, error) {
	log := zap.L().With(zap.String("ein", ein))

	cached, err := r.store.Load(ctx, ein)
	if err != nil && !store.IsMiss(err) {
		return Outcome{}, eris.Wrapf(err, "cache: load %s", ein)
	}
	hasCache := err == nil

	if !force && hasCache {
		log.Debug("cache: serving cached snapshot")
		return Outcome{Record: cached, FromCache: true}, nil
	}

	fetched, fetchErr := r.client.Organization(ctx, ein)
	if fetchErr != nil {
		if hasCache {
			log.Warn("cache: fetch failed, serving stale snapshot", zap.Error(fetchErr))
			return Outcome{Record: cached, FromCache: true, Stale: true, FetchErr: fetchErr}, nil
		}
		return Outcome{}, fetchErr
	}

	if !hasCache {
		if err := r.store.Store(ctx, ein, fetched); err != nil {
			return Outcome{}, eris.Wrapf(err, "cache: store %s", ein)
		}
		log.Info("cache: stored new snapshot", zap.Int("filings", len(fetched.Filings)))
		return Outcome{Record: fetched, Overwrote: true}, nil
	}

	if !r.ShouldOverwrite(fetched, cached) {
		log.Debug("cache: fetched data is not newer, keeping snapshot")
		return Outcome{Record: cached, FromCache: true}, nil
	}

	if err := r.store.Store(ctx, ein, fetched); err != nil {
		return Outcome{}, eris.Wrapf(err, "cache: store %s", ein)
	}
	log.Info("cache: replaced snapshot with newer filings", zap.Int("filings", len(fetched.Filings)))
	return Outcome{Record: fetched, Overwrote: true}, nil
}

// ShouldOverwrite applies the freshness policy to two records. A fetched
// record without any dated filing never replaces a snapshot; a snapshot
// without any dated filing is always replaced.
func (r *Refresher) ShouldOverwrite(fetched, cached *model.Record) bool {
	fetchedNewest, ok := model.Newest(fetched)
	if !ok {
		return false
	}
	cachedNewest, ok := model.Newest(cached)
	if !ok {
		return true
	}
	return r.newer(fetchedNewest, cachedNewest)
}
