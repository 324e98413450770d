package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/irs990-cli/internal/cache"
	"github.com/sells-group/irs990-cli/internal/config"
	"github.com/sells-group/irs990-cli/internal/fieldmap"
	"github.com/sells-group/irs990-cli/internal/model"
	"github.com/sells-group/irs990-cli/internal/store"
	"github.com/sells-group/irs990-cli/pkg/propublica"
)

// stubClient serves fixed records and returns 404 for everything else.
type stubClient struct {
	records map[string]*model.Record
	calls   int
}

func (s *stubClient) Organization(_ context.Context, ein string) (*model.Record, error) {
	s.calls++
	if rec, ok := s.records[ein]; ok {
		return rec, nil
	}
	return nil, &propublica.FetchError{EIN: ein, StatusCode: 404, Message: "unexpected status 404"}
}

func testRecord(name string, updated ...string) *model.Record {
	rec := &model.Record{Organization: model.Organization{"name": name, "city": "SEATTLE", "state": "WA"}}
	for i, u := range updated {
		rec.Filings = append(rec.Filings, model.Filing{
			"formtype":   "0",
			"updated":    u,
			"tax_prd":    fmt.Sprintf("%d12", 2023-i),
			"totrevenue": "1000",
		})
	}
	return rec
}

// setTestConfig installs a default config for helpers that read it.
func setTestConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{
		Cache: config.CacheConfig{Driver: "memory"},
		Export: config.ExportConfig{
			Format:          "csv",
			Mode:            fieldmap.ModeCommon,
			IncludeLocation: true,
		},
		Server: config.ServerConfig{Port: 8990, CORSOrigins: []string{"*"}},
	}
	t.Cleanup(func() { cfg = prev })
}

// newTestEnv builds an environment over an in-memory store.
func newTestEnv(t *testing.T, client *stubClient) *appEnv {
	t.Helper()
	setTestConfig(t)
	st := store.NewMemoryStore()
	env := &appEnv{
		Store:     st,
		Client:    client,
		Refresher: cache.New(st, client),
		Mapper:    fieldmap.Default(),
	}
	t.Cleanup(env.Close)
	return env
}

func seedStore(t *testing.T, st store.CacheStore, ein string, rec *model.Record) {
	t.Helper()
	require.NoError(t, st.Store(context.Background(), ein, rec))
}
