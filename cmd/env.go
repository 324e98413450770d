package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/irs990-cli/internal/cache"
	"github.com/sells-group/irs990-cli/internal/config"
	"github.com/sells-group/irs990-cli/internal/export"
	"github.com/sells-group/irs990-cli/internal/fieldmap"
	"github.com/sells-group/irs990-cli/internal/flatten"
	"github.com/sells-group/irs990-cli/internal/monitoring"
	"github.com/sells-group/irs990-cli/internal/store"
	"github.com/sells-group/irs990-cli/pkg/propublica"
)

// appEnv holds the store, client, and mapping shared by every command.
type appEnv struct {
	Store     store.CacheStore
	Client    propublica.Client
	Refresher *cache.Refresher
	Mapper    *fieldmap.Mapper
	Backups   map[string]flatten.Backup
	Alerter   *monitoring.Alerter
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// exporter builds an Exporter, defaulting backups to the configured file.
func (e *appEnv) exporter(opts export.Options) *export.Exporter {
	if opts.Backups == nil {
		opts.Backups = e.Backups
	}
	return export.New(e.Refresher, e.Mapper, opts)
}

// initEnv validates config for command and builds the shared environment.
// Callers should defer env.Close().
func initEnv(ctx context.Context, command string) (*appEnv, error) {
	if err := cfg.Validate(command); err != nil {
		return nil, err
	}

	mapper, err := initMapper(cfg.Export)
	if err != nil {
		return nil, err
	}

	var backups map[string]flatten.Backup
	if cfg.Export.BackupFile != "" {
		backups, err = export.LoadBackups(cfg.Export.BackupFile)
		if err != nil {
			return nil, err
		}
		zap.L().Debug("backups loaded", zap.Int("organizations", len(backups)))
	}

	st, err := store.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, eris.Wrap(err, "open cache store")
	}

	client := initClient(cfg.ProPublica)
	return &appEnv{
		Store:     st,
		Client:    client,
		Refresher: cache.New(st, client),
		Mapper:    mapper,
		Backups:   backups,
		Alerter:   monitoring.NewAlerter(cfg.Monitoring),
	}, nil
}

func initClient(c config.ProPublicaConfig) propublica.Client {
	opts := []propublica.Option{
		propublica.WithUserAgent(c.UserAgent),
	}
	if c.BaseURL != "" {
		opts = append(opts, propublica.WithBaseURL(c.BaseURL))
	}
	if c.TimeoutSecs > 0 {
		opts = append(opts, propublica.WithHTTPClient(&http.Client{
			Timeout: time.Duration(c.TimeoutSecs) * time.Second,
		}))
	}
	if c.RatePerSec > 0 {
		opts = append(opts, propublica.WithRateLimiter(rate.NewLimiter(rate.Limit(c.RatePerSec), 1)))
	}
	return propublica.NewClient(opts...)
}

func initMapper(c config.ExportConfig) (*fieldmap.Mapper, error) {
	if c.FieldMapFile == "" {
		return fieldmap.Default(), nil
	}
	m, err := fieldmap.LoadFile(c.FieldMapFile)
	if err != nil {
		return nil, eris.Wrap(err, "load field map")
	}
	zap.L().Info("field map loaded", zap.String("path", c.FieldMapFile))
	return m, nil
}
