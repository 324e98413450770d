// Package export refreshes a batch of organizations and assembles their
// flattened filings into one table.
package export

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/irs990-cli/internal/cache"
	"github.com/sells-group/irs990-cli/internal/fieldmap"
	"github.com/sells-group/irs990-cli/internal/flatten"
	"github.com/sells-group/irs990-cli/internal/ids"
	"github.com/sells-group/irs990-cli/internal/model"
)

// Refresher yields a record per EIN. *cache.Refresher satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, ein string, force bool) (cache.Outcome, error)
}

// Options controls one export run.
type Options struct {
	// Mode is "common" or a form name such as "990EZ".
	Mode            string
	Force           bool
	IncludeLocation bool
	TitleCase       bool
	// LatestOnly emits one row per organization from its most recent filing.
	LatestOnly bool
	// Backups supplies values for organizations without filings when
	// LatestOnly is set, keyed by EIN.
	Backups map[string]flatten.Backup
}

func (o Options) flattenOptions() flatten.Options {
	return flatten.Options{IncludeLocation: o.IncludeLocation, TitleCase: o.TitleCase}
}

// Report is the outcome of a run: the table plus per-EIN results.
type Report struct {
	RunID      string
	StartedAt  time.Time
	Header     []string
	Rows       []flatten.Row
	Results    []model.Result
	Overwrites int
}

// Failed returns the results that produced no record.
func (r *Report) Failed() []model.Result {
	var out []model.Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Exporter runs batches against a refresher and field mapping.
type Exporter struct {
	refresher Refresher
	mapper    *fieldmap.Mapper
	opts      Options
}

// New creates an Exporter. A nil mapper selects fieldmap.Default().
func New(refresher Refresher, mapper *fieldmap.Mapper, opts Options) *Exporter {
	if mapper == nil {
		mapper = fieldmap.Default()
	}
	if opts.Mode == "" {
		opts.Mode = fieldmap.ModeCommon
	}
	return &Exporter{refresher: refresher, mapper: mapper, opts: opts}
}

// Run processes entries in order. A failing entry becomes an error row and
// never stops the batch; only an invalid mode or cancellation returns an error.
func (e *Exporter) Run(ctx context.Context, entries []ids.Entry) (*Report, error) {
	fm, err := e.mapper.Resolve(e.opts.Mode)
	if err != nil {
		return nil, eris.Wrap(err, "export: resolve mode")
	}

	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Header:    flatten.Header(fm, e.opts.flattenOptions()),
	}
	log := zap.L().With(zap.String("run_id", report.RunID), zap.String("mode", e.opts.Mode))
	log.Info("export: starting run", zap.Int("entries", len(entries)))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "export: run cancelled")
		}

		res, rows := e.process(ctx, entry, fm)
		report.Results = append(report.Results, res)
		report.Rows = append(report.Rows, rows...)
		if res.Overwrote {
			report.Overwrites++
		}
	}

	log.Info("export: run complete",
		zap.Int("rows", len(report.Rows)),
		zap.Int("failed", len(report.Failed())),
		zap.Int("overwrites", report.Overwrites),
	)
	return report, nil
}

func (e *Exporter) process(ctx context.Context, entry ids.Entry, fm fieldmap.FieldMap) (model.Result, []flatten.Row) {
	log := zap.L().With(zap.String("ein", entry.EIN))

	out, err := e.refresher.Refresh(ctx, entry.EIN, e.opts.Force)
	if err != nil {
		log.Warn("export: record unavailable", zap.Error(err))
		res := model.Err(entry.EIN, err.Error())
		res.Label = entry.Label
		prefix := flatten.NamePrefix(res.DisplayName(), e.opts.flattenOptions())
		return res, []flatten.Row{flatten.MarkerRow(prefix, len(fm), err.Error())}
	}

	res := model.Ok(entry.EIN, out.Record)
	res.Label = entry.Label
	res.Overwrote = out.Overwrote
	res.Stale = out.Stale

	rows, err := e.Rows(out.Record, fm, entry.EIN)
	if errors.Is(err, flatten.ErrNoFilings) {
		log.Warn("export: organization has no filings")
	}
	return res, rows
}

// Rows flattens one record under the exporter's mode.
func (e *Exporter) Rows(rec *model.Record, fm fieldmap.FieldMap, ein string) ([]flatten.Row, error) {
	prefix := flatten.PrefixFor(rec.Organization, e.opts.flattenOptions())
	common := strings.EqualFold(e.opts.Mode, fieldmap.ModeCommon)

	if e.opts.LatestOnly {
		backup := e.opts.Backups[ein]
		var (
			row flatten.Row
			ok  bool
		)
		if common {
			row, ok = flatten.LatestCommon(rec, e.mapper, prefix, backup)
		} else {
			row, ok = flatten.LatestOnly(rec, fm, prefix, backup)
		}
		if !ok {
			return nil, flatten.ErrNoFilings
		}
		return []flatten.Row{row}, nil
	}

	if common {
		return flatten.FlattenCommon(rec, e.mapper, prefix)
	}
	return flatten.FlattenAll(rec, fm, prefix)
}
