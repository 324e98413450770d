package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/irs990-cli/internal/cache"
	"github.com/sells-group/irs990-cli/internal/config"
	"github.com/sells-group/irs990-cli/internal/export"
	"github.com/sells-group/irs990-cli/internal/flatten"
	"github.com/sells-group/irs990-cli/internal/ids"
	"github.com/sells-group/irs990-cli/internal/model"
)

func TestCollectEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.csv")
	require.NoError(t, os.WriteFile(path, []byte("ein,label\n111,One\n222,Two\n"), 0o644))

	entries, err := collectEntries(context.Background(), []string{"22-2", "333"}, path)
	require.NoError(t, err)
	assert.Equal(t, []ids.Entry{{EIN: "222"}, {EIN: "333"}, {EIN: "111", Label: "One"}}, entries)

	_, err = collectEntries(context.Background(), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no EINs given")

	_, err = collectEntries(context.Background(), nil, filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)

	_, err = collectEntries(context.Background(), []string{"../etc"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ids: invalid EIN")
}

func TestFetchResult(t *testing.T) {
	rec := testRecord("Org", "2024-01-01")
	ok := fetchResult("1", "Label", cache.Outcome{Record: rec, Overwrote: true}, nil)
	assert.True(t, ok.OK())
	assert.True(t, ok.Overwrote)
	assert.Equal(t, "Label", ok.Label)

	failed := fetchResult("2", "", cache.Outcome{}, errors.New("boom"))
	assert.False(t, failed.OK())
	assert.Equal(t, "boom", failed.Message)
}

func TestFormatFetchResults(t *testing.T) {
	updated := model.Ok("111", testRecord("Updated Org", "2024-03-01T10:30:00", "2023-01-01"))
	updated.Overwrote = true
	stale := model.Ok("222", testRecord("Stale Org", "2020-01-01"))
	stale.Stale = true
	unchanged := model.Ok("333", testRecord("Same Org"))
	failed := model.Err("444", "propublica: fetch 444: unexpected status 404")

	var buf bytes.Buffer
	formatFetchResults(&buf, []model.Result{updated, stale, unchanged, failed})

	out := buf.String()
	assert.Contains(t, out, "EIN")
	assert.Contains(t, out, "ACTION")
	assert.Contains(t, out, "Updated Org")
	assert.Contains(t, out, "2024-03-01 10:30")
	assert.Contains(t, out, "updated")
	assert.Contains(t, out, "stale (fetch failed)")
	assert.Contains(t, out, "unchanged")
	assert.Contains(t, out, "error: propublica: fetch 444")
}

func TestFormatFetchResults_TruncatesLongNames(t *testing.T) {
	long := model.Ok("1", testRecord("A VERY LONG ORGANIZATION NAME THAT KEEPS GOING AND GOING"))
	var buf bytes.Buffer
	formatFetchResults(&buf, []model.Result{long})
	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), "AND GOING")
}

func TestFormatFetchResults_TruncatesByRune(t *testing.T) {
	name := strings.Repeat("É", 50)
	var buf bytes.Buffer
	formatFetchResults(&buf, []model.Result{model.Ok("1", testRecord(name))})

	out := buf.String()
	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, strings.Repeat("É", 37)+"...")
	assert.NotContains(t, out, strings.Repeat("É", 38))
}

func TestCachedEntries(t *testing.T) {
	env := newTestEnv(t, &stubClient{})
	seedStore(t, env.Store, "222", testRecord("Second", "2023-05-01"))
	seedStore(t, env.Store, "111", testRecord("First"))

	entries, err := cachedEntries(context.Background(), env.Store)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "111", entries[0].EIN)
	assert.Equal(t, 0, entries[0].Filings)
	assert.Empty(t, entries[0].Newest)
	assert.Equal(t, "2023-05-01 00:00", entries[1].Newest)

	var buf bytes.Buffer
	formatCached(&buf, entries)
	assert.Contains(t, buf.String(), "FILINGS")
	assert.Contains(t, buf.String(), "Second")
}

func TestApplyExportFlags(t *testing.T) {
	flags := exportCmd.Flags()
	t.Cleanup(func() {
		for _, name := range []string{"mode", "location", "title-case"} {
			f := flags.Lookup(name)
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})

	ec := config.ExportConfig{Mode: "common", IncludeLocation: true}
	applyExportFlags(flags, &ec)
	assert.Equal(t, "common", ec.Mode, "unset flags keep config values")

	require.NoError(t, flags.Set("mode", "990EZ"))
	require.NoError(t, flags.Set("location", "false"))
	require.NoError(t, flags.Set("title-case", "true"))
	applyExportFlags(flags, &ec)
	assert.Equal(t, "990EZ", ec.Mode)
	assert.False(t, ec.IncludeLocation)
	assert.True(t, ec.TitleCase)
}

func TestPrintExportSummary(t *testing.T) {
	failed := model.Err("222", "connection refused")
	failed.Label = "Beta"
	report := &export.Report{
		RunID:      "run-1",
		Rows:       []flatten.Row{{model.Text("a")}, {model.Text("b")}},
		Results:    []model.Result{model.Ok("111", testRecord("Alpha")), failed},
		Overwrites: 1,
	}

	var buf bytes.Buffer
	printExportSummary(&buf, report)
	assert.Contains(t, buf.String(), "run run-1: 2 rows, 2 organizations, 1 updated, 1 failed")
	assert.Contains(t, buf.String(), "Beta: connection refused")
}

func TestFormatRows(t *testing.T) {
	var buf bytes.Buffer
	formatRows(&buf, []string{"Organization", "Total Revenue"}, []flatten.Row{{model.Text("Org"), model.Absent}})
	assert.Contains(t, buf.String(), "Organization")
	assert.Contains(t, buf.String(), "Org")
}

func TestShowRecord(t *testing.T) {
	env := newTestEnv(t, &stubClient{})

	var buf bytes.Buffer
	require.NoError(t, showRecord(&buf, env, testRecord("Alpha", "2023-01-01", "2022-01-01"), "111"))
	assert.Contains(t, buf.String(), "Organization")
	assert.Contains(t, buf.String(), "Alpha")
}

func TestShowRecord_NoFilingsLogsWarning(t *testing.T) {
	env := newTestEnv(t, &stubClient{})
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	var buf bytes.Buffer
	require.NoError(t, showRecord(&buf, env, testRecord("Empty"), "222"))
	assert.Empty(t, buf.String())

	entries := logs.FilterMessage("show: organization has no filings").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "222", entries[0].ContextMap()["ein"])
}

func TestInitMapper(t *testing.T) {
	m, err := initMapper(config.ExportConfig{})
	require.NoError(t, err)
	assert.NotEmpty(t, m.Common)

	_, err = initMapper(config.ExportConfig{FieldMapFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestInitEnv_Memory(t *testing.T) {
	setTestConfig(t)
	env, err := initEnv(context.Background(), "fetch")
	require.NoError(t, err)
	defer env.Close()
	assert.NotNil(t, env.Refresher)
	assert.NotNil(t, env.Client)
}

func TestInitEnv_InvalidConfig(t *testing.T) {
	setTestConfig(t)
	cfg.Cache.Driver = "redis"
	_, err := initEnv(context.Background(), "fetch")
	require.Error(t, err)
}
