package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/irs990-cli/internal/cache"
	"github.com/sells-group/irs990-cli/internal/model"
	"github.com/sells-group/irs990-cli/internal/monitoring"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [EIN...]",
	Short: "Refresh cached organization records",
	Long:  "Fetches each organization and replaces its cached snapshot only when the fetched filings are strictly newer.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		idsFile, _ := cmd.Flags().GetString("ids")

		entries, err := collectEntries(ctx, args, idsFile)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "fetch")
		if err != nil {
			return err
		}
		defer env.Close()

		results := make([]model.Result, 0, len(entries))
		for _, e := range entries {
			out, err := env.Refresher.Refresh(ctx, e.EIN, true)
			results = append(results, fetchResult(e.EIN, e.Label, out, err))
		}

		formatFetchResults(os.Stdout, results)

		snap := monitoring.Summarize(uuid.New().String(), "fetch", results)
		zap.L().Info("fetch complete",
			zap.String("run_id", snap.RunID),
			zap.Int("total", snap.Total),
			zap.Int("failed", snap.Failed),
			zap.Int("updated", snap.Overwrites),
		)
		env.Alerter.Check(ctx, snap)
		return nil
	},
}

func fetchResult(ein, label string, out cache.Outcome, err error) model.Result {
	if err != nil {
		r := model.Err(ein, err.Error())
		r.Label = label
		return r
	}
	r := model.Ok(ein, out.Record)
	r.Label = label
	r.Overwrote = out.Overwrote
	r.Stale = out.Stale
	return r
}

// formatFetchResults writes one line per EIN with the cache action taken.
func formatFetchResults(out io.Writer, results []model.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EIN\tNAME\tFILINGS\tNEWEST\tACTION")
	_, _ = fmt.Fprintln(w, "---\t----\t-------\t------\t------")

	for _, r := range results {
		if !r.OK() {
			_, _ = fmt.Fprintf(w, "%s\t%s\t\t\terror: %s\n", r.EIN, r.Label, r.Message)
			continue
		}

		name := r.Record.Organization.Name()
		if runes := []rune(name); len(runes) > 40 {
			name = string(runes[:37]) + "..."
		}

		newest := ""
		if ts, ok := model.Newest(r.Record); ok {
			newest = ts.Format("2006-01-02 15:04")
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			r.EIN,
			name,
			len(r.Record.Filings),
			newest,
			fetchAction(r),
		)
	}
	_ = w.Flush()
}

func fetchAction(r model.Result) string {
	switch {
	case r.Stale:
		return "stale (fetch failed)"
	case r.Overwrote:
		return "updated"
	default:
		return "unchanged"
	}
}

func init() {
	fetchCmd.Flags().String("ids", "", "identifier list (csv, xlsx, or yaml)")
	rootCmd.AddCommand(fetchCmd)
}
