package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/irs990-cli/internal/model"
	"github.com/sells-group/irs990-cli/internal/store"
)

var cachedCmd = &cobra.Command{
	Use:   "cached",
	Short: "List cached organizations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cached")
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := cachedEntries(ctx, env.Store)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No cached organizations.")
			return nil
		}

		formatCached(os.Stdout, entries)
		return nil
	},
}

// cachedEntry summarizes one snapshot.
type cachedEntry struct {
	EIN     string `json:"ein"`
	Name    string `json:"name"`
	Filings int    `json:"filings"`
	Newest  string `json:"newest_filing,omitempty"`
}

// cachedEntries loads every snapshot in st. Unreadable snapshots are logged
// and skipped.
func cachedEntries(ctx context.Context, st store.CacheStore) ([]cachedEntry, error) {
	eins, err := st.List(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "list cached organizations")
	}

	entries := make([]cachedEntry, 0, len(eins))
	for _, ein := range eins {
		rec, err := st.Load(ctx, ein)
		if err != nil {
			zap.L().Warn("skipping unreadable snapshot", zap.String("ein", ein), zap.Error(err))
			continue
		}
		e := cachedEntry{EIN: ein, Name: rec.Organization.Name(), Filings: len(rec.Filings)}
		if ts, ok := model.Newest(rec); ok {
			e.Newest = ts.Format("2006-01-02 15:04")
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// formatCached writes a tabular list of snapshots to w.
func formatCached(out io.Writer, entries []cachedEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "EIN\tNAME\tFILINGS\tNEWEST")
	_, _ = fmt.Fprintln(w, "---\t----\t-------\t------")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.EIN, e.Name, e.Filings, e.Newest)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(cachedCmd)
}
