package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/irs990-cli/internal/export"
	"github.com/sells-group/irs990-cli/internal/flatten"
	"github.com/sells-group/irs990-cli/internal/ids"
	"github.com/sells-group/irs990-cli/internal/model"
)

var showCmd = &cobra.Command{
	Use:   "show <EIN>",
	Short: "Print the flattened filings of one organization",
	Long:  "Prints one organization's rows from the cache, fetching it first only when no snapshot exists.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
			cfg.Export.Mode = mode
		}

		env, err := initEnv(ctx, "show")
		if err != nil {
			return err
		}
		defer env.Close()

		ein := model.NormalizeEIN(args[0])
		if !ids.ValidEIN(ein) {
			return eris.Errorf("invalid EIN %q", args[0])
		}
		out, err := env.Refresher.Refresh(ctx, ein, false)
		if err != nil {
			return err
		}
		return showRecord(os.Stdout, env, out.Record, ein)
	},
}

// showRecord prints one record's rows under the configured mode. A record
// without filings is logged and prints nothing.
func showRecord(out io.Writer, env *appEnv, rec *model.Record, ein string) error {
	fm, err := env.Mapper.Resolve(cfg.Export.Mode)
	if err != nil {
		return err
	}
	opts := export.Options{
		Mode:            cfg.Export.Mode,
		IncludeLocation: cfg.Export.IncludeLocation,
		TitleCase:       cfg.Export.TitleCase,
	}
	rows, err := env.exporter(opts).Rows(rec, fm, ein)
	if errors.Is(err, flatten.ErrNoFilings) {
		zap.L().Warn("show: organization has no filings", zap.String("ein", ein))
		return nil
	}
	if err != nil {
		return err
	}

	formatRows(out, flatten.Header(fm, flatten.Options{IncludeLocation: opts.IncludeLocation}), rows)
	return nil
}

// formatRows writes a header and rows as an aligned table.
func formatRows(out io.Writer, header []string, rows []flatten.Row) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row.Strings(), "\t"))
	}
	_ = w.Flush()
}

func init() {
	showCmd.Flags().String("mode", "", "field map: common, 990, 990EZ, or 990PF (default from config)")
	rootCmd.AddCommand(showCmd)
}
