package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sells-group/irs990-cli/internal/config"
	"github.com/sells-group/irs990-cli/internal/export"
	"github.com/sells-group/irs990-cli/internal/monitoring"
)

var exportCmd = &cobra.Command{
	Use:   "export [EIN...]",
	Short: "Export flattened filings as CSV or XLSX",
	Long: `Refreshes each organization, flattens its filings with the active field map,
and writes one table. Organizations that cannot be fetched or loaded appear as
error rows instead of aborting the export.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flags := cmd.Flags()

		idsFile, _ := flags.GetString("ids")
		entries, err := collectEntries(ctx, args, idsFile)
		if err != nil {
			return err
		}

		applyExportFlags(flags, &cfg.Export)
		output, _ := flags.GetString("output")
		format := export.FormatForPath(output, cfg.Export.Format)
		if flags.Changed("format") {
			format, _ = flags.GetString("format")
		}
		cfg.Export.Format = format

		env, err := initEnv(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		force, _ := flags.GetBool("force")
		latest, _ := flags.GetBool("latest")
		exp := env.exporter(export.Options{
			Mode:            cfg.Export.Mode,
			Force:           force,
			IncludeLocation: cfg.Export.IncludeLocation,
			TitleCase:       cfg.Export.TitleCase,
			LatestOnly:      latest,
		})

		report, err := exp.Run(ctx, entries)
		if err != nil {
			return err
		}

		if output == "" || output == "-" {
			if err := export.Write(os.Stdout, format, report); err != nil {
				return err
			}
		} else {
			if err := export.WriteFile(output, format, report); err != nil {
				return err
			}
			zap.L().Info("export written", zap.String("path", output), zap.String("format", format))
		}

		printExportSummary(os.Stderr, report)
		env.Alerter.Check(ctx, monitoring.Summarize(report.RunID, "export", report.Results))
		return nil
	},
}

// applyExportFlags overrides config values with flags the user set.
func applyExportFlags(flags *pflag.FlagSet, ec *config.ExportConfig) {
	if flags.Changed("mode") {
		ec.Mode, _ = flags.GetString("mode")
	}
	if flags.Changed("location") {
		ec.IncludeLocation, _ = flags.GetBool("location")
	}
	if flags.Changed("title-case") {
		ec.TitleCase, _ = flags.GetBool("title-case")
	}
	if flags.Changed("field-map") {
		ec.FieldMapFile, _ = flags.GetString("field-map")
	}
	if flags.Changed("backups") {
		ec.BackupFile, _ = flags.GetString("backups")
	}
}

// printExportSummary reports row counts and failed EINs.
func printExportSummary(out io.Writer, report *export.Report) {
	failed := report.Failed()
	_, _ = fmt.Fprintf(out, "run %s: %d rows, %d organizations, %d updated, %d failed\n",
		report.RunID, len(report.Rows), len(report.Results), report.Overwrites, len(failed))
	for _, r := range failed {
		_, _ = fmt.Fprintf(out, "  %s: %s\n", r.DisplayName(), r.Message)
	}
}

func init() {
	f := exportCmd.Flags()
	f.String("ids", "", "identifier list (csv, xlsx, or yaml)")
	f.String("mode", "", "field map: common, 990, 990EZ, or 990PF (default from config)")
	f.String("format", "", "output format: csv or xlsx (default from config or --output extension)")
	f.StringP("output", "o", "", "output path (default stdout)")
	f.Bool("force", false, "fetch every organization even when cached")
	f.Bool("latest", false, "emit only the most recent filing per organization")
	f.Bool("location", true, "include city and state columns")
	f.Bool("title-case", false, "title-case all-caps names and cities")
	f.String("field-map", "", "YAML field map file (default built-in)")
	f.String("backups", "", "YAML backup values for organizations without filings")
	rootCmd.AddCommand(exportCmd)
}
