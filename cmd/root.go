package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/irs990-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "irs990-cli",
	Short: "Fetch, cache, and export nonprofit 990 filings",
	Long:  "Fetches organization records from the ProPublica Nonprofit Explorer API, keeps the newest snapshot per EIN, and flattens filings into comparable CSV or XLSX tables.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
