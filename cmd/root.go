package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryan-williams/nj-crashes/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "nj-crashes",
	Short: "NJ traffic crash location reconciliation",
	Long:  "Reconciles reported and SRI/milepost-interpolated crash coordinates, assigns county polygons, and partitions records by state boundary.",
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
