package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/renderinc/review-queue/internal/config"
	"github.com/renderinc/review-queue/internal/logging"
)

// app carries what every subcommand needs once the root has run.
type app struct {
	envFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "review-queue",
		Short: "Human review queue that turns raw Q&A logs into knowledge records",
		Long: `review-queue serves the review API, imports raw source documents and
reports decision statistics. Configuration comes from the environment
(optionally a .env file); see REVIEW_* variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath, _ = cmd.Flags().GetString("db")
			}
			if cmd.Flags().Changed("index") {
				cfg.IndexPath, _ = cmd.Flags().GetString("index")
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file loaded before the process environment")
	root.PersistentFlags().String("db", "", "SQLite database path (overrides REVIEW_DB_PATH)")
	root.PersistentFlags().String("index", "", "Bleve index directory (overrides REVIEW_INDEX_PATH)")

	root.AddCommand(
		newServeCmd(a),
		newImportCmd(a),
		newStatsCmd(a),
		newGetCmd(a),
		newSearchCmd(a),
		newReindexCmd(a),
	)

	return root
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
