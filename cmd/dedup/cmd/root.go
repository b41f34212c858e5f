package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/corpustools/dedup/internal/config"
	"github.com/corpustools/dedup/internal/observability/logging"
)

var (
	cfgFile string
	cfg     config.Config
	cfgErr  error
)

var rootCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Corpus deduplication engine",
	Long: `dedup removes exact and near-duplicate documents from a text corpus.

Exact duplicates are detected by fingerprinting normalized text; near
duplicates are clustered by embedding similarity against cluster
representatives.

Commands:
  run     Deduplicate a corpus and write survivors plus a run report
  submit  Publish a deduplication job to the worker queue
  report  Print a stored run report from the report store`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return cfgErr
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file overlaying environment settings")
}

func initConfig() {
	cfg = config.Load()
	if cfgFile == "" {
		return
	}
	overlaid, err := config.LoadFile(cfg, cfgFile)
	if err != nil {
		cfgErr = fmt.Errorf("load config %s: %w", cfgFile, err)
		return
	}
	cfg = overlaid
}

func initLogger() {
	slog.SetDefault(logging.NewJSONLogger("dedup-cli", cfg.LogLevel))
}
