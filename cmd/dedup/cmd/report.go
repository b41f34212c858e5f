package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corpustools/dedup/internal/bootstrap"
	"github.com/corpustools/dedup/internal/core/domain"
)

var (
	reportRunID  string
	reportRecent int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print stored run reports",
	Long: `Print a stored run report, or list recent runs.

Requires POSTGRES_DSN (or postgres_dsn in the config file) so runs are
persisted to the report store.

Examples:
  dedup report --run-id 6f1c0c9e-...
  dedup report --recent 10`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportRunID, "run-id", "", "run identifier to fetch")
	reportCmd.Flags().IntVar(&reportRecent, "recent", 0, "list the N most recent runs instead")
	reportCmd.MarkFlagsOneRequired("run-id", "recent")
	reportCmd.MarkFlagsMutuallyExclusive("run-id", "recent")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.PostgresDSN == "" {
		return fmt.Errorf("%w: POSTGRES_DSN is required for stored reports", domain.ErrConfiguration)
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if reportRunID != "" {
		stored, err := app.Reports.Get(ctx, reportRunID)
		if err != nil {
			return err
		}
		return printJSON(stored)
	}

	reports, err := app.Reports.ListRecent(ctx, reportRecent)
	if err != nil {
		return err
	}
	for _, stored := range reports {
		fmt.Printf("%s  started=%s  in=%d  survivors=%d  ratio=%.4f\n",
			stored.RunID,
			stored.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			stored.DocumentsIn,
			stored.Survivors,
			stored.DeduplicationRatio,
		)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
