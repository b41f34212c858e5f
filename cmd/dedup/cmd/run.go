package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/corpustools/dedup/internal/bootstrap"
	"github.com/corpustools/dedup/internal/config"
	"github.com/corpustools/dedup/internal/core/domain"
	"github.com/corpustools/dedup/internal/infrastructure/corpus"
)

var (
	runInput     string
	runOutput    string
	runMethod    string
	runThreshold float64
	runBatchSize int
	runMinLength int
	runWorkers   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Deduplicate a corpus",
	Long: `Deduplicate a corpus and write the surviving documents to the output.

The input is either a directory of .txt files or a JSONL file with
{"id", "text"} records; the output mirrors that choice (a directory, or a
path ending in .jsonl). A JSON run report is written beside the output.

Examples:
  dedup run --input ./corpus --output ./deduped
  dedup run --input docs.jsonl --output kept.jsonl --method exact
  dedup run --input docs.jsonl --output kept.jsonl --similarity-threshold 0.9`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runInput, "input", "", "corpus to deduplicate: directory of .txt files or a JSONL file (required)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "destination for survivors: directory or .jsonl path (required)")
	runCmd.Flags().StringVar(&runMethod, "method", "", "deduplication method: exact, semantic or both")
	runCmd.Flags().Float64Var(&runThreshold, "similarity-threshold", 0, "cosine similarity at or above which documents join a cluster")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "documents embedded per provider call")
	runCmd.Flags().IntVar(&runMinLength, "min-length", 0, "documents shorter than this many runes bypass deduplication")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "parallel normalize/fingerprint workers")
	runCmd.MarkFlagRequired("input")
	runCmd.MarkFlagRequired("output")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCfg, err := applyRunFlags(cmd, cfg)
	if err != nil {
		return err
	}

	app, err := bootstrap.New(ctx, runCfg)
	if err != nil {
		return err
	}
	defer app.Close()

	pipeline, err := app.NewPipeline(runCfg)
	if err != nil {
		return err
	}

	src, err := corpus.OpenSource(runInput)
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := corpus.OpenSink(runOutput)
	if err != nil {
		return err
	}

	started := time.Now()
	report, runErr := pipeline.Run(ctx, src, sink)
	if closeErr := sink.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	reportPath := corpus.ReportPathFor(runOutput)
	if err := corpus.WriteReport(reportPath, report); err != nil {
		slog.Error("report_write_failed", "path", reportPath, "error", err)
	}
	if app.Reports != nil {
		if err := app.Reports.Save(context.WithoutCancel(ctx), report); err != nil {
			slog.Error("report_store_failed", "run_id", report.RunID, "error", err)
		}
	}

	printReport(report, reportPath, time.Since(started))
	return runErr
}

// applyRunFlags layers explicit CLI flags over the loaded configuration.
// Flags left at their defaults do not override env or file settings.
func applyRunFlags(cmd *cobra.Command, base config.Config) (config.Config, error) {
	out := base
	if cmd.Flags().Changed("method") {
		method, err := domain.ParseMethod(runMethod)
		if err != nil {
			return out, err
		}
		out.EnableExactDeduplication = method.Exact()
		out.EnableSemanticDeduplication = method.Semantic()
	}
	if cmd.Flags().Changed("similarity-threshold") {
		out.SimilarityThreshold = runThreshold
	}
	if cmd.Flags().Changed("batch-size") {
		out.BatchSize = runBatchSize
	}
	if cmd.Flags().Changed("min-length") {
		out.MinDocumentLength = runMinLength
	}
	if cmd.Flags().Changed("workers") {
		out.Workers = runWorkers
	}
	return out, nil
}

func printReport(report *domain.DedupReport, reportPath string, elapsed time.Duration) {
	fmt.Printf("\nDeduplication complete:\n")
	fmt.Printf("  Documents in:        %d\n", report.DocumentsIn)
	fmt.Printf("  Exact removed:       %d\n", report.ExactDuplicatesRemoved)
	fmt.Printf("  Semantic removed:    %d\n", report.SemanticDuplicatesRemoved)
	fmt.Printf("  Below min length:    %d\n", report.BelowMinLength)
	fmt.Printf("  Survivors:           %d\n", report.Survivors)
	fmt.Printf("  Errors:              %d\n", report.Errors)
	fmt.Printf("  Deduplication ratio: %.4f\n", report.DeduplicationRatio)
	fmt.Printf("  Duration:            %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Report:              %s\n", reportPath)
}
