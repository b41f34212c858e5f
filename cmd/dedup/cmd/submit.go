package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/corpustools/dedup/internal/bootstrap"
	"github.com/corpustools/dedup/internal/core/domain"
)

var (
	submitInput     string
	submitOutput    string
	submitMethod    string
	submitThreshold float64
	submitBatchSize int
	submitMinLength int
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Publish a deduplication job to the worker queue",
	Long: `Publish a deduplication job for a worker to pick up.

Input and output paths are resolved on the worker host. The worker publishes
the run report on the result subject when the job finishes.

Examples:
  dedup submit --input /data/corpus --output /data/deduped
  dedup submit --input /data/docs.jsonl --output /data/kept.jsonl --method both`,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitInput, "input", "", "corpus path on the worker host (required)")
	submitCmd.Flags().StringVar(&submitOutput, "output", "", "survivor path on the worker host (required)")
	submitCmd.Flags().StringVar(&submitMethod, "method", "", "deduplication method: exact, semantic or both")
	submitCmd.Flags().Float64Var(&submitThreshold, "similarity-threshold", 0, "cosine similarity override for this job")
	submitCmd.Flags().IntVar(&submitBatchSize, "batch-size", 0, "embedding batch size override for this job")
	submitCmd.Flags().IntVar(&submitMinLength, "min-length", 0, "minimum document length override for this job")
	submitCmd.MarkFlagRequired("input")
	submitCmd.MarkFlagRequired("output")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if submitMethod != "" {
		if _, err := domain.ParseMethod(submitMethod); err != nil {
			return err
		}
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	queue, err := app.ConnectQueue()
	if err != nil {
		return err
	}
	defer queue.Close()

	job := domain.DedupJob{
		JobID:               uuid.NewString(),
		Input:               submitInput,
		Output:              submitOutput,
		Method:              submitMethod,
		SimilarityThreshold: submitThreshold,
		BatchSize:           submitBatchSize,
		MinDocumentLength:   submitMinLength,
	}
	if err := queue.PublishJob(ctx, job); err != nil {
		return err
	}

	fmt.Printf("Submitted job %s\n", job.JobID)
	fmt.Printf("  Results on: %s.done\n", cfg.NATSSubject)
	return nil
}
