package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corpustools/dedup/internal/bootstrap"
	"github.com/corpustools/dedup/internal/config"
	"github.com/corpustools/dedup/internal/core/domain"
	"github.com/corpustools/dedup/internal/infrastructure/corpus"
	"github.com/corpustools/dedup/internal/infrastructure/queue/nats"
	"github.com/corpustools/dedup/internal/observability/logging"
	"github.com/corpustools/dedup/internal/observability/metrics"
)

const service = "dedup-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	queue, err := app.ConnectQueue()
	if err != nil {
		slog.Error("queue_connect_failed", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsServer := startMetricsServer(cfg.WorkerMetricsPort, workerMetrics)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	worker := &worker{app: app, queue: queue, metrics: workerMetrics}

	slog.Info("worker_started", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)
	if err := queue.SubscribeJobs(ctx, worker.handle); err != nil {
		slog.Error("subscribe_failed", "error", err)
		os.Exit(1)
	}
}

type worker struct {
	app     *bootstrap.App
	queue   *nats.Queue
	metrics *metrics.WorkerMetrics
}

// handle runs one queued job end to end. Run failures are published on the
// result subject rather than returned for redelivery.
func (w *worker) handle(ctx context.Context, job domain.DedupJob) error {
	started := time.Now()
	w.metrics.StartRun()

	report, err := w.run(ctx, job)
	w.metrics.FinishRun(service, time.Since(started), report, err)

	result := domain.JobResult{JobID: job.JobID, Report: report}
	if report != nil {
		result.RunID = report.RunID
	}
	if err != nil {
		result.Error = err.Error()
	}
	if publishErr := w.queue.PublishResult(context.WithoutCancel(ctx), result); publishErr != nil {
		slog.Error("result_publish_failed", "job_id", job.JobID, "error", publishErr)
	}
	return err
}

func (w *worker) run(ctx context.Context, job domain.DedupJob) (*domain.DedupReport, error) {
	runCfg, err := applyJobOverrides(w.app.Config, job)
	if err != nil {
		return nil, err
	}

	pipeline, err := w.app.NewPipeline(runCfg)
	if err != nil {
		return nil, err
	}

	src, err := corpus.OpenSource(job.Input)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	sink, err := corpus.OpenSink(job.Output)
	if err != nil {
		return nil, err
	}

	report, runErr := pipeline.Run(ctx, src, sink)
	if closeErr := sink.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	reportPath := corpus.ReportPathFor(job.Output)
	if err := corpus.WriteReport(reportPath, report); err != nil {
		slog.Error("report_write_failed", "job_id", job.JobID, "path", reportPath, "error", err)
	}
	if w.app.Reports != nil {
		if err := w.app.Reports.Save(context.WithoutCancel(ctx), report); err != nil {
			slog.Error("report_store_failed", "job_id", job.JobID, "run_id", report.RunID, "error", err)
		}
	}

	return report, runErr
}

func applyJobOverrides(base config.Config, job domain.DedupJob) (config.Config, error) {
	out := base
	if job.Method != "" {
		method, err := domain.ParseMethod(job.Method)
		if err != nil {
			return out, err
		}
		out.EnableExactDeduplication = method.Exact()
		out.EnableSemanticDeduplication = method.Semantic()
	}
	if job.SimilarityThreshold > 0 {
		out.SimilarityThreshold = job.SimilarityThreshold
	}
	if job.BatchSize > 0 {
		out.BatchSize = job.BatchSize
	}
	if job.MinDocumentLength > 0 {
		out.MinDocumentLength = job.MinDocumentLength
	}
	return out, nil
}

func startMetricsServer(port string, workerMetrics *metrics.WorkerMetrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", workerMetrics.Handler())

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics_server_failed", "error", err)
		}
	}()
	return server
}
