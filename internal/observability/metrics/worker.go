package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corpustools/dedup/internal/core/domain"
)

// WorkerMetrics covers queued deduplication runs. Counters live on a
// dedicated registry so the /metrics endpoint exposes nothing else.
type WorkerMetrics struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	runsInFlight   prometheus.Gauge
	documentsTotal *prometheus.CounterVec
	comparisons    prometheus.Counter
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedup",
			Subsystem: "worker",
			Name:      "runs_total",
			Help:      "Total deduplication runs by status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dedup",
			Subsystem: "worker",
			Name:      "run_duration_seconds",
			Help:      "Deduplication run duration in seconds by status.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"service", "status"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dedup",
			Subsystem: "worker",
			Name:      "runs_in_flight",
			Help:      "Number of deduplication runs currently executing.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dedup",
			Subsystem: "worker",
			Name:      "documents_total",
			Help:      "Documents processed by outcome.",
		},
		[]string{"service", "outcome"},
	)
	comparisons := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dedup",
			Subsystem: "worker",
			Name:      "embedding_comparisons_total",
			Help:      "Representative vector comparisons performed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(runsTotal, runDuration, runsInFlight, documentsTotal, comparisons)

	return &WorkerMetrics{
		registry:       registry,
		runsTotal:      runsTotal,
		runDuration:    runDuration,
		runsInFlight:   runsInFlight,
		documentsTotal: documentsTotal,
		comparisons:    comparisons,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRun() {
	m.runsInFlight.Inc()
}

// FinishRun records the run outcome and unrolls the report counters into the
// per-outcome document counter.
func (m *WorkerMetrics) FinishRun(service string, duration time.Duration, report *domain.DedupReport, err error) {
	m.runsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(service, status).Inc()
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())

	if report == nil {
		return
	}
	m.documentsTotal.WithLabelValues(service, "survivor").Add(float64(report.Survivors))
	m.documentsTotal.WithLabelValues(service, "exact_duplicate").Add(float64(report.ExactDuplicatesRemoved))
	m.documentsTotal.WithLabelValues(service, "semantic_duplicate").Add(float64(report.SemanticDuplicatesRemoved))
	m.documentsTotal.WithLabelValues(service, "below_min_length").Add(float64(report.BelowMinLength))
	m.documentsTotal.WithLabelValues(service, "error").Add(float64(report.Errors))
	m.comparisons.Add(float64(report.EmbeddingComparisons))
}
