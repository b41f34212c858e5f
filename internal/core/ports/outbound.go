package ports

import (
	"context"

	"github.com/corpustools/dedup/internal/core/domain"
)

// Source streams documents from the input corpus. Next returns io.EOF when
// the stream is exhausted.
type Source interface {
	Next(ctx context.Context) (*domain.Document, error)
	Close() error
}

// Sink receives surviving documents. Writes happen incrementally so partial
// output remains flushed when a run aborts.
type Sink interface {
	Write(ctx context.Context, doc *domain.Document) error
	Close() error
}

// Normalizer canonicalizes raw text before fingerprinting and embedding.
// Normalize must be deterministic: equal inputs yield equal outputs.
type Normalizer interface {
	Normalize(text string) string
}

// FingerprintRegistry is the shared exact-duplicate membership set. Admit is
// an atomic check-then-insert, safe across concurrent shards. It returns
// ErrInvariant when a fingerprint's verification digest disagrees with the
// one recorded at first admission.
type FingerprintRegistry interface {
	Sum(normalized string) domain.Fingerprint
	Admit(fp domain.Fingerprint) (domain.Admission, error)
	Len() int
}

// SimilarityIndex assigns embedding vectors to near-duplicate clusters by
// comparing against cluster representatives only. Callers must serialize
// Assign calls: cluster creation is order-sensitive.
type SimilarityIndex interface {
	Assign(ctx context.Context, position int64, vector []float32) (domain.Assignment, error)
	Len() int
}

// Embedder computes one vector per text via the external provider. Calls are
// bounded by the provider client's per-call timeout. A nil entry in the
// result marks a text the provider could not embed.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingCache avoids recomputing vectors for text already embedded within
// a run. Implementations are bounded.
type EmbeddingCache interface {
	Get(fp domain.Fingerprint) ([]float32, bool)
	Add(fp domain.Fingerprint, vector []float32)
}

// ReportStore persists run reports.
type ReportStore interface {
	Save(ctx context.Context, report *domain.DedupReport) error
	Get(ctx context.Context, runID string) (*domain.DedupReport, error)
}

// JobQueue transports queued dedup runs between producers and workers.
type JobQueue interface {
	PublishJob(ctx context.Context, job domain.DedupJob) error
	SubscribeJobs(ctx context.Context, handler func(context.Context, domain.DedupJob) error) error
	PublishResult(ctx context.Context, result domain.JobResult) error
}
