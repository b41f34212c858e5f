package ports

import (
	"context"

	"github.com/corpustools/dedup/internal/core/domain"
)

// CorpusDeduplicator is the inbound contract for one deduplication run.
// The returned report is non-nil even when err is non-nil (cancellation,
// partial failure).
type CorpusDeduplicator interface {
	Run(ctx context.Context, src Source, sink Sink) (*domain.DedupReport, error)
}
