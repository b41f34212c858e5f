package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/corpustools/dedup/internal/core/domain"
	"github.com/corpustools/dedup/internal/core/ports"
)

type DedupConfig struct {
	Method              domain.Method
	SimilarityThreshold float64
	BatchSize           int
	MinDocumentLength   int
	Workers             int
}

func (c DedupConfig) normalize() DedupConfig {
	out := c
	if out.BatchSize <= 0 {
		out.BatchSize = 32
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	return out
}

// DedupPipeline coordinates a full run: normalize, exact-duplicate admission,
// semantic clustering, materialization. One pipeline serves one run; the
// registry and index carry per-run state.
type DedupPipeline struct {
	cfg        DedupConfig
	normalizer ports.Normalizer
	registry   ports.FingerprintRegistry
	index      ports.SimilarityIndex
	embedder   ports.Embedder
	cache      ports.EmbeddingCache
}

func NewDedupPipeline(
	cfg DedupConfig,
	normalizer ports.Normalizer,
	registry ports.FingerprintRegistry,
	index ports.SimilarityIndex,
	embedder ports.Embedder,
	cache ports.EmbeddingCache,
) (*DedupPipeline, error) {
	if normalizer == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "build pipeline", errors.New("normalizer is required"))
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return nil, domain.WrapError(domain.ErrConfiguration, "build pipeline",
			fmt.Errorf("similarity threshold %v outside [0,1]", cfg.SimilarityThreshold))
	}
	if registry == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "build pipeline", errors.New("fingerprint registry is required"))
	}
	if cfg.Method.Semantic() {
		if index == nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "build pipeline", errors.New("similarity index is required for semantic deduplication"))
		}
		if embedder == nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "build pipeline", errors.New("embedder is required for semantic deduplication"))
		}
	}
	return &DedupPipeline{
		cfg:        cfg.normalize(),
		normalizer: normalizer,
		registry:   registry,
		index:      index,
		embedder:   embedder,
		cache:      cache,
	}, nil
}

type clusterMember struct {
	sourceID   string
	position   int64
	similarity float64
}

type clusterState struct {
	members []clusterMember
	// best is the current representative candidate: longest normalized text,
	// ties broken by earliest position. Only its document is retained.
	best    *domain.Document
	bestLen int
}

type runState struct {
	report *domain.DedupReport

	// survivors admitted outside clustering (short docs, embed failures),
	// retained only when output is deferred to materialization.
	survivors []*domain.Document
	clusters  map[int]*clusterState
	batch     []*domain.Document

	streaming bool
	written   int64
}

// Run executes the pipeline. The returned report is non-nil even when err is
// not: a cancelled or failed run still accounts for everything it processed.
func (p *DedupPipeline) Run(ctx context.Context, src ports.Source, sink ports.Sink) (*domain.DedupReport, error) {
	start := time.Now()
	report := &domain.DedupReport{
		RunID:     uuid.NewString(),
		StartedAt: start.UTC(),
		Threshold: p.cfg.SimilarityThreshold,
	}
	run := &runState{
		report:    report,
		clusters:  make(map[int]*clusterState),
		streaming: !p.cfg.Method.Semantic(),
	}

	err := p.stream(ctx, src, sink, run)
	if err == nil {
		err = p.flushBatch(ctx, sink, run)
	}

	// Materialization runs even after cancellation so clusters formed so far
	// are flushed; a fresh context lets those writes finish.
	finishCtx := ctx
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		finishCtx = context.WithoutCancel(ctx)
	}
	if mErr := p.materialize(finishCtx, sink, run); mErr != nil && err == nil {
		err = mErr
	}

	report.ElapsedSeconds = time.Since(start).Seconds()
	report.FinalizeRatio()
	return report, err
}

// stream reads the source, fans normalization and fingerprinting out to
// workers, and routes documents sequentially in stream position order.
func (p *DedupPipeline) stream(ctx context.Context, src ports.Source, sink ports.Sink, run *runState) error {
	group, gctx := errgroup.WithContext(ctx)
	jobs := make(chan *domain.Document, p.cfg.Workers*2)
	prepared := make(chan *domain.Document, p.cfg.Workers*2)

	group.Go(func() error {
		defer close(jobs)
		lastGood := int64(-1)
		for {
			doc, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return &domain.StreamError{Offset: lastGood, Err: err}
			}
			run.report.DocumentsIn++
			lastGood = doc.Position
			select {
			case jobs <- doc:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var workers sync.WaitGroup
	workers.Add(p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		group.Go(func() error {
			defer workers.Done()
			for doc := range jobs {
				doc.NormalizedText = p.normalizer.Normalize(doc.RawText)
				doc.Fingerprint = p.registry.Sum(doc.NormalizedText)
				select {
				case prepared <- doc:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(prepared)
	}()

	group.Go(func() error {
		// Admission and clustering are order-sensitive: re-sequence worker
		// output back into stream position order.
		pending := make(map[int64]*domain.Document)
		next := int64(0)
		for doc := range prepared {
			pending[doc.Position] = doc
			for {
				ready, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++
				if err := p.route(gctx, ready, sink, run); err != nil {
					return err
				}
			}
		}
		return nil
	})

	return group.Wait()
}

func (p *DedupPipeline) route(ctx context.Context, doc *domain.Document, sink ports.Sink, run *runState) error {
	if utf8.RuneCountInString(doc.NormalizedText) < p.cfg.MinDocumentLength {
		// Dropped before hashing: counted on its own, never as a duplicate
		// and never written to the output.
		run.report.BelowMinLength++
		return nil
	}

	if p.cfg.Method.Exact() {
		admission, err := p.registry.Admit(doc.Fingerprint)
		if err != nil {
			return fmt.Errorf("admit %s: %w", doc.SourceID, err)
		}
		if admission == domain.Duplicate {
			run.report.ExactDuplicatesRemoved++
			return nil
		}
	}

	if p.cfg.Method.Semantic() {
		run.batch = append(run.batch, doc)
		if len(run.batch) >= p.cfg.BatchSize {
			return p.flushBatch(ctx, sink, run)
		}
		return nil
	}

	return p.keep(ctx, doc, sink, run)
}

// keep marks doc a survivor outside any cluster. Streaming modes write it
// through immediately; semantic modes defer to materialization so output
// stays in stream order.
func (p *DedupPipeline) keep(ctx context.Context, doc *domain.Document, sink ports.Sink, run *runState) error {
	if !run.streaming {
		doc.Embedding = nil
		run.survivors = append(run.survivors, doc)
		return nil
	}
	if err := sink.Write(ctx, doc); err != nil {
		return &domain.StreamError{Offset: doc.Position - 1, Err: err}
	}
	run.written++
	run.report.Survivors++
	return nil
}

// flushBatch embeds the pending batch and assigns each vector to a cluster.
// A whole-batch provider failure falls back to per-document calls so one bad
// document cannot take down its batchmates.
func (p *DedupPipeline) flushBatch(ctx context.Context, sink ports.Sink, run *runState) error {
	docs := run.batch
	run.batch = nil
	if len(docs) == 0 {
		return nil
	}

	missing := make([]*domain.Document, 0, len(docs))
	for _, doc := range docs {
		if p.cache != nil {
			if vector, ok := p.cache.Get(doc.Fingerprint); ok {
				doc.Embedding = vector
				continue
			}
		}
		missing = append(missing, doc)
	}

	if err := p.embedBatch(ctx, missing, run); err != nil {
		return err
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if doc.Embedding == nil {
			// Provider failed this document; it survives unclustered.
			if err := p.keep(ctx, doc, sink, run); err != nil {
				return err
			}
			continue
		}
		assignment, err := p.index.Assign(ctx, doc.Position, doc.Embedding)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("cluster_assignment_failed", "source_id", doc.SourceID, "error", err)
			run.report.Errors++
			if err := p.keep(ctx, doc, sink, run); err != nil {
				return err
			}
			continue
		}
		run.report.EmbeddingComparisons += int64(assignment.Comparisons)
		doc.ClusterID = assignment.ClusterID
		run.addToCluster(doc, assignment)
	}
	return nil
}

func (p *DedupPipeline) embedBatch(ctx context.Context, docs []*domain.Document, run *runState) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.NormalizedText
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return p.embedIndividually(ctx, docs, run)
	}
	if len(vectors) != len(docs) {
		return p.embedIndividually(ctx, docs, run)
	}

	for i, doc := range docs {
		if vectors[i] == nil {
			slog.Warn("embedding_failed", "source_id", doc.SourceID)
			run.report.Errors++
			continue
		}
		doc.Embedding = vectors[i]
		if p.cache != nil {
			p.cache.Add(doc.Fingerprint, vectors[i])
		}
	}
	return nil
}

// embedIndividually isolates per-document provider failures after a batch
// call failed: each failing document is counted and survives unclustered.
func (p *DedupPipeline) embedIndividually(ctx context.Context, docs []*domain.Document, run *runState) error {
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		vectors, err := p.embedder.Embed(ctx, []string{doc.NormalizedText})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("embedding_failed", "source_id", doc.SourceID, "error", err)
			run.report.Errors++
			continue
		}
		if len(vectors) != 1 || vectors[0] == nil {
			slog.Warn("embedding_failed", "source_id", doc.SourceID)
			run.report.Errors++
			continue
		}
		doc.Embedding = vectors[0]
		if p.cache != nil {
			p.cache.Add(doc.Fingerprint, vectors[0])
		}
	}
	return nil
}

func (run *runState) addToCluster(doc *domain.Document, assignment domain.Assignment) {
	cs := run.clusters[assignment.ClusterID]
	if cs == nil {
		cs = &clusterState{}
		run.clusters[assignment.ClusterID] = cs
	}
	cs.members = append(cs.members, clusterMember{
		sourceID:   doc.SourceID,
		position:   doc.Position,
		similarity: assignment.Similarity,
	})
	length := utf8.RuneCountInString(doc.NormalizedText)
	// Strict > keeps the earliest document on equal lengths: members arrive
	// in stream position order.
	if cs.best == nil || length > cs.bestLen {
		cs.best = doc
		cs.bestLen = length
	}
}

// materialize resolves clusters to representatives and writes all deferred
// survivors in stream position order.
func (p *DedupPipeline) materialize(ctx context.Context, sink ports.Sink, run *runState) error {
	if run.streaming {
		return nil
	}

	survivors := append([]*domain.Document(nil), run.survivors...)

	clusterIDs := make([]int, 0, len(run.clusters))
	for id := range run.clusters {
		clusterIDs = append(clusterIDs, id)
	}
	sort.Ints(clusterIDs)

	for _, id := range clusterIDs {
		cs := run.clusters[id]
		survivors = append(survivors, cs.best)
		if len(cs.members) <= 1 {
			continue
		}
		run.report.SemanticDuplicatesRemoved += int64(len(cs.members) - 1)

		summary := domain.ClusterSummary{
			RepresentativeID: cs.best.SourceID,
			MemberIDs:        make([]string, 0, len(cs.members)),
			Similarities:     make([]float64, 0, len(cs.members)),
		}
		for _, m := range cs.members {
			summary.MemberIDs = append(summary.MemberIDs, m.sourceID)
			summary.Similarities = append(summary.Similarities, m.similarity)
		}
		run.report.Clusters = append(run.report.Clusters, summary)
	}

	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].Position < survivors[j].Position
	})

	for _, doc := range survivors {
		if err := sink.Write(ctx, doc); err != nil {
			return &domain.StreamError{Offset: doc.Position - 1, Err: err}
		}
		run.report.Survivors++
	}
	return nil
}
