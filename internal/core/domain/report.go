package domain

import "time"

// ClusterSummary describes one near-duplicate cluster in the run report.
// MemberIDs are ordered by stream position; Similarities align with MemberIDs
// and hold each member's similarity to the cluster's comparison anchor (the
// representative's own entry is 1.0).
type ClusterSummary struct {
	RepresentativeID string    `json:"representative_id"`
	MemberIDs        []string  `json:"member_ids"`
	Similarities     []float64 `json:"similarities"`
}

// DedupReport summarizes a deduplication run. It is always produced, even
// after cancellation or partial failure.
type DedupReport struct {
	RunID                     string           `json:"run_id,omitempty"`
	DocumentsIn               int64            `json:"documents_in"`
	BelowMinLength            int64            `json:"below_min_length"`
	ExactDuplicatesRemoved    int64            `json:"exact_duplicates_removed"`
	SemanticDuplicatesRemoved int64            `json:"semantic_duplicates_removed"`
	Survivors                 int64            `json:"survivors"`
	Errors                    int64            `json:"errors"`
	Clusters                  []ClusterSummary `json:"clusters"`
	Threshold                 float64          `json:"threshold"`
	ElapsedSeconds            float64          `json:"elapsed_seconds"`
	EmbeddingComparisons      int64            `json:"embedding_comparisons,omitempty"`
	DeduplicationRatio        float64          `json:"deduplication_ratio"`
	StartedAt                 time.Time        `json:"started_at,omitempty"`
}

// Removed is the total number of documents dropped as duplicates.
func (r *DedupReport) Removed() int64 {
	return r.ExactDuplicatesRemoved + r.SemanticDuplicatesRemoved
}

// FinalizeRatio recomputes DeduplicationRatio from the counters.
func (r *DedupReport) FinalizeRatio() {
	if r.DocumentsIn == 0 {
		r.DeduplicationRatio = 0
		return
	}
	r.DeduplicationRatio = float64(r.Removed()) / float64(r.DocumentsIn)
}

// DedupJob is a queued request to run the pipeline, consumed by the worker.
type DedupJob struct {
	JobID               string  `json:"job_id"`
	Input               string  `json:"input"`
	Output              string  `json:"output"`
	Method              string  `json:"method"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
	BatchSize           int     `json:"batch_size,omitempty"`
	MinDocumentLength   int     `json:"min_document_length,omitempty"`
}

// JobResult is published when a queued run finishes.
type JobResult struct {
	JobID  string       `json:"job_id"`
	RunID  string       `json:"run_id,omitempty"`
	Error  string       `json:"error,omitempty"`
	Report *DedupReport `json:"report,omitempty"`
}
