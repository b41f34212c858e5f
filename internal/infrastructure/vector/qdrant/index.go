// Package qdrant backs the similarity index with an external vector store,
// for corpora whose representative set outgrows process memory. Only cluster
// representatives are upserted; members are never stored.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/corpustools/dedup/internal/core/domain"
)

// Index implements cluster-representative assignment over a Qdrant
// collection. Callers must serialize Assign calls.
type Index struct {
	baseURL    string
	collection string
	threshold  float64
	httpClient *http.Client

	ensured     bool
	ensuredSize int
	clusters    int
}

func NewIndex(baseURL, collection string, threshold float64) *Index {
	return &Index{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		threshold:  threshold,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (x *Index) Len() int { return x.clusters }

// Assign searches the representative collection for the nearest anchor. A
// hit at or above the threshold joins that cluster; otherwise the vector is
// upserted as the anchor of a new cluster.
func (x *Index) Assign(ctx context.Context, position int64, vector []float32) (domain.Assignment, error) {
	unit, err := normalizeL2(vector)
	if err != nil {
		return domain.Assignment{}, err
	}

	if err := x.ensureCollection(ctx, len(unit)); err != nil {
		return domain.Assignment{}, err
	}

	comparisons := x.clusters
	if x.clusters > 0 {
		clusterID, score, found, err := x.searchNearest(ctx, unit)
		if err != nil {
			return domain.Assignment{}, err
		}
		if found && score >= x.threshold {
			return domain.Assignment{
				ClusterID:   clusterID,
				Similarity:  score,
				Comparisons: comparisons,
			}, nil
		}
	}

	clusterID := x.clusters
	if err := x.upsertAnchor(ctx, clusterID, position, unit); err != nil {
		return domain.Assignment{}, err
	}
	x.clusters++
	return domain.Assignment{
		ClusterID:   clusterID,
		Similarity:  1.0,
		Founded:     true,
		Comparisons: comparisons,
	}, nil
}

func (x *Index) searchNearest(ctx context.Context, vector []float32) (int, float64, bool, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        1,
		"with_payload": true,
	}
	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", x.baseURL, x.collection)
	if err := x.do(ctx, http.MethodPost, url, reqBody, &searchResp, "search"); err != nil {
		return 0, 0, false, err
	}
	if len(searchResp.Result) == 0 {
		return 0, 0, false, nil
	}
	best := searchResp.Result[0]
	clusterID, ok := intPayload(best.Payload, "cluster_id")
	if !ok {
		return 0, 0, false, domain.WrapError(
			domain.ErrInvariant, "qdrant search",
			fmt.Errorf("representative point missing cluster_id payload"),
		)
	}
	return clusterID, best.Score, true, nil
}

func (x *Index) upsertAnchor(ctx context.Context, clusterID int, position int64, vector []float32) error {
	reqBody := map[string]any{
		"points": []map[string]any{{
			"id":     uuid.NewString(),
			"vector": vector,
			"payload": map[string]any{
				"cluster_id": clusterID,
				"position":   position,
			},
		}},
	}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", x.baseURL, x.collection)
	return x.do(ctx, http.MethodPut, url, reqBody, nil, "upsert")
}

func (x *Index) ensureCollection(ctx context.Context, vectorSize int) error {
	if x.ensured && x.ensuredSize == vectorSize {
		return nil
	}
	if x.ensured && x.ensuredSize != vectorSize {
		return domain.WrapError(
			domain.ErrEmbeddingProvider, "qdrant ensure collection",
			fmt.Errorf("vector size changed mid-run: %d != %d", vectorSize, x.ensuredSize),
		)
	}

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", x.baseURL, x.collection)
	err := x.do(ctx, http.MethodPut, url, reqBody, nil, "ensure collection")
	if err != nil && !isConflict(err) {
		return err
	}
	x.ensured = true
	x.ensuredSize = vectorSize
	return nil
}

type statusError struct {
	operation string
	status    int
	body      string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("qdrant %s status: %d", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %d: %s", e.operation, e.status, e.body)
}

func isConflict(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusConflict
}

func (x *Index) do(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			operation: operation,
			status:    resp.StatusCode,
			body:      strings.TrimSpace(string(snippet)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func normalizeL2(vector []float32) ([]float32, error) {
	if len(vector) == 0 {
		return nil, domain.WrapError(
			domain.ErrEmbeddingProvider, "assign vector",
			fmt.Errorf("empty embedding vector"),
		)
	}
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return nil, domain.WrapError(
			domain.ErrEmbeddingProvider, "assign vector",
			fmt.Errorf("zero-magnitude embedding vector"),
		)
	}
	inv := 1 / math.Sqrt(sum)
	unit := make([]float32, len(vector))
	for i, v := range vector {
		unit[i] = float32(float64(v) * inv)
	}
	return unit, nil
}

func intPayload(payload map[string]any, key string) (int, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
