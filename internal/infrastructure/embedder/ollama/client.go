// Package ollama is the external embedding provider client. The engine never
// computes embeddings itself; it consumes them from an Ollama-compatible
// /api/embed endpoint.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/corpustools/dedup/internal/core/domain"
	"github.com/corpustools/dedup/internal/infrastructure/resilience"
)

type Client struct {
	baseURL     string
	model       string
	callTimeout time.Duration
	httpClient  *http.Client
	limiter     *rate.Limiter
	executor    *resilience.Executor
}

type Options struct {
	// CallTimeout bounds every embed call; a timed-out document is counted
	// as an error upstream and never blocks the stream indefinitely.
	CallTimeout time.Duration
	// RatePerSecond throttles provider calls; zero disables throttling.
	RatePerSecond float64
	// ResilienceExecutor wraps calls with retry and circuit breaking.
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, model string, options Options) *Client {
	callTimeout := options.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 60 * time.Second
	}
	var limiter *rate.Limiter
	if options.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(options.RatePerSecond), 1)
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		callTimeout: callTimeout,
		httpClient:  &http.Client{Timeout: callTimeout + 10*time.Second},
		limiter:     limiter,
		executor:    options.ResilienceExecutor,
	}
}

// Embed requests vectors for a batch of texts. The provider may fail the
// whole batch; callers fall back to per-document calls to isolate bad items.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	request := map[string]any{
		"model": c.model,
		"input": texts,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}

	call := func(callCtx context.Context) error {
		timeoutCtx, cancel := context.WithTimeout(callCtx, c.callTimeout)
		defer cancel()
		return c.postJSON(timeoutCtx, "/api/embed", request, &response, "embed")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.embed", call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapProviderError("embed batch", err)
	}

	if len(response.Embeddings) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrEmbeddingProvider,
			"embed batch",
			fmt.Errorf("vectors/texts mismatch: %d/%d", len(response.Embeddings), len(texts)),
		)
	}
	return response.Embeddings, nil
}
