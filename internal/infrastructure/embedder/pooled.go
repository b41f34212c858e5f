// Package embedder adapts a raw provider client into the per-document
// embedding the pipeline consumes: long texts are chunked, embedded in one
// provider call, and mean-pooled back into a single vector each.
package embedder

import (
	"context"

	"github.com/corpustools/dedup/internal/core/ports"
	"github.com/corpustools/dedup/internal/infrastructure/chunking"
)

type Pooled struct {
	provider ports.Embedder
	splitter *chunking.Splitter
}

func NewPooled(provider ports.Embedder, splitter *chunking.Splitter) *Pooled {
	return &Pooled{provider: provider, splitter: splitter}
}

// Embed returns one vector per text. Texts are chunked, all chunks go to the
// provider in a single call, and each text's chunk vectors are mean-pooled.
// A text producing no chunks (or an inconsistent provider response for it)
// gets a nil entry.
func (p *Pooled) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	flat := make([]string, 0, len(texts))
	spans := make([][2]int, len(texts))
	for i, text := range texts {
		chunks := p.splitter.Split(text)
		spans[i] = [2]int{len(flat), len(flat) + len(chunks)}
		flat = append(flat, chunks...)
	}

	vectors, err := p.provider.Embed(ctx, flat)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i := range texts {
		lo, hi := spans[i][0], spans[i][1]
		if lo == hi || hi > len(vectors) {
			continue
		}
		out[i] = chunking.MeanPool(vectors[lo:hi])
	}
	return out, nil
}
