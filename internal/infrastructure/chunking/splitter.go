// Package chunking slices long documents into provider-sized pieces. A
// document embedding is the mean of its chunk embeddings, so documents far
// past the provider's context window still get a single stable vector.
package chunking

import "strings"

type Splitter struct {
	ChunkSize int
	Overlap   int
	MaxChunks int
}

func NewSplitter(chunkSize, overlap, maxChunks int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	if maxChunks <= 0 {
		maxChunks = 8
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
		MaxChunks: maxChunks,
	}
}

// Split cuts text into rune-bounded chunks. At most MaxChunks are returned;
// anything beyond that contributes nothing to the pooled vector.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.ChunkSize {
		return []string{text}
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, s.MaxChunks)
	for start := 0; start < len(runes) && len(out) < s.MaxChunks; start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// MeanPool averages chunk vectors into one document vector. All vectors must
// share a dimension; mismatched or empty input yields nil.
func MeanPool(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	if len(vectors) == 1 {
		return vectors[0]
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil
	}
	pooled := make([]float32, dim)
	for _, vector := range vectors {
		if len(vector) != dim {
			return nil
		}
		for i, v := range vector {
			pooled[i] += v
		}
	}
	inv := float32(1) / float32(len(vectors))
	for i := range pooled {
		pooled[i] *= inv
	}
	return pooled
}
