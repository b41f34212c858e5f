// Package cache bounds repeated provider calls for recurring content. Keys
// are content fingerprints, so two byte-identical normalized texts share an
// entry regardless of source.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/corpustools/dedup/internal/core/domain"
)

type EmbeddingCache struct {
	entries *lru.Cache[domain.Fingerprint, []float32]
}

// New returns a bounded LRU cache. Size must be positive; use Disabled for a
// pass-through that never retains vectors.
func New(size int) (*EmbeddingCache, error) {
	entries, err := lru.New[domain.Fingerprint, []float32](size)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "embedding cache", err)
	}
	return &EmbeddingCache{entries: entries}, nil
}

func Disabled() *EmbeddingCache {
	return &EmbeddingCache{}
}

func (c *EmbeddingCache) Get(fp domain.Fingerprint) ([]float32, bool) {
	if c.entries == nil {
		return nil, false
	}
	return c.entries.Get(fp)
}

func (c *EmbeddingCache) Add(fp domain.Fingerprint, vector []float32) {
	if c.entries == nil || len(vector) == 0 {
		return
	}
	c.entries.Add(fp, vector)
}

func (c *EmbeddingCache) Len() int {
	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}
