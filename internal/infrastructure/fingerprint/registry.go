// Package fingerprint implements content-addressed exact-duplicate detection.
// The registry holds fixed-size hashes only, never document text, so memory
// stays O(N) digests for arbitrarily large corpora.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/corpustools/dedup/internal/core/domain"
)

// checkPrefix domain-separates the verification digest from the membership
// digest so the two are independent.
const checkPrefix = "dedup/verify\x00"

// Sum computes both digests of a document's normalized text.
func Sum(normalized string) domain.Fingerprint {
	h := sha256.New()
	h.Write([]byte(checkPrefix))
	h.Write([]byte(normalized))

	var fp domain.Fingerprint
	fp.Sum = sha256.Sum256([]byte(normalized))
	h.Sum(fp.Check[:0])
	return fp
}

// Registry is the shared fingerprint set. Admission is an atomic
// check-then-insert so two shards can never both accept copies of the same
// document.
type Registry struct {
	mu   sync.Mutex
	seen map[[32]byte][32]byte
}

func NewRegistry() *Registry {
	return &Registry{seen: make(map[[32]byte][32]byte)}
}

// Sum is the fingerprint function used with this registry.
func (r *Registry) Sum(normalized string) domain.Fingerprint {
	return Sum(normalized)
}

// Admit records fp if unseen and reports whether the caller holds the first
// occurrence. A membership hit whose verification digest disagrees with the
// recorded one means the primary hash collided on different normalized text;
// that is surfaced as ErrInvariant rather than silently treated as a
// duplicate.
func (r *Registry) Admit(fp domain.Fingerprint) (domain.Admission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	check, ok := r.seen[fp.Sum]
	if !ok {
		r.seen[fp.Sum] = fp.Check
		return domain.Accepted, nil
	}
	if check != fp.Check {
		return domain.Duplicate, domain.WrapError(
			domain.ErrInvariant,
			"admit fingerprint",
			fmt.Errorf("hash collision: %x maps to two normalized texts", fp.Sum[:8]),
		)
	}
	return domain.Duplicate, nil
}

// Len returns the number of distinct fingerprints admitted so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}
