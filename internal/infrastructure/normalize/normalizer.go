// Package normalize canonicalizes document text before fingerprinting.
// Normalization is pure and deterministic: the same input always produces the
// same output, so it can run on any shard.
package normalize

import (
	"strings"
	"unicode"
)

// DefaultPunctuation is the default set of punctuation and lightweight markup
// runes stripped from normalized text.
const DefaultPunctuation = "#*_>|`~[](){}\"'"

type Normalizer struct {
	lowercase bool
	strip     map[rune]struct{}
}

type Options struct {
	// Lowercase folds text to lower case before hashing.
	Lowercase bool
	// Punctuation is the set of runes to strip; empty keeps everything.
	Punctuation string
}

func New(opts Options) *Normalizer {
	strip := make(map[rune]struct{}, len(opts.Punctuation))
	for _, r := range opts.Punctuation {
		strip[r] = struct{}{}
	}
	return &Normalizer{
		lowercase: opts.Lowercase,
		strip:     strip,
	}
}

// Default returns a normalizer with lowercasing on and the default
// punctuation set.
func Default() *Normalizer {
	return New(Options{Lowercase: true, Punctuation: DefaultPunctuation})
}

// Normalize lowercases (if configured), drops control and stripped runes, and
// collapses whitespace runs to single spaces.
func (n *Normalizer) Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	space := false
	wrote := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if _, ok := n.strip[r]; ok {
			continue
		}
		if space && wrote {
			b.WriteByte(' ')
		}
		space = false
		wrote = true
		if n.lowercase {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Length counts runes, the unit for the minimum-length gate.
func Length(normalized string) int {
	count := 0
	for range normalized {
		count++
	}
	return count
}
