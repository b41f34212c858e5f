package domain

// Fingerprint is the fixed-length content hash of a document's normalized
// text. Sum is the membership key; Check is an independently keyed digest used
// to verify that two documents mapping to the same Sum really carry the same
// normalized text, without retaining the text itself.
type Fingerprint struct {
	Sum   [32]byte
	Check [32]byte
}

// Zero reports whether the fingerprint has not been computed yet.
func (f Fingerprint) Zero() bool {
	return f.Sum == [32]byte{}
}

type Document struct {
	// Position is the zero-based offset of the document in the input stream.
	Position int64 `json:"position"`
	// SourceID identifies the document in its source (filename, record id).
	SourceID       string      `json:"source_id"`
	RawText        string      `json:"text"`
	NormalizedText string      `json:"-"`
	Fingerprint    Fingerprint `json:"-"`
	Embedding      []float32   `json:"-"`
	ClusterID      int         `json:"-"`
}

// Admission is the outcome of offering a fingerprint to the registry.
type Admission int

const (
	Accepted Admission = iota
	Duplicate
)

func (a Admission) String() string {
	if a == Duplicate {
		return "duplicate"
	}
	return "accepted"
}

// Assignment is the outcome of offering an embedding to the similarity index.
type Assignment struct {
	ClusterID int
	// Similarity to the matched cluster's comparison anchor. 1.0 when the
	// document founded the cluster.
	Similarity float64
	// Founded is true when no existing representative reached the threshold
	// and the document started a new cluster.
	Founded bool
	// Comparisons is the number of representative vectors examined.
	Comparisons int
}

// Method selects which deduplication phases run. It is fixed at pipeline
// construction.
type Method int

const (
	MethodNeither Method = iota
	MethodExactOnly
	MethodSemanticOnly
	MethodBoth
)

func (m Method) Exact() bool    { return m == MethodExactOnly || m == MethodBoth }
func (m Method) Semantic() bool { return m == MethodSemanticOnly || m == MethodBoth }

func (m Method) String() string {
	switch m {
	case MethodExactOnly:
		return "exact"
	case MethodSemanticOnly:
		return "semantic"
	case MethodBoth:
		return "both"
	default:
		return "none"
	}
}

// ParseMethod maps the CLI/config spelling to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "exact":
		return MethodExactOnly, nil
	case "semantic":
		return MethodSemanticOnly, nil
	case "both":
		return MethodBoth, nil
	case "none", "":
		return MethodNeither, nil
	default:
		return MethodNeither, WrapError(ErrConfiguration, "parse method", errUnknownMethod(s))
	}
}

// MethodFromFlags derives the Method from the two phase toggles.
func MethodFromFlags(exact, semantic bool) Method {
	switch {
	case exact && semantic:
		return MethodBoth
	case exact:
		return MethodExactOnly
	case semantic:
		return MethodSemanticOnly
	default:
		return MethodNeither
	}
}
