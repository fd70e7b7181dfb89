package index

import (
	"errors"
	"math"
	"sort"
)

var (
	ErrEmptyIndex        = errors.New("index contains no passages")
	ErrDimensionMismatch = errors.New("vector dimension does not match index")
)

// Passage is a chunk of a document's text together with its provenance:
// the filename it came from and its zero-based position in that file's
// chunk sequence.
type Passage struct {
	Text       string `json:"text"`
	SourceFile string `json:"source_file"`
	ChunkIndex int    `json:"chunk_index"`
}

// Hit is a passage scored against a query vector. The vector is retained so
// callers can compute pairwise similarity between hits.
type Hit struct {
	Passage Passage
	Score   float32
	Vector  []float32
}

// Index is an in-memory similarity index over (embedding, passage) pairs.
// It is a pure cache: always rebuilt in full from the owner's stored
// documents, never treated as a source of truth.
type Index struct {
	dimension int
	vectors   [][]float32
	passages  []Passage
}

func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("index dimension must be positive")
	}
	return &Index{dimension: dimension}, nil
}

func (ix *Index) Dimension() int {
	return ix.dimension
}

func (ix *Index) Len() int {
	return len(ix.passages)
}

func (ix *Index) Add(vector []float32, passage Passage) error {
	if len(vector) != ix.dimension {
		return ErrDimensionMismatch
	}
	ix.vectors = append(ix.vectors, vector)
	ix.passages = append(ix.passages, passage)
	return nil
}

// Search returns the k nearest passages by cosine similarity, best first.
// Fewer than k indexed passages is not an error; all are returned.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dimension {
		return nil, ErrDimensionMismatch
	}
	if len(ix.passages) == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		k = 5
	}

	hits := make([]Hit, len(ix.passages))
	for i := range ix.passages {
		hits[i] = Hit{
			Passage: ix.passages[i],
			Score:   Cosine(query, ix.vectors[i]),
			Vector:  ix.vectors[i],
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Passages returns every indexed passage in insertion order.
func (ix *Index) Passages() []Passage {
	out := make([]Passage, len(ix.passages))
	copy(out, ix.passages)
	return out
}

// Cosine computes cosine similarity between two vectors. Zero vectors score
// zero rather than NaN.
func Cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
