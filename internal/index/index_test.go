package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNonPositiveDimension(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)

	_, err = New(-3)
	assert.Error(t, err)
}

func TestAddRejectsWrongDimension(t *testing.T) {
	ix, err := New(3)
	require.NoError(t, err)

	err = ix.Add([]float32{1, 0}, Passage{Text: "short"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, ix.Len())
}

func TestSearchEmptyIndex(t *testing.T) {
	ix, err := New(2)
	require.NoError(t, err)

	_, err = ix.Search([]float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}

func TestSearchRejectsWrongDimension(t *testing.T) {
	ix, err := New(2)
	require.NoError(t, err)
	require.NoError(t, ix.Add([]float32{1, 0}, Passage{Text: "a"}))

	_, err = ix.Search([]float32{1, 0, 0}, 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearchOrdersBySimilarity(t *testing.T) {
	ix, err := New(2)
	require.NoError(t, err)

	require.NoError(t, ix.Add([]float32{0, 1}, Passage{Text: "orthogonal"}))
	require.NoError(t, ix.Add([]float32{1, 0}, Passage{Text: "aligned"}))
	require.NoError(t, ix.Add([]float32{1, 1}, Passage{Text: "diagonal"}))

	hits, err := ix.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "aligned", hits[0].Passage.Text)
	assert.Equal(t, "diagonal", hits[1].Passage.Text)
	assert.Equal(t, "orthogonal", hits[2].Passage.Text)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	assert.GreaterOrEqual(t, hits[1].Score, hits[2].Score)
}

func TestSearchCapsAtIndexSize(t *testing.T) {
	ix, err := New(2)
	require.NoError(t, err)
	require.NoError(t, ix.Add([]float32{1, 0}, Passage{Text: "only"}))

	hits, err := ix.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestPassagesReturnsInsertionOrder(t *testing.T) {
	ix, err := New(2)
	require.NoError(t, err)

	require.NoError(t, ix.Add([]float32{1, 0}, Passage{Text: "first", SourceFile: "a.pdf", ChunkIndex: 0}))
	require.NoError(t, ix.Add([]float32{0, 1}, Passage{Text: "second", SourceFile: "a.pdf", ChunkIndex: 1}))

	passages := ix.Passages()
	require.Len(t, passages, 2)
	assert.Equal(t, "first", passages[0].Text)
	assert.Equal(t, "second", passages[1].Text)
	assert.Equal(t, 1, passages[1].ChunkIndex)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-6)

	// zero vectors must not produce NaN
	assert.Equal(t, float32(0), Cosine([]float32{0, 0}, []float32{1, 1}))
}
