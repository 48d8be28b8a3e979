package linking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineIdenticalVectors(t *testing.T) {
	a := []float32{1, 2, 3}
	assert.InDelta(t, 1.0, cosine(a, a), 1e-9)
}

func TestCosineOrthogonalVectors(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, cosine(a, b), 1e-9)
}

func TestCosineMismatchedDimensionsReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, cosine([]float32{1, 2}, []float32{1, 2, 3}))
}

func TestCosineEmptyReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, cosine(nil, []float32{1}))
}

func TestBuildCandidatePairsDeduplicatesAndThresholds(t *testing.T) {
	input := []claimWithEmbedding{
		{ID: "a", Text: "claim a", Embedding: []float32{1, 0}},
	}
	library := []claimWithEmbedding{
		{ID: "b", Text: "claim b", Embedding: []float32{1, 0}},
		{ID: "c", Text: "claim c", Embedding: []float32{0, 1}},
	}

	pairs := buildCandidatePairs(input, library, 0.9)
	assert.Len(t, pairs, 1)
	assert.Equal(t, "a", pairs[0].AID)
	assert.Equal(t, "b", pairs[0].BID)
}

func TestBuildCandidatePairsSkipsSameID(t *testing.T) {
	input := []claimWithEmbedding{{ID: "a", Embedding: []float32{1, 0}}}
	library := []claimWithEmbedding{{ID: "a", Embedding: []float32{1, 0}}}
	pairs := buildCandidatePairs(input, library, 0.5)
	assert.Empty(t, pairs)
}

func TestSortedPairKeyOrdersLexicographically(t *testing.T) {
	assert.Equal(t, [2]string{"a", "b"}, sortedPairKey("a", "b"))
	assert.Equal(t, [2]string{"a", "b"}, sortedPairKey("b", "a"))
}
