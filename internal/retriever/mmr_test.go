package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/hybridmem/internal/store"
)

func TestCosineSim_IdenticalVectorsAreOne(t *testing.T) {
	v := []float32{1, 2, 3}
	assert.InDelta(t, 1.0, cosineSim(v, v), 1e-9)
}

func TestCosineSim_OrthogonalVectorsAreZero(t *testing.T) {
	assert.InDelta(t, 0.0, cosineSim([]float32{1, 0}, []float32{0, 1}), 1e-9)
}

func TestCosineSim_MismatchedLengthIsZero(t *testing.T) {
	assert.Equal(t, float64(0), cosineSim([]float32{1, 2}, []float32{1}))
}

func TestDiversify_DefersNearDuplicates(t *testing.T) {
	a := Result{Record: recWithVec("a", []float32{1, 0, 0}), Score: 0.9}
	b := Result{Record: recWithVec("b", []float32{0.99, 0.1, 0}), Score: 0.8} // near-duplicate of a
	c := Result{Record: recWithVec("c", []float32{0, 1, 0}), Score: 0.7}      // orthogonal, diverse

	out := diversify([]Result{a, b, c}, 3)
	require.Len(t, out, 3)
	// a and c are selected (diverse); b is deferred behind c.
	ids := []string{out[0].Record.ID, out[1].Record.ID, out[2].Record.ID}
	assert.Equal(t, []string{"a", "c", "b"}, ids)
}

func TestDiversify_TruncatesToLimit(t *testing.T) {
	a := Result{Record: recWithVec("a", []float32{1, 0}), Score: 0.9}
	b := Result{Record: recWithVec("b", []float32{0, 1}), Score: 0.8}
	c := Result{Record: recWithVec("c", []float32{-1, 0}), Score: 0.7}

	out := diversify([]Result{a, b, c}, 2)
	require.Len(t, out, 2)
}

func TestDiversify_AdjacentSelectedPairsBelowThreshold(t *testing.T) {
	a := Result{Record: recWithVec("a", []float32{1, 0, 0}), Score: 0.9}
	b := Result{Record: recWithVec("b", []float32{0, 1, 0}), Score: 0.8}
	c := Result{Record: recWithVec("c", []float32{0, 0, 1}), Score: 0.7}

	out := diversify([]Result{a, b, c}, 3)
	for i := 1; i < len(out); i++ {
		assert.LessOrEqual(t, cosineSim(out[i-1].Record.Vector, out[i].Record.Vector), mmrSimilarityThreshold)
	}
}

func recWithVec(id string, v []float32) store.MemoryRecord {
	return store.MemoryRecord{ID: id, Text: "text for " + id, Vector: v}
}
