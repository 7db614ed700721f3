package retriever

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/hybridmem/internal/store"
)

func resultAt(id string, score float64, ageDaysAgo float64, importance float64, textLen int, now time.Time) Result {
	ts := now.Add(-time.Duration(ageDaysAgo * float64(24*time.Hour))).UnixMilli()
	return Result{
		Record: store.MemoryRecord{
			ID:         id,
			Text:       repeatChar('x', textLen),
			Importance: importance,
			Timestamp:  ts,
		},
		Score: score,
	}
}

func repeatChar(c byte, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return string(b)
}

func TestApplyRecencyBoost_BoostsRecentMore(t *testing.T) {
	now := time.Now()
	fresh := []Result{resultAt("a", 0.5, 0, 0.7, 10, now)}
	old := []Result{resultAt("a", 0.5, 365, 0.7, 10, now)}

	applyRecencyBoost(fresh, 14, 0.1, now)
	applyRecencyBoost(old, 14, 0.1, now)

	assert.Greater(t, fresh[0].Score, old[0].Score)
}

func TestApplyRecencyBoost_ZeroWeightIsNoOp(t *testing.T) {
	now := time.Now()
	results := []Result{resultAt("a", 0.5, 0, 0.7, 10, now)}
	applyRecencyBoost(results, 14, 0, now)
	assert.Equal(t, 0.5, results[0].Score)
}

func TestApplyRecencyBoost_MissingTimestampTreatedAsNow(t *testing.T) {
	now := time.Now()
	results := []Result{{Record: store.MemoryRecord{ID: "a"}, Score: 0.5}}
	applyRecencyBoost(results, 14, 0.1, now)
	// ageDays(0, now) returns 0 per ageDays's <=0 guard, so the boost is
	// the full weight.
	assert.InDelta(t, 0.6, results[0].Score, 1e-9)
}

func TestApplyImportanceWeight_FloorsAtSeventyPercent(t *testing.T) {
	results := []Result{{Record: store.MemoryRecord{Importance: 0}, Score: 0.5}}
	applyImportanceWeight(results)
	assert.InDelta(t, 0.35, results[0].Score, 1e-9)
}

func TestApplyImportanceWeight_FullImportanceUnaffected(t *testing.T) {
	results := []Result{{Record: store.MemoryRecord{Importance: 1}, Score: 0.5}}
	applyImportanceWeight(results)
	assert.InDelta(t, 0.5, results[0].Score, 1e-9)
}

func TestApplyLengthNormalization_ShortTextUnaffected(t *testing.T) {
	results := []Result{{Record: store.MemoryRecord{Text: repeatChar('x', 100)}, Score: 0.5}}
	applyLengthNormalization(results, 400)
	assert.Equal(t, 0.5, results[0].Score)
}

func TestApplyLengthNormalization_LongTextPenalized(t *testing.T) {
	results := []Result{{Record: store.MemoryRecord{Text: repeatChar('x', 1600)}, Score: 0.5}}
	applyLengthNormalization(results, 400)
	// ratio = 4, factor = 1/(1+0.5*log2(4)) = 1/(1+1) = 0.5
	want := 0.5 * (1 / (1 + 0.5*math.Log2(4)))
	assert.InDelta(t, want, results[0].Score, 1e-9)
}

func TestApplyLengthNormalization_FloorsAt30Percent(t *testing.T) {
	results := []Result{{Record: store.MemoryRecord{Text: repeatChar('x', 400_000)}, Score: 0.5}}
	applyLengthNormalization(results, 400)
	assert.InDelta(t, 0.5*lengthNormFloorRatio, results[0].Score, 1e-9)
}

func TestApplyTimeDecay_FreshUnaffected(t *testing.T) {
	now := time.Now()
	results := []Result{resultAt("a", 0.5, 0, 0.7, 10, now)}
	applyTimeDecay(results, 180, now)
	assert.InDelta(t, 0.5, results[0].Score, 1e-9)
}

func TestApplyTimeDecay_FloorsAtHalf(t *testing.T) {
	now := time.Now()
	results := []Result{resultAt("a", 0.5, 10_000, 0.7, 10, now)}
	applyTimeDecay(results, 180, now)
	assert.InDelta(t, 0.25, results[0].Score, 1e-6)
}

func TestPostProcess_ResortsDescendingAfterEachStage(t *testing.T) {
	now := time.Now()
	low := resultAt("low", 0.3, 0, 1.0, 10, now)
	high := resultAt("high", 0.29, 0, 0.01, 10, now)

	out := postProcess([]Result{low, high}, DefaultConfig(), now)
	require.Len(t, out, 2)
	assert.GreaterOrEqual(t, out[0].Score, out[1].Score)
}
