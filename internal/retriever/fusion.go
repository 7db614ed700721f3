package retriever

import (
	"sort"

	"github.com/Aman-CERP/hybridmem/internal/store"
)

// vectorOnlyFloor is the minimum fused score a vector-only candidate
// receives, preventing a thin vector hit from falling out during
// minScore filtering purely because it lacks lexical confirmation.
const vectorOnlyFloor = 0.1

// bm25LiftFactor scales the additive lexical-confirmation lift applied
// when a candidate appears in both the vector and BM25 result sets.
const bm25LiftFactor = 0.15

// bm25OnlyFloor is the minimum fused score a BM25-only candidate
// receives; lexical-only matches are demoted relative to dense hits but
// never dropped below this floor.
const bm25OnlyFloor = 0.5

// fuse merges vector and BM25 candidate lists by record id into a single
// descending-score list, applying the additive fusion formula: a
// vector-only hit keeps its vector score (floored), a vector+BM25 hit
// gets an additive lift per lexical confirmation, and a BM25-only hit is
// floored relative to dense hits.
func fuse(vec, bm25 []store.ScoredRecord) []Result {
	if len(vec) == 0 && len(bm25) == 0 {
		return []Result{}
	}

	byID := make(map[string]*Result, len(vec)+len(bm25))
	order := make([]string, 0, len(vec)+len(bm25))

	get := func(id string, record store.MemoryRecord) *Result {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &Result{Record: record}
		byID[id] = r
		order = append(order, id)
		return r
	}

	for _, sr := range vec {
		r := get(sr.Record.ID, sr.Record)
		r.VectorScore = sr.Score
		r.InVector = true
	}
	for _, sr := range bm25 {
		r := get(sr.Record.ID, sr.Record)
		r.BM25Score = sr.Score
		r.InBM25 = true
	}

	results := make([]Result, 0, len(order))
	for _, id := range order {
		r := byID[id]
		switch {
		case r.InVector && r.InBM25:
			r.Score = clamp01(r.VectorScore + bm25LiftFactor*r.VectorScore*r.BM25Score)
		case r.InVector:
			r.Score = r.VectorScore
			if r.Score < vectorOnlyFloor {
				r.Score = vectorOnlyFloor
			}
		default: // BM25 only
			r.Score = r.BM25Score
			if r.Score < bm25OnlyFloor {
				r.Score = bm25OnlyFloor
			}
		}
		results = append(results, *r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// filterMinScore drops candidates scoring below minScore.
func filterMinScore(results []Result, minScore float64) []Result {
	kept := results[:0:0]
	for _, r := range results {
		if r.Score >= minScore {
			kept = append(kept, r)
		}
	}
	return kept
}
