package retriever

import "math"

// mmrSimilarityThreshold is the cosine similarity above which a
// candidate is considered too redundant with an already-selected result
// and deferred to the tail of the list.
const mmrSimilarityThreshold = 0.85

// diversify walks results in score order, greedily selecting each
// candidate unless it is near-duplicate (cosine similarity above
// mmrSimilarityThreshold) to a candidate already selected. Deferred
// candidates are appended after the selected ones, in their original
// relative order, and the combined list is truncated to limit.
func diversify(results []Result, limit int) []Result {
	selected := make([]Result, 0, limit)
	deferred := make([]Result, 0, len(results))

	for _, r := range results {
		redundant := false
		for _, s := range selected {
			if cosineSim(r.Record.Vector, s.Record.Vector) > mmrSimilarityThreshold {
				redundant = true
				break
			}
		}
		if redundant {
			deferred = append(deferred, r)
			continue
		}
		selected = append(selected, r)
	}

	combined := append(selected, deferred...)
	if len(combined) > limit {
		combined = combined[:limit]
	}
	return combined
}

// cosineSim returns the cosine similarity of two equal-length vectors,
// or 0 if either is empty or their magnitude is zero.
func cosineSim(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
