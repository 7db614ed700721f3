package retriever

import (
	"math"
	"sort"
	"time"
)

// recencyFloorRatio floors the recency stage's output at the score it was
// handed; the boost is additive and never negative, so the floor only
// keeps the pattern consistent with the other stages.
const recencyFloorRatio = 1.0

// importanceFloorRatio is the minimum fraction of a candidate's score
// that survives importance weighting, hit by importance == 0.
const importanceFloorRatio = 0.7

// lengthNormFloorRatio is the minimum fraction of a candidate's score
// that survives length normalization.
const lengthNormFloorRatio = 0.3

// timeDecayFloorRatio is the minimum fraction of a candidate's score
// that survives time decay, hit as ageDays approaches infinity.
const timeDecayFloorRatio = 0.5

func resortDescending(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// applyRecencyBoost adds an exponentially decaying bonus for recently
// created records: score += exp(-ageDays/halfLife) * weight. A record
// with no timestamp is treated as created now, receiving the full bonus.
func applyRecencyBoost(results []Result, halfLifeDays, weight float64, now time.Time) {
	if weight == 0 {
		return
	}
	for i := range results {
		age := ageDays(results[i].Record.Timestamp, now)
		boost := math.Exp(-age/halfLifeDays) * weight
		old := results[i].Score
		results[i].Score = clampFloor(old+boost, old, recencyFloorRatio)
	}
	resortDescending(results)
}

// applyImportanceWeight scales score by 0.7 + 0.3*importance, so a
// record with importance 0 still retains 70% of its score and a record
// with importance 1 is unaffected.
func applyImportanceWeight(results []Result) {
	for i := range results {
		old := results[i].Score
		factor := 0.7 + 0.3*results[i].Record.Importance
		results[i].Score = clampFloor(old*factor, old, importanceFloorRatio)
	}
	resortDescending(results)
}

// applyLengthNormalization penalizes long records relative to anchor
// characters: score *= 1 / (1 + 0.5*log2(max(charLen/anchor, 1))). Text
// at or below the anchor length is unaffected.
func applyLengthNormalization(results []Result, anchor int) {
	if anchor <= 0 {
		return
	}
	for i := range results {
		ratio := float64(len(results[i].Record.Text)) / float64(anchor)
		if ratio < 1 {
			ratio = 1
		}
		factor := 1 / (1 + 0.5*math.Log2(ratio))
		old := results[i].Score
		results[i].Score = clampFloor(old*factor, old, lengthNormFloorRatio)
	}
	resortDescending(results)
}

// applyTimeDecay scales score by 0.5 + 0.5*exp(-ageDays/halfLife), so a
// brand-new record is unaffected and an arbitrarily old one retains half
// its score.
func applyTimeDecay(results []Result, halfLifeDays float64, now time.Time) {
	if halfLifeDays <= 0 {
		return
	}
	for i := range results {
		age := ageDays(results[i].Record.Timestamp, now)
		factor := 0.5 + 0.5*math.Exp(-age/halfLifeDays)
		old := results[i].Score
		results[i].Score = clampFloor(old*factor, old, timeDecayFloorRatio)
	}
	resortDescending(results)
}

// postProcess runs the four scoring stages in order: recency boost,
// importance weight, length normalization, time decay. Each stage
// re-sorts its output descending before the next stage runs.
func postProcess(results []Result, cfg Config, now time.Time) []Result {
	applyRecencyBoost(results, cfg.RecencyHalfLifeDays, cfg.RecencyWeight, now)
	applyImportanceWeight(results)
	applyLengthNormalization(results, cfg.LengthNormAnchor)
	applyTimeDecay(results, cfg.TimeDecayHalfLifeDays, now)
	return results
}
