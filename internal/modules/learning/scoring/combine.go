package scoring

import (
	"math"
	"sort"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
)

type CombineMethod string

const (
	WeightedAverage CombineMethod = "weighted_average"
	HarmonicMean    CombineMethod = "harmonic_mean"
	GeometricMean   CombineMethod = "geometric_mean"
)

// Combine merges per-source scores. Sources without an explicit weight count as 1.
// Harmonic and geometric means collapse to 0 when any weighted source is <= 0.
func Combine(scores map[string]float64, weights map[string]float64, method CombineMethod) float64 {
	if len(scores) == 0 {
		return 0
	}
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	weightOf := func(k string) float64 {
		if w, ok := weights[k]; ok {
			return math.Max(0, w)
		}
		return 1
	}

	totalW := 0.0
	switch method {
	case HarmonicMean:
		denom := 0.0
		for _, k := range keys {
			w := weightOf(k)
			if w == 0 {
				continue
			}
			if scores[k] <= 0 {
				return 0
			}
			totalW += w
			denom += w / scores[k]
		}
		if denom == 0 {
			return 0
		}
		return totalW / denom
	case GeometricMean:
		logSum := 0.0
		for _, k := range keys {
			w := weightOf(k)
			if w == 0 {
				continue
			}
			if scores[k] <= 0 {
				return 0
			}
			totalW += w
			logSum += w * math.Log(scores[k])
		}
		if totalW == 0 {
			return 0
		}
		return math.Exp(logSum / totalW)
	default:
		sum := 0.0
		for _, k := range keys {
			w := weightOf(k)
			totalW += w
			sum += w * scores[k]
		}
		if totalW == 0 {
			return 0
		}
		return sum / totalW
	}
}

// AdjustForDifficulty penalizes a score by 15% per tier of distance between the
// item difficulty and the learner level.
func AdjustForDifficulty(score, itemDifficulty, learnerLevel float64) float64 {
	gap := math.Abs(itemDifficulty - learnerLevel)
	return learning.Clamp01(score * math.Max(0, 1-0.15*gap))
}

// AdjustForConfidence shrinks a score toward 0.5 as confidence drops.
func AdjustForConfidence(score, confidence float64) float64 {
	c := learning.Clamp01(confidence)
	return learning.Clamp01(c*score + (1-c)*0.5)
}

type Categorized struct {
	ID       string
	Category string
	Score    float64
}

// DiversityBonus lifts items whose category is under-represented relative to the
// most common category. The bonus shrinks linearly with the category's share.
func DiversityBonus(items []Categorized, bonus float64) []Categorized {
	out := make([]Categorized, len(items))
	copy(out, items)
	if len(items) == 0 || bonus <= 0 {
		return out
	}
	counts := map[string]int{}
	maxCount := 0
	for _, it := range items {
		counts[it.Category]++
		if counts[it.Category] > maxCount {
			maxCount = counts[it.Category]
		}
	}
	avg := float64(len(items)) / float64(len(counts))
	for i := range out {
		c := float64(counts[out[i].Category])
		if c >= avg {
			continue
		}
		out[i].Score = learning.Clamp01(out[i].Score + bonus*(1-c/float64(maxCount)))
	}
	return out
}
