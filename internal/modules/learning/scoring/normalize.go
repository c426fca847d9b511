// Package scoring holds stateless numeric helpers shared by the recommenders:
// score normalization, multi-source combination, adjustments and ranking metrics.
package scoring

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
)

type Method string

const (
	MinMax     Method = "min_max"
	ZScore     Method = "z_score"
	Percentile Method = "percentile"
	Sigmoid    Method = "sigmoid"
	Log        Method = "log"
	Rank       Method = "rank"
)

const (
	zScoreWindow     = 3.0
	sigmoidSteepness = 10.0
)

// Stats records the input distribution so min_max output can be mapped back.
type Stats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	Count  int
}

type Normalizer struct {
	TargetMin float64
	TargetMax float64
}

func NewNormalizer() Normalizer {
	return Normalizer{TargetMin: 0, TargetMax: 1}
}

func (n Normalizer) span() (float64, float64) {
	if n.TargetMax <= n.TargetMin {
		return 0, 1
	}
	return n.TargetMin, n.TargetMax
}

func Describe(scores []float64) Stats {
	st := Stats{Count: len(scores)}
	if len(scores) == 0 {
		return st
	}
	st.Min, st.Max = scores[0], scores[0]
	for _, s := range scores[1:] {
		st.Min = math.Min(st.Min, s)
		st.Max = math.Max(st.Max, s)
	}
	st.Mean = stat.Mean(scores, nil)
	if len(scores) > 1 {
		st.StdDev = math.Sqrt(stat.PopVariance(scores, nil))
	}
	return st
}

// Normalize maps scores into [TargetMin, TargetMax] with the chosen method.
// Unknown methods fall back to min_max.
func (n Normalizer) Normalize(scores []float64, method Method) ([]float64, Stats) {
	st := Describe(scores)
	if len(scores) == 0 {
		return []float64{}, st
	}
	var unit []float64
	switch method {
	case ZScore:
		unit = zScoreUnit(scores, st)
	case Percentile:
		unit = percentileUnit(scores)
	case Sigmoid:
		unit = sigmoidUnit(scores)
	case Log:
		unit = logUnit(scores, st)
	case Rank:
		unit = rankUnit(scores)
	default:
		unit = minMaxUnit(scores, st)
	}
	lo, hi := n.span()
	out := make([]float64, len(unit))
	for i, u := range unit {
		out[i] = lo + learning.Clamp01(u)*(hi-lo)
	}
	return out, st
}

// Denormalize reverses a min_max normalization produced with the same target range.
func (n Normalizer) Denormalize(values []float64, st Stats) []float64 {
	lo, hi := n.span()
	out := make([]float64, len(values))
	for i, v := range values {
		u := (v - lo) / (hi - lo)
		if st.Max == st.Min {
			out[i] = st.Min
			continue
		}
		out[i] = st.Min + u*(st.Max-st.Min)
	}
	return out
}

func minMaxUnit(scores []float64, st Stats) []float64 {
	out := make([]float64, len(scores))
	rng := st.Max - st.Min
	for i, s := range scores {
		if rng == 0 {
			out[i] = 0.5
			continue
		}
		out[i] = (s - st.Min) / rng
	}
	return out
}

func zScoreUnit(scores []float64, st Stats) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		if st.StdDev == 0 {
			out[i] = 0.5
			continue
		}
		z := (s - st.Mean) / st.StdDev
		z = learning.ClampRange(z, -zScoreWindow, zScoreWindow)
		out[i] = (z + zScoreWindow) / (2 * zScoreWindow)
	}
	return out
}

// percentileUnit is the share of the other values strictly below each value,
// with ties counted as half.
func percentileUnit(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 1 {
		out[0] = 0.5
		return out
	}
	for i, s := range scores {
		below, equal := 0, 0
		for j, o := range scores {
			if i == j {
				continue
			}
			if o < s {
				below++
			} else if o == s {
				equal++
			}
		}
		out[i] = (float64(below) + 0.5*float64(equal)) / float64(len(scores)-1)
	}
	return out
}

func sigmoidUnit(scores []float64) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = 1 / (1 + math.Exp(-sigmoidSteepness*(s-0.5)))
	}
	return out
}

func logUnit(scores []float64, st Stats) []float64 {
	shift := 0.0
	if st.Min <= 0 {
		shift = 1 - st.Min
	}
	logs := make([]float64, len(scores))
	for i, s := range scores {
		logs[i] = math.Log(s + shift)
	}
	return minMaxUnit(logs, Describe(logs))
}

// rankUnit gives the highest score 1 and the lowest 0; ties share the mean rank.
func rankUnit(scores []float64) []float64 {
	n := len(scores)
	out := make([]float64, n)
	if n == 1 {
		out[0] = 0.5
		return out
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[idx[j+1]] == scores[idx[i]] {
			j++
		}
		mean := float64(i+j) / 2
		for k := i; k <= j; k++ {
			out[idx[k]] = mean / float64(n-1)
		}
		i = j + 1
	}
	return out
}
