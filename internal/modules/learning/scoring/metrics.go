package scoring

import (
	"math"
	"sort"
)

// Ranked orders ids by descending predicted score, ties by id.
func Ranked(predicted map[string]float64) []string {
	ids := make([]string, 0, len(predicted))
	for id := range predicted {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if predicted[ids[i]] != predicted[ids[j]] {
			return predicted[ids[i]] > predicted[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// NDCGAtK uses graded relevance with the (2^rel - 1) gain. It returns 0 when k <= 0
// or when no candidate has nonzero relevance.
func NDCGAtK(predicted map[string]float64, relevance map[string]float64, k int) float64 {
	if k <= 0 || len(predicted) == 0 {
		return 0
	}
	ranked := Ranked(predicted)
	dcg := 0.0
	for i, id := range ranked {
		if i >= k {
			break
		}
		dcg += gain(relevance[id]) / math.Log2(float64(i+2))
	}

	ideal := make([]float64, 0, len(predicted))
	for _, id := range ranked {
		ideal = append(ideal, relevance[id])
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ideal)))
	idcg := 0.0
	for i, rel := range ideal {
		if i >= k {
			break
		}
		idcg += gain(rel) / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func gain(rel float64) float64 {
	if rel <= 0 {
		return 0
	}
	return math.Pow(2, rel) - 1
}

func hitsAtK(predicted map[string]float64, relevant map[string]bool, k int) (int, int) {
	ranked := Ranked(predicted)
	if k > len(ranked) {
		k = len(ranked)
	}
	hits := 0
	for _, id := range ranked[:k] {
		if relevant[id] {
			hits++
		}
	}
	return hits, k
}

// PrecisionAtK divides by the number of ranked items actually inspected.
func PrecisionAtK(predicted map[string]float64, relevant map[string]bool, k int) float64 {
	if k <= 0 {
		return 0
	}
	hits, n := hitsAtK(predicted, relevant, k)
	if n == 0 {
		return 0
	}
	return float64(hits) / float64(n)
}

func RecallAtK(predicted map[string]float64, relevant map[string]bool, k int) float64 {
	total := 0
	for _, v := range relevant {
		if v {
			total++
		}
	}
	if k <= 0 || total == 0 {
		return 0
	}
	hits, _ := hitsAtK(predicted, relevant, k)
	return float64(hits) / float64(total)
}

func F1AtK(predicted map[string]float64, relevant map[string]bool, k int) float64 {
	p := PrecisionAtK(predicted, relevant, k)
	r := RecallAtK(predicted, relevant, k)
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func ReciprocalRank(predicted map[string]float64, relevant map[string]bool) float64 {
	for i, id := range Ranked(predicted) {
		if relevant[id] {
			return 1 / float64(i+1)
		}
	}
	return 0
}
