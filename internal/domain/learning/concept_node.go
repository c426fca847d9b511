package learning

import "strings"

const (
	DifficultyBeginner     = 1
	DifficultyElementary   = 2
	DifficultyIntermediate = 3
	DifficultyAdvanced     = 4
	DifficultyExpert       = 5
)

// ConceptNode is an atomic unit of curriculum knowledge. Nodes are immutable once
// loaded; a knowledge-base refresh replaces the whole set.
type ConceptNode struct {
	ID               string   `json:"id" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	Subject          string   `json:"subject" yaml:"subject"`
	Difficulty       int      `json:"difficulty" yaml:"difficulty"`
	Prerequisites    []string `json:"prerequisites,omitempty" yaml:"prerequisites"`
	Related          []string `json:"related,omitempty" yaml:"related"`
	EstimatedMinutes float64  `json:"estimated_minutes" yaml:"estimated_minutes"`
	Importance       float64  `json:"importance" yaml:"importance"`
}

// Normalized drops self references, blank ids and duplicates from the declared
// prerequisite and related lists and clamps importance.
func (c ConceptNode) Normalized() ConceptNode {
	out := c
	out.ID = strings.TrimSpace(c.ID)
	out.Prerequisites = dedupeIDs(c.Prerequisites, out.ID)
	out.Related = dedupeIDs(c.Related, out.ID)
	out.Importance = Clamp01(c.Importance)
	if out.Difficulty < DifficultyBeginner {
		out.Difficulty = DifficultyBeginner
	}
	if out.Difficulty > DifficultyExpert {
		out.Difficulty = DifficultyExpert
	}
	return out
}

func dedupeIDs(ids []string, self string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == self || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func Clamp01(v float64) float64 {
	return ClampRange(v, 0, 1)
}

func ClampRange(v, lo, hi float64) float64 {
	if v != v {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
