package rules

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
)

type Operator string

const (
	OpEq       Operator = "eq"
	OpNe       Operator = "ne"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
)

func (o Operator) Valid() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains:
		return true
	}
	return false
}

// Condition compares the value at Field (a dot path into the profile view) with Value.
type Condition struct {
	Field    string   `yaml:"field" json:"field"`
	Operator Operator `yaml:"operator" json:"operator"`
	Value    any      `yaml:"value" json:"value"`
}

// Evaluate fails closed: unknown paths and operators, and type mismatches, are false.
func (c Condition) Evaluate(view ProfileView) bool {
	actual, ok := view.Resolve(c.Field)
	if !ok || !c.Operator.Valid() {
		return false
	}
	switch c.Operator {
	case OpEq:
		return equalValues(actual, c.Value)
	case OpNe:
		return !equalValues(actual, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		a, okA := toFloat(actual)
		b, okB := toFloat(c.Value)
		if !okA || !okB {
			return false
		}
		switch c.Operator {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		default:
			return a <= b
		}
	case OpIn:
		for _, candidate := range toList(c.Value) {
			if equalValues(actual, candidate) {
				return true
			}
		}
		return false
	case OpContains:
		switch v := actual.(type) {
		case string:
			return strings.Contains(v, fmt.Sprint(c.Value))
		case []string:
			needle := fmt.Sprint(c.Value)
			for _, s := range v {
				if s == needle {
					return true
				}
			}
		}
		return false
	}
	return false
}

const floatTolerance = 1e-9

func equalValues(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return math.Abs(fa-fb) < floatTolerance
	}
	if okA != okB {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	}
	return 0, false
}

func toList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(l))
		for i, f := range l {
			out[i] = f
		}
		return out
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out
	}
	return nil
}

// ProfileView resolves dot paths against a learner profile.
//
// Supported paths:
//
//	id, average_score, learning_streak, overall_mastery
//	mastery_states.<concept>, decay_predictions.<concept>
//	topic_interest.<topic>, content_type_preference.<type> (also under preferences.)
//	completed_concepts, completed_content, ignored_content, goals.concepts
//	goals.count, stats.completed_concepts, stats.completed_content,
//	stats.weak_concepts, stats.mastered_concepts
type ProfileView struct {
	p *learning.LearnerProfile
}

func NewProfileView(p *learning.LearnerProfile) ProfileView {
	if p == nil {
		p = learning.NewLearnerProfile("")
	}
	return ProfileView{p: p}
}

// knownRoots lists the first path segments Resolve understands.
var knownRoots = map[string]bool{
	"id": true, "average_score": true, "learning_streak": true, "overall_mastery": true,
	"mastery_states": true, "decay_predictions": true, "topic_interest": true,
	"content_type_preference": true, "preferences": true, "completed_concepts": true,
	"completed_content": true, "ignored_content": true, "goals": true, "stats": true,
}

func (v ProfileView) Resolve(path string) (any, bool) {
	parts := strings.Split(strings.TrimSpace(path), ".")
	if len(parts) == 0 || parts[0] == "" {
		return nil, false
	}
	p := v.p
	if parts[0] == "preferences" {
		parts = parts[1:]
		if len(parts) == 0 || (parts[0] != "topic_interest" && parts[0] != "content_type_preference") {
			return nil, false
		}
	}
	root, rest := parts[0], parts[1:]
	switch root {
	case "id":
		return leaf(p.ID, rest)
	case "average_score":
		return leaf(p.AverageScore, rest)
	case "learning_streak":
		return leaf(float64(p.LearningStreak), rest)
	case "overall_mastery":
		return leaf(p.OverallMastery(), rest)
	case "mastery_states":
		return lookupFloat(p.MasteryStates, rest)
	case "decay_predictions":
		return lookupFloat(p.DecayPredictions, rest)
	case "topic_interest":
		return lookupFloat(p.TopicInterest, rest)
	case "content_type_preference":
		return lookupFloat(p.ContentTypePreference, rest)
	case "completed_concepts":
		return leaf(learning.SortedKeys(p.CompletedConcepts), rest)
	case "completed_content":
		return leaf(learning.SortedKeys(p.CompletedContent), rest)
	case "ignored_content":
		return leaf(learning.SortedKeys(p.IgnoredContent), rest)
	case "goals":
		if len(rest) != 1 {
			return nil, false
		}
		switch rest[0] {
		case "count":
			return float64(len(p.Goals)), true
		case "concepts":
			return p.GoalConcepts(), true
		}
		return nil, false
	case "stats":
		if len(rest) != 1 {
			return nil, false
		}
		switch rest[0] {
		case "completed_concepts":
			return float64(len(learning.SortedKeys(p.CompletedConcepts))), true
		case "completed_content":
			return float64(len(learning.SortedKeys(p.CompletedContent))), true
		case "weak_concepts":
			return float64(countMastery(p.MasteryStates, func(m float64) bool { return m < 0.5 })), true
		case "mastered_concepts":
			return float64(countMastery(p.MasteryStates, func(m float64) bool { return m >= 0.8 })), true
		}
		return nil, false
	}
	return nil, false
}

func leaf(v any, rest []string) (any, bool) {
	if len(rest) != 0 {
		return nil, false
	}
	return v, true
}

// lookupFloat resolves "<map>" to its sorted key list and "<map>.<key>" to the value.
func lookupFloat(m map[string]float64, rest []string) (any, bool) {
	switch len(rest) {
	case 0:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys, true
	case 1:
		val, ok := m[rest[0]]
		return val, ok
	}
	return nil, false
}

func countMastery(m map[string]float64, pred func(float64) bool) int {
	n := 0
	for _, v := range m {
		if pred(v) {
			n++
		}
	}
	return n
}
