package learning

import (
	"sort"
	"time"
)

type LearningGoal struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	TargetConcepts []string   `json:"target_concepts"`
	Deadline       *time.Time `json:"deadline,omitempty"`
}

type LearnerProfile struct {
	ID                    string             `json:"id"`
	MasteryStates         map[string]float64 `json:"mastery_states"`
	CompletedConcepts     map[string]bool    `json:"completed_concepts"`
	CompletedContent      map[string]bool    `json:"completed_content"`
	IgnoredContent        map[string]bool    `json:"ignored_content,omitempty"`
	DecayPredictions      map[string]float64 `json:"decay_predictions,omitempty"`
	AverageScore          float64            `json:"average_score"`
	LearningStreak        int                `json:"learning_streak"`
	TopicInterest         map[string]float64 `json:"topic_interest,omitempty"`
	ContentTypePreference map[string]float64 `json:"content_type_preference,omitempty"`
	Goals                 []LearningGoal     `json:"goals,omitempty"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// NewLearnerProfile is the empty profile used for learners seen for the first time.
func NewLearnerProfile(id string) *LearnerProfile {
	p := &LearnerProfile{ID: id}
	p.ensure()
	return p
}

func (p *LearnerProfile) ensure() {
	if p.MasteryStates == nil {
		p.MasteryStates = map[string]float64{}
	}
	if p.CompletedConcepts == nil {
		p.CompletedConcepts = map[string]bool{}
	}
	if p.CompletedContent == nil {
		p.CompletedContent = map[string]bool{}
	}
	if p.IgnoredContent == nil {
		p.IgnoredContent = map[string]bool{}
	}
	if p.DecayPredictions == nil {
		p.DecayPredictions = map[string]float64{}
	}
	if p.TopicInterest == nil {
		p.TopicInterest = map[string]float64{}
	}
	if p.ContentTypePreference == nil {
		p.ContentTypePreference = map[string]float64{}
	}
}

// Ensure fills nil maps so callers may write into them.
func (p *LearnerProfile) Ensure() *LearnerProfile {
	if p == nil {
		return nil
	}
	p.ensure()
	return p
}

func (p *LearnerProfile) Mastery(conceptID string) (float64, bool) {
	if p == nil || p.MasteryStates == nil {
		return 0, false
	}
	v, ok := p.MasteryStates[conceptID]
	return v, ok
}

func (p *LearnerProfile) SetMastery(conceptID string, v float64) {
	p.ensure()
	p.MasteryStates[conceptID] = Clamp01(v)
}

func (p *LearnerProfile) HasCompletedConcept(id string) bool {
	return p != nil && p.CompletedConcepts[id]
}

func (p *LearnerProfile) HasCompletedContent(id string) bool {
	return p != nil && p.CompletedContent[id]
}

// OverallMastery is the mean of all mastery states, 0 when none are recorded.
func (p *LearnerProfile) OverallMastery() float64 {
	if p == nil || len(p.MasteryStates) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range p.MasteryStates {
		sum += Clamp01(v)
	}
	return sum / float64(len(p.MasteryStates))
}

// GoalConcepts returns the distinct target concepts across all goals, sorted.
func (p *LearnerProfile) GoalConcepts() []string {
	if p == nil {
		return nil
	}
	seen := map[string]bool{}
	for _, g := range p.Goals {
		for _, c := range g.TargetConcepts {
			if c != "" {
				seen[c] = true
			}
		}
	}
	return SortedKeys(seen)
}

func (p *LearnerProfile) CompletedConceptIDs() []string {
	if p == nil {
		return nil
	}
	return SortedKeys(p.CompletedConcepts)
}

func (p *LearnerProfile) Clone() *LearnerProfile {
	if p == nil {
		return nil
	}
	out := *p
	out.MasteryStates = cloneFloatMap(p.MasteryStates)
	out.CompletedConcepts = cloneBoolMap(p.CompletedConcepts)
	out.CompletedContent = cloneBoolMap(p.CompletedContent)
	out.IgnoredContent = cloneBoolMap(p.IgnoredContent)
	out.DecayPredictions = cloneFloatMap(p.DecayPredictions)
	out.TopicInterest = cloneFloatMap(p.TopicInterest)
	out.ContentTypePreference = cloneFloatMap(p.ContentTypePreference)
	if p.Goals != nil {
		out.Goals = make([]LearningGoal, len(p.Goals))
		for i, g := range p.Goals {
			g.TargetConcepts = append([]string(nil), g.TargetConcepts...)
			out.Goals[i] = g
		}
	}
	out.ensure()
	return &out
}

// SortedKeys returns the true-valued keys of m in lexical order.
func SortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func cloneFloatMap(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneBoolMap(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
