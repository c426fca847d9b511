package weakness

import (
	"math"
	"strings"
	"time"
)

type Category string

const (
	Conceptual    Category = "conceptual"
	Procedural    Category = "procedural"
	Application   Category = "application"
	Computational Category = "computational"
	Analytical    Category = "analytical"
	Memory        Category = "memory"
)

// Source names the detector that produced a weakness.
type Source string

const (
	SourceAssessment   Source = "assessment_failure"
	SourceErrorPattern Source = "error_pattern"
	SourceLowMastery   Source = "low_mastery"
	SourceForgetting   Source = "forgetting"
)

type Weakness struct {
	ID        string   `json:"id"`
	LearnerID string   `json:"learner_id"`
	Source    Source   `json:"source"`
	Category  Category `json:"category"`
	ConceptID string   `json:"concept_id,omitempty"`
	ContentID string   `json:"content_id,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	// Severity is the value at LastSeen; reads report it decayed to the read time.
	Severity            float64   `json:"severity"`
	Frequency           int       `json:"frequency"`
	FirstSeen           time.Time `json:"first_seen"`
	LastSeen            time.Time `json:"last_seen"`
	Evidence            []string  `json:"evidence,omitempty"`
	RemediationPriority int       `json:"remediation_priority"`
}

func (w Weakness) key() string {
	return strings.Join([]string{string(w.Source), w.ConceptID, w.ContentID, w.Pattern}, "|")
}

// RemediationPriority maps severity and frequency onto 0..10.
func RemediationPriority(severity float64, frequency int) int {
	f := math.Min(float64(frequency), 10)
	p := int(math.Round(severity*8 + f*0.2))
	if p < 0 {
		return 0
	}
	if p > 10 {
		return 10
	}
	return p
}

// categorize picks a category from keywords in an error-pattern tag.
func categorize(pattern string) Category {
	p := strings.ToLower(pattern)
	switch {
	case containsAny(p, "calculat", "arithmetic", "compute", "sign", "rounding"):
		return Computational
	case containsAny(p, "step", "procedur", "order", "method"):
		return Procedural
	case containsAny(p, "apply", "applica", "word_problem", "word problem", "transfer"):
		return Application
	case containsAny(p, "logic", "reason", "analy", "proof"):
		return Analytical
	case containsAny(p, "recall", "forgot", "memor", "definition"):
		return Memory
	}
	return Conceptual
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

type PatternType string

const (
	ConceptCluster  PatternType = "concept_cluster"
	CategoryCluster PatternType = "category_cluster"
)

type Pattern struct {
	Type            PatternType `json:"type"`
	Key             string      `json:"key"`
	WeaknessIDs     []string    `json:"weakness_ids"`
	AverageSeverity float64     `json:"average_severity"`
	RootCause       string      `json:"root_cause"`
	Intervention    string      `json:"intervention"`
}

type RemediationItem struct {
	WeaknessID       string   `json:"weakness_id"`
	ConceptID        string   `json:"concept_id,omitempty"`
	Category         Category `json:"category"`
	Severity         float64  `json:"severity"`
	Steps            []string `json:"steps"`
	EstimatedMinutes float64  `json:"estimated_minutes"`
	SuccessCriterion string   `json:"success_criterion"`
}

type RemediationPlan struct {
	LearnerID    string            `json:"learner_id"`
	Items        []RemediationItem `json:"items"`
	TotalMinutes float64           `json:"total_minutes"`
	CreatedAt    time.Time         `json:"created_at"`
}

var interventions = map[Category][]string{
	Conceptual: {
		"Review the core explanation with a worked example",
		"Explain the idea back in your own words",
		"Answer three short concept-check questions",
	},
	Procedural: {
		"Follow a step-by-step walkthrough",
		"Practice the procedure on scaffolded problems",
		"Solve two problems without hints",
	},
	Application: {
		"Study a solved real-world problem",
		"Identify which concept each word problem needs",
		"Solve mixed application problems",
	},
	Computational: {
		"Redo the failed calculations slowly, checking each step",
		"Complete a timed accuracy drill",
		"Verify answers with estimation",
	},
	Analytical: {
		"Break a complex problem into sub-questions",
		"Compare two solution strategies",
		"Justify each step of a solution",
	},
	Memory: {
		"Review flashcards for the key facts",
		"Schedule spaced retrieval practice over three days",
		"Take a short recall quiz",
	},
}

var rootCauses = map[PatternType]string{
	ConceptCluster:  "Several weaknesses share one concept, which suggests a gap in that concept's foundations.",
	CategoryCluster: "Weaknesses of the same kind recur across concepts, which suggests a general skill gap.",
}

var clusterInterventions = map[PatternType]string{
	ConceptCluster:  "Revisit the concept from its prerequisites before further practice.",
	CategoryCluster: "Train the underlying skill with targeted drills across topics.",
}
