package learning

type ContentType string

const (
	ContentVideo      ContentType = "video"
	ContentQuiz       ContentType = "quiz"
	ContentExercise   ContentType = "exercise"
	ContentLesson     ContentType = "lesson"
	ContentTutorial   ContentType = "tutorial"
	ContentPractice   ContentType = "practice"
	ContentChallenge  ContentType = "challenge"
	ContentProject    ContentType = "project"
	ContentReading    ContentType = "reading"
	ContentAssessment ContentType = "assessment"
)

// ContentItem is read-only reference data supplied by the content repository.
type ContentItem struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Type            ContentType `json:"type"`
	Difficulty      int         `json:"difficulty"`
	Subject         string      `json:"subject,omitempty"`
	Topic           string      `json:"topic,omitempty"`
	ConceptIDs      []string    `json:"concept_ids,omitempty"`
	DurationMinutes float64     `json:"duration_minutes"`
	Popularity      float64     `json:"popularity"`
	Effectiveness   float64     `json:"effectiveness"`
	CompletionRate  float64     `json:"completion_rate"`
}

// Quality blends the three quality signals into [0,1].
func (c ContentItem) Quality() float64 {
	return Clamp01(0.5*Clamp01(c.Effectiveness) + 0.3*Clamp01(c.CompletionRate) + 0.2*Clamp01(c.Popularity))
}

func (c ContentItem) HasConcept(id string) bool {
	for _, cid := range c.ConceptIDs {
		if cid == id {
			return true
		}
	}
	return false
}

// Recommendation is one ranked content item with the strategy that produced it.
type Recommendation struct {
	Content  ContentItem `json:"content"`
	Score    float64     `json:"score"`
	Strategy string      `json:"strategy,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}
