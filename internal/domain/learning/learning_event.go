package learning

import "time"

type EventType string

const (
	EventInteraction EventType = "interaction"
	EventAssessment  EventType = "assessment"
	EventCompletion  EventType = "completion"
	EventFeedback    EventType = "feedback"
)

// LearningEvent is an interaction or assessment record from the event store.
// Score is meaningful for assessment events and for feedback that carried an
// assessment score.
type LearningEvent struct {
	ID              string         `json:"id"`
	LearnerID       string         `json:"learner_id"`
	Type            EventType      `json:"type"`
	ContentID       string         `json:"content_id,omitempty"`
	ConceptID       string         `json:"concept_id,omitempty"`
	Score           float64        `json:"score"`
	Engagement      float64        `json:"engagement"`
	DurationSeconds float64        `json:"duration_seconds"`
	ErrorPattern    string         `json:"error_pattern,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	OccurredAt      time.Time      `json:"occurred_at"`
}

func (e LearningEvent) IsAssessment() bool { return e.Type == EventAssessment }

// Scored reports whether Score holds an assessment result. Feedback events
// count when they carry a nonzero score.
func (e LearningEvent) Scored() bool {
	return e.IsAssessment() || (e.Type == EventFeedback && e.Score > 0)
}
