package learning

import (
	"time"

	"gorm.io/datatypes"
)

type EventRecord struct {
	ID              string            `gorm:"column:id;primaryKey" json:"id"`
	LearnerID       string            `gorm:"column:learner_id;not null;index:idx_learning_event_learner_time,priority:1" json:"learner_id"`
	Type            string            `gorm:"column:type;not null;index" json:"type"`
	ContentID       string            `gorm:"column:content_id;index" json:"content_id,omitempty"`
	ConceptID       string            `gorm:"column:concept_id;index" json:"concept_id,omitempty"`
	Score           float64           `gorm:"column:score;not null;default:0" json:"score"`
	Engagement      float64           `gorm:"column:engagement;not null;default:0" json:"engagement"`
	DurationSeconds float64           `gorm:"column:duration_seconds;not null;default:0" json:"duration_seconds"`
	ErrorPattern    string            `gorm:"column:error_pattern" json:"error_pattern,omitempty"`
	Metadata        datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`
	OccurredAt      time.Time         `gorm:"column:occurred_at;not null;index:idx_learning_event_learner_time,priority:2" json:"occurred_at"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
}

func (EventRecord) TableName() string { return "learning_event" }

func (r EventRecord) Event() LearningEvent {
	var meta map[string]any
	if len(r.Metadata) > 0 {
		meta = map[string]any(r.Metadata)
	}
	return LearningEvent{
		ID:              r.ID,
		LearnerID:       r.LearnerID,
		Type:            EventType(r.Type),
		ContentID:       r.ContentID,
		ConceptID:       r.ConceptID,
		Score:           r.Score,
		Engagement:      r.Engagement,
		DurationSeconds: r.DurationSeconds,
		ErrorPattern:    r.ErrorPattern,
		Metadata:        meta,
		OccurredAt:      r.OccurredAt.UTC(),
	}
}

func EventRecordFrom(e LearningEvent) *EventRecord {
	meta := datatypes.JSONMap{}
	for k, v := range e.Metadata {
		meta[k] = v
	}
	return &EventRecord{
		ID:              e.ID,
		LearnerID:       e.LearnerID,
		Type:            string(e.Type),
		ContentID:       e.ContentID,
		ConceptID:       e.ConceptID,
		Score:           Clamp01(e.Score),
		Engagement:      Clamp01(e.Engagement),
		DurationSeconds: e.DurationSeconds,
		ErrorPattern:    e.ErrorPattern,
		Metadata:        meta,
		OccurredAt:      e.OccurredAt.UTC(),
	}
}
