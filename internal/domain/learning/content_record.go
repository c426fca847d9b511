package learning

import (
	"time"

	"gorm.io/datatypes"
)

type ContentRecord struct {
	ID              string                      `gorm:"column:id;primaryKey" json:"id"`
	Title           string                      `gorm:"column:title;not null" json:"title"`
	Type            string                      `gorm:"column:type;not null;index" json:"type"`
	Difficulty      int                         `gorm:"column:difficulty;not null;default:1;index" json:"difficulty"`
	Subject         string                      `gorm:"column:subject;index" json:"subject"`
	Topic           string                      `gorm:"column:topic;index" json:"topic"`
	ConceptIDs      datatypes.JSONSlice[string] `gorm:"column:concept_ids" json:"concept_ids"`
	DurationMinutes float64                     `gorm:"column:duration_minutes;not null;default:0" json:"duration_minutes"`
	Popularity      float64                     `gorm:"column:popularity;not null;default:0" json:"popularity"`
	Effectiveness   float64                     `gorm:"column:effectiveness;not null;default:0" json:"effectiveness"`
	CompletionRate  float64                     `gorm:"column:completion_rate;not null;default:0" json:"completion_rate"`
	CreatedAt       time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"not null" json:"updated_at"`
}

func (ContentRecord) TableName() string { return "content_item" }

func (r ContentRecord) Item() ContentItem {
	return ContentItem{
		ID:              r.ID,
		Title:           r.Title,
		Type:            ContentType(r.Type),
		Difficulty:      r.Difficulty,
		Subject:         r.Subject,
		Topic:           r.Topic,
		ConceptIDs:      append([]string(nil), r.ConceptIDs...),
		DurationMinutes: r.DurationMinutes,
		Popularity:      r.Popularity,
		Effectiveness:   r.Effectiveness,
		CompletionRate:  r.CompletionRate,
	}
}

func ContentRecordFrom(c ContentItem) *ContentRecord {
	return &ContentRecord{
		ID:              c.ID,
		Title:           c.Title,
		Type:            string(c.Type),
		Difficulty:      c.Difficulty,
		Subject:         c.Subject,
		Topic:           c.Topic,
		ConceptIDs:      datatypes.JSONSlice[string](nonNil(c.ConceptIDs)),
		DurationMinutes: c.DurationMinutes,
		Popularity:      Clamp01(c.Popularity),
		Effectiveness:   Clamp01(c.Effectiveness),
		CompletionRate:  Clamp01(c.CompletionRate),
	}
}
