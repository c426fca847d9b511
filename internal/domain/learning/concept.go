package learning

import (
	"time"

	"gorm.io/datatypes"
)

// ConceptRecord is the persisted form of a ConceptNode in the relational
// knowledge base.
type ConceptRecord struct {
	ID               string                      `gorm:"column:id;primaryKey" json:"id"`
	Name             string                      `gorm:"column:name;not null" json:"name"`
	Subject          string                      `gorm:"column:subject;index" json:"subject"`
	Difficulty       int                         `gorm:"column:difficulty;not null;default:1" json:"difficulty"`
	Prerequisites    datatypes.JSONSlice[string] `gorm:"column:prerequisites" json:"prerequisites"`
	Related          datatypes.JSONSlice[string] `gorm:"column:related" json:"related"`
	EstimatedMinutes float64                     `gorm:"column:estimated_minutes;not null;default:0" json:"estimated_minutes"`
	Importance       float64                     `gorm:"column:importance;not null;default:0" json:"importance"`
	CreatedAt        time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time                   `gorm:"not null" json:"updated_at"`
}

func (ConceptRecord) TableName() string { return "concept_node" }

func (r ConceptRecord) Node() ConceptNode {
	return ConceptNode{
		ID:               r.ID,
		Name:             r.Name,
		Subject:          r.Subject,
		Difficulty:       r.Difficulty,
		Prerequisites:    append([]string(nil), r.Prerequisites...),
		Related:          append([]string(nil), r.Related...),
		EstimatedMinutes: r.EstimatedMinutes,
		Importance:       r.Importance,
	}
}

func ConceptRecordFrom(n ConceptNode) *ConceptRecord {
	n = n.Normalized()
	return &ConceptRecord{
		ID:               n.ID,
		Name:             n.Name,
		Subject:          n.Subject,
		Difficulty:       n.Difficulty,
		Prerequisites:    datatypes.JSONSlice[string](nonNil(n.Prerequisites)),
		Related:          datatypes.JSONSlice[string](nonNil(n.Related)),
		EstimatedMinutes: n.EstimatedMinutes,
		Importance:       n.Importance,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
