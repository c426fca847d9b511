package learning

import (
	"time"

	"gorm.io/datatypes"
)

type ProfileRecord struct {
	ID                    string                                 `gorm:"column:id;primaryKey" json:"id"`
	MasteryStates         datatypes.JSONType[map[string]float64] `gorm:"column:mastery_states" json:"mastery_states"`
	CompletedConcepts     datatypes.JSONSlice[string]            `gorm:"column:completed_concepts" json:"completed_concepts"`
	CompletedContent      datatypes.JSONSlice[string]            `gorm:"column:completed_content" json:"completed_content"`
	IgnoredContent        datatypes.JSONSlice[string]            `gorm:"column:ignored_content" json:"ignored_content"`
	DecayPredictions      datatypes.JSONType[map[string]float64] `gorm:"column:decay_predictions" json:"decay_predictions"`
	AverageScore          float64                                `gorm:"column:average_score;not null;default:0" json:"average_score"`
	LearningStreak        int                                    `gorm:"column:learning_streak;not null;default:0" json:"learning_streak"`
	TopicInterest         datatypes.JSONType[map[string]float64] `gorm:"column:topic_interest" json:"topic_interest"`
	ContentTypePreference datatypes.JSONType[map[string]float64] `gorm:"column:content_type_preference" json:"content_type_preference"`
	Goals                 datatypes.JSONType[[]LearningGoal]     `gorm:"column:goals" json:"goals"`
	CreatedAt             time.Time                              `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time                              `gorm:"not null;index" json:"updated_at"`
}

func (ProfileRecord) TableName() string { return "learner_profile" }

func (r ProfileRecord) Profile() *LearnerProfile {
	p := &LearnerProfile{
		ID:                    r.ID,
		MasteryStates:         cloneFloatMap(r.MasteryStates.Data()),
		CompletedConcepts:     toSet(r.CompletedConcepts),
		CompletedContent:      toSet(r.CompletedContent),
		IgnoredContent:        toSet(r.IgnoredContent),
		DecayPredictions:      cloneFloatMap(r.DecayPredictions.Data()),
		AverageScore:          r.AverageScore,
		LearningStreak:        r.LearningStreak,
		TopicInterest:         cloneFloatMap(r.TopicInterest.Data()),
		ContentTypePreference: cloneFloatMap(r.ContentTypePreference.Data()),
		Goals:                 append([]LearningGoal(nil), r.Goals.Data()...),
		UpdatedAt:             r.UpdatedAt.UTC(),
	}
	p.ensure()
	return p
}

func ProfileRecordFrom(p *LearnerProfile) *ProfileRecord {
	p = p.Clone()
	goals := p.Goals
	if goals == nil {
		goals = []LearningGoal{}
	}
	return &ProfileRecord{
		ID:                    p.ID,
		MasteryStates:         datatypes.NewJSONType(p.MasteryStates),
		CompletedConcepts:     datatypes.JSONSlice[string](SortedKeys(p.CompletedConcepts)),
		CompletedContent:      datatypes.JSONSlice[string](SortedKeys(p.CompletedContent)),
		IgnoredContent:        datatypes.JSONSlice[string](SortedKeys(p.IgnoredContent)),
		DecayPredictions:      datatypes.NewJSONType(p.DecayPredictions),
		AverageScore:          Clamp01(p.AverageScore),
		LearningStreak:        p.LearningStreak,
		TopicInterest:         datatypes.NewJSONType(p.TopicInterest),
		ContentTypePreference: datatypes.NewJSONType(p.ContentTypePreference),
		Goals:                 datatypes.NewJSONType(goals),
		UpdatedAt:             p.UpdatedAt,
	}
}

func toSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
