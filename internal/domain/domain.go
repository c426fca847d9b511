package domain

import (
	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
)

const (
	EventInteraction = learning.EventInteraction
	EventAssessment  = learning.EventAssessment
	EventCompletion  = learning.EventCompletion
	EventFeedback    = learning.EventFeedback
)

type ConceptNode = learning.ConceptNode
type ContentItem = learning.ContentItem
type ContentType = learning.ContentType
type LearnerProfile = learning.LearnerProfile
type LearningGoal = learning.LearningGoal
type LearningEvent = learning.LearningEvent
type Recommendation = learning.Recommendation

type ConceptRecord = learning.ConceptRecord
type ContentRecord = learning.ContentRecord
type EventRecord = learning.EventRecord
type ProfileRecord = learning.ProfileRecord

// Records lists every persisted model in migration order.
func Records() []any {
	return []any{
		&learning.ConceptRecord{},
		&learning.ContentRecord{},
		&learning.ProfileRecord{},
		&learning.EventRecord{},
	}
}

func ConceptRecordFrom(n learning.ConceptNode) *learning.ConceptRecord {
	return learning.ConceptRecordFrom(n)
}

func ContentRecordFrom(c learning.ContentItem) *learning.ContentRecord {
	return learning.ContentRecordFrom(c)
}

func EventRecordFrom(e learning.LearningEvent) *learning.EventRecord {
	return learning.EventRecordFrom(e)
}

func ProfileRecordFrom(p *learning.LearnerProfile) *learning.ProfileRecord {
	return learning.ProfileRecordFrom(p)
}

func NewLearnerProfile(id string) *learning.LearnerProfile {
	return learning.NewLearnerProfile(id)
}
