package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-adaptive/internal/data/repos/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

type ConceptRepo = learning.ConceptRepo
type ContentRepo = learning.ContentRepo
type ContentFilter = learning.ContentFilter
type ProfileRepo = learning.ProfileRepo
type EventRepo = learning.EventRepo

func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
	return learning.NewConceptRepo(db, baseLog)
}
func NewContentRepo(db *gorm.DB, baseLog *logger.Logger) ContentRepo {
	return learning.NewContentRepo(db, baseLog)
}
func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return learning.NewProfileRepo(db, baseLog)
}
func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return learning.NewEventRepo(db, baseLog)
}

// Set groups the repositories one store connection serves.
type Set struct {
	Concepts ConceptRepo
	Content  ContentRepo
	Profiles ProfileRepo
	Events   EventRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Concepts: NewConceptRepo(db, baseLog),
		Content:  NewContentRepo(db, baseLog),
		Profiles: NewProfileRepo(db, baseLog),
		Events:   NewEventRepo(db, baseLog),
	}
}
