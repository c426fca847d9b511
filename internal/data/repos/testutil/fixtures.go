package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
)

func SeedContent(tb testing.TB, ctx context.Context, tx *gorm.DB, item types.ContentItem) *types.ContentRecord {
	tb.Helper()
	if item.Title == "" {
		item.Title = item.ID
	}
	if item.Type == "" {
		item.Type = learning.ContentLesson
	}
	if item.Difficulty == 0 {
		item.Difficulty = learning.DifficultyBeginner
	}
	row := learning.ContentRecordFrom(item)
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed content: %v", err)
	}
	return row
}

func SeedConcept(tb testing.TB, ctx context.Context, tx *gorm.DB, id string, prereqs ...string) *types.ConceptRecord {
	tb.Helper()
	row := learning.ConceptRecordFrom(types.ConceptNode{
		ID:               id,
		Name:             id,
		Difficulty:       learning.DifficultyBeginner,
		Prerequisites:    prereqs,
		EstimatedMinutes: 30,
		Importance:       0.5,
	})
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed concept: %v", err)
	}
	return row
}

func SeedProfile(tb testing.TB, ctx context.Context, tx *gorm.DB, id string, mastery map[string]float64, completed ...string) *types.ProfileRecord {
	tb.Helper()
	p := learning.NewLearnerProfile(id)
	for k, v := range mastery {
		p.SetMastery(k, v)
	}
	for _, c := range completed {
		p.CompletedContent[c] = true
	}
	p.UpdatedAt = time.Now().UTC()
	row := learning.ProfileRecordFrom(p)
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return row
}
