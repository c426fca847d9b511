package learning

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

// ContentFilter narrows ListContent. Zero fields do not filter.
type ContentFilter struct {
	IDs           []string
	ExcludeIDs    []string
	Subjects      []string
	Topics        []string
	Types         []types.ContentType
	ConceptIDs    []string
	MinDifficulty int
	MaxDifficulty int
	Limit         int
}

const maxContentPage = 5000

type ContentRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, items []types.ContentItem) error
	ListContent(ctx context.Context, tx *gorm.DB, filter ContentFilter) ([]types.ContentItem, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]types.ContentItem, error)
	FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []string) error
}

type contentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContentRepo(db *gorm.DB, baseLog *logger.Logger) ContentRepo {
	return &contentRepo{db: db, log: baseLog.With("repo", "ContentRepo")}
}

func (r *contentRepo) Upsert(ctx context.Context, tx *gorm.DB, items []types.ContentItem) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(items) == 0 {
		return nil
	}
	rows := make([]*types.ContentRecord, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			continue
		}
		rows = append(rows, types.ContentRecordFrom(it))
	}
	if len(rows) == 0 {
		return nil
	}
	return t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&rows).Error
}

func (r *contentRepo) ListContent(ctx context.Context, tx *gorm.DB, f ContentFilter) ([]types.ContentItem, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(ctx).Model(&types.ContentRecord{})
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if len(f.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", f.ExcludeIDs)
	}
	if len(f.Subjects) > 0 {
		q = q.Where("LOWER(subject) IN ?", lowerAll(f.Subjects))
	}
	if len(f.Topics) > 0 {
		q = q.Where("LOWER(topic) IN ?", lowerAll(f.Topics))
	}
	if len(f.Types) > 0 {
		ts := make([]string, len(f.Types))
		for i, ct := range f.Types {
			ts[i] = string(ct)
		}
		q = q.Where("type IN ?", ts)
	}
	if f.MinDifficulty > 0 {
		q = q.Where("difficulty >= ?", f.MinDifficulty)
	}
	if f.MaxDifficulty > 0 {
		q = q.Where("difficulty <= ?", f.MaxDifficulty)
	}
	limit := f.Limit
	if limit <= 0 || limit > maxContentPage {
		limit = maxContentPage
	}
	// Concept membership lives in a JSON column, so it is filtered after the query.
	if len(f.ConceptIDs) == 0 {
		q = q.Limit(limit)
	}
	var rows []*types.ContentRecord
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	want := map[string]bool{}
	for _, c := range f.ConceptIDs {
		want[c] = true
	}
	out := make([]types.ContentItem, 0, len(rows))
	for _, row := range rows {
		if len(want) > 0 && !anyIn(row.ConceptIDs, want) {
			continue
		}
		out = append(out, row.Item())
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *contentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []string) ([]types.ContentItem, error) {
	if len(ids) == 0 {
		return []types.ContentItem{}, nil
	}
	return r.ListContent(ctx, tx, ContentFilter{IDs: ids})
}

func (r *contentRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []string) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return t.WithContext(ctx).
		Unscoped().
		Where("id IN ?", ids).
		Delete(&types.ContentRecord{}).Error
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

func anyIn(ids []string, want map[string]bool) bool {
	for _, id := range ids {
		if want[id] {
			return true
		}
	}
	return false
}
