package learning

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

// ConceptRepo is the relational knowledge base.
type ConceptRepo interface {
	ListConcepts(ctx context.Context, tx *gorm.DB) ([]types.ConceptNode, error)
	UpsertConcepts(ctx context.Context, tx *gorm.DB, nodes []types.ConceptNode) error
	FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []string) error
}

type conceptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptRepo(db *gorm.DB, baseLog *logger.Logger) ConceptRepo {
	return &conceptRepo{db: db, log: baseLog.With("repo", "ConceptRepo")}
}

func (r *conceptRepo) ListConcepts(ctx context.Context, tx *gorm.DB) ([]types.ConceptNode, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var rows []*types.ConceptRecord
	if err := t.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.ConceptNode, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Node())
	}
	return out, nil
}

func (r *conceptRepo) UpsertConcepts(ctx context.Context, tx *gorm.DB, nodes []types.ConceptNode) error {
	t := tx
	if t == nil {
		t = r.db
	}
	rows := make([]*types.ConceptRecord, 0, len(nodes))
	for _, n := range nodes {
		if strings.TrimSpace(n.ID) == "" {
			r.log.Warn("skipping concept without id", "name", n.Name)
			continue
		}
		rows = append(rows, types.ConceptRecordFrom(n))
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

func (r *conceptRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []string) error {
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
		Delete(&types.ConceptRecord{}).Error
}
