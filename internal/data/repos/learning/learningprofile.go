package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/apierr"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

const defaultPeerLimit = 50

type ProfileRepo interface {
	// GetProfile returns apierr.ErrNotFound for an unknown learner.
	GetProfile(ctx context.Context, tx *gorm.DB, id string) (*types.LearnerProfile, error)
	UpsertProfile(ctx context.Context, tx *gorm.DB, profile *types.LearnerProfile) error
	ListProfiles(ctx context.Context, tx *gorm.DB, limit int) ([]*types.LearnerProfile, error)
	// Peers lists the most recently active other learners.
	Peers(ctx context.Context, learnerID string, limit int) ([]*types.LearnerProfile, error)
	FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []string) error
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: baseLog.With("repo", "ProfileRepo"), now: time.Now}
}

func (r *profileRepo) GetProfile(ctx context.Context, tx *gorm.DB, id string) (*types.LearnerProfile, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var row types.ProfileRecord
	err := t.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("learner profile", id)
	}
	if err != nil {
		return nil, err
	}
	return row.Profile(), nil
}

func (r *profileRepo) UpsertProfile(ctx context.Context, tx *gorm.DB, profile *types.LearnerProfile) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if profile == nil || profile.ID == "" {
		return fmt.Errorf("upsert profile: id required")
	}
	row := types.ProfileRecordFrom(profile)
	row.UpdatedAt = r.now().UTC()
	return t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(row).Error
}

func (r *profileRepo) ListProfiles(ctx context.Context, tx *gorm.DB, limit int) ([]*types.LearnerProfile, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	return r.list(t.WithContext(ctx), limit)
}

func (r *profileRepo) Peers(ctx context.Context, learnerID string, limit int) ([]*types.LearnerProfile, error) {
	if limit <= 0 {
		limit = defaultPeerLimit
	}
	return r.list(r.db.WithContext(ctx).Where("id <> ?", learnerID), limit)
}

func (r *profileRepo) list(q *gorm.DB, limit int) ([]*types.LearnerProfile, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	var rows []*types.ProfileRecord
	if err := q.Order("updated_at DESC, id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*types.LearnerProfile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Profile())
	}
	return out, nil
}

func (r *profileRepo) FullDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []string) error {
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
		Delete(&types.ProfileRecord{}).Error
}
