package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

const maxEventPage = 10000

type EventRepo interface {
	AppendEvent(ctx context.Context, tx *gorm.DB, event *types.LearningEvent) error
	AppendEvents(ctx context.Context, tx *gorm.DB, events []*types.LearningEvent) (int, error)
	// GetEvents returns events at or after since in occurrence order. A zero
	// since returns the full history up to the page limit.
	GetEvents(ctx context.Context, tx *gorm.DB, learnerID string, since time.Time) ([]types.LearningEvent, error)
	FullDeleteBefore(ctx context.Context, tx *gorm.DB, learnerID string, before time.Time) (int64, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return &eventRepo{db: db, log: baseLog.With("repo", "EventRepo"), now: time.Now}
}

func (r *eventRepo) prepare(e *types.LearningEvent) (*types.EventRecord, error) {
	if e == nil || e.LearnerID == "" {
		return nil, fmt.Errorf("event: learner id required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Type == "" {
		e.Type = types.EventInteraction
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now().UTC()
	}
	row := types.EventRecordFrom(*e)
	row.CreatedAt = r.now().UTC()
	return row, nil
}

func (r *eventRepo) AppendEvent(ctx context.Context, tx *gorm.DB, e *types.LearningEvent) error {
	t := tx
	if t == nil {
		t = r.db
	}
	row, err := r.prepare(e)
	if err != nil {
		return err
	}
	return t.WithContext(ctx).Create(row).Error
}

// AppendEvents skips events whose id is already stored and reports how many
// were inserted.
func (r *eventRepo) AppendEvents(ctx context.Context, tx *gorm.DB, events []*types.LearningEvent) (int, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(events) == 0 {
		return 0, nil
	}
	rows := make([]*types.EventRecord, 0, len(events))
	for _, e := range events {
		row, err := r.prepare(e)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}
	res := t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *eventRepo) GetEvents(ctx context.Context, tx *gorm.DB, learnerID string, since time.Time) ([]types.LearningEvent, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if learnerID == "" {
		return []types.LearningEvent{}, nil
	}
	q := t.WithContext(ctx).Model(&types.EventRecord{}).Where("learner_id = ?", learnerID)
	if !since.IsZero() {
		q = q.Where("occurred_at >= ?", since.UTC())
	}
	var rows []*types.EventRecord
	if err := q.Order("occurred_at ASC, id ASC").Limit(maxEventPage).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.LearningEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Event())
	}
	return out, nil
}

func (r *eventRepo) FullDeleteBefore(ctx context.Context, tx *gorm.DB, learnerID string, before time.Time) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(ctx).
		Unscoped().
		Where("learner_id = ? AND occurred_at < ?", learnerID, before.UTC()).
		Delete(&types.EventRecord{})
	return res.RowsAffected, res.Error
}
