package learning

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-adaptive/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
)

func TestEventRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewEventRepo(db, testutil.Logger(t))

	now := time.Now().UTC().Truncate(time.Second)
	old := &types.LearningEvent{LearnerID: "l1", Type: learning.EventAssessment, ContentID: "c1", Score: 0.4, OccurredAt: now.Add(-48 * time.Hour)}
	recent := &types.LearningEvent{LearnerID: "l1", Type: learning.EventAssessment, ContentID: "c1", ConceptID: "m1", Score: 0.5, OccurredAt: now.Add(-time.Hour), Metadata: map[string]any{"attempt": "2"}}
	other := &types.LearningEvent{LearnerID: "l2", ContentID: "c9", OccurredAt: now}

	if err := repo.AppendEvent(ctx, tx, old); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if old.ID == "" {
		t.Fatalf("AppendEvent should assign an id")
	}
	if n, err := repo.AppendEvents(ctx, tx, []*types.LearningEvent{recent, other}); err != nil || n != 2 {
		t.Fatalf("AppendEvents: n=%d err=%v", n, err)
	}
	if other.Type != learning.EventInteraction {
		t.Fatalf("default type = %q", other.Type)
	}
	if n, err := repo.AppendEvents(ctx, tx, []*types.LearningEvent{recent}); err != nil || n != 0 {
		t.Fatalf("AppendEvents(duplicate): n=%d err=%v", n, err)
	}
	if err := repo.AppendEvent(ctx, tx, &types.LearningEvent{}); err == nil {
		t.Fatalf("expected error without learner id")
	}

	all, err := repo.GetEvents(ctx, tx, "l1", time.Time{})
	if err != nil || len(all) != 2 || all[0].ID != old.ID {
		t.Fatalf("GetEvents(all): err=%v events=%+v", err, all)
	}
	since, err := repo.GetEvents(ctx, tx, "l1", now.Add(-24*time.Hour))
	if err != nil || len(since) != 1 || since[0].ConceptID != "m1" || since[0].Metadata["attempt"] != "2" {
		t.Fatalf("GetEvents(since): err=%v events=%+v", err, since)
	}

	if n, err := repo.FullDeleteBefore(ctx, tx, "l1", now.Add(-24*time.Hour)); err != nil || n != 1 {
		t.Fatalf("FullDeleteBefore: n=%d err=%v", n, err)
	}
}
