package learning

import (
	"context"
	"testing"

	"github.com/yungbote/neurobridge-adaptive/internal/data/repos/testutil"
	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/apierr"
)

func TestProfileRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewProfileRepo(db, testutil.Logger(t))

	if _, err := repo.GetProfile(ctx, tx, "missing"); !apierr.IsNotFound(err) {
		t.Fatalf("GetProfile(missing): expected not found, got %v", err)
	}

	p := learning.NewLearnerProfile("l1")
	p.SetMastery("m1", 0.3)
	p.CompletedContent["c1"] = true
	p.Goals = []types.LearningGoal{{ID: "g", TargetConcepts: []string{"m2"}}}
	if err := repo.UpsertProfile(ctx, tx, p); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	got, err := repo.GetProfile(ctx, tx, "l1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if v, _ := got.Mastery("m1"); v != 0.3 || !got.HasCompletedContent("c1") || len(got.GoalConcepts()) != 1 {
		t.Fatalf("unexpected profile %+v", got)
	}

	got.SetMastery("m1", 0.9)
	if err := repo.UpsertProfile(ctx, tx, got); err != nil {
		t.Fatalf("UpsertProfile(update): %v", err)
	}
	again, err := repo.GetProfile(ctx, tx, "l1")
	if err != nil {
		t.Fatalf("GetProfile(again): %v", err)
	}
	if v, _ := again.Mastery("m1"); v != 0.9 {
		t.Fatalf("mastery after update = %v", v)
	}
	if rows, err := repo.ListProfiles(ctx, tx, 10); err != nil || len(rows) != 1 {
		t.Fatalf("ListProfiles: err=%v len=%d", err, len(rows))
	}
	if err := repo.UpsertProfile(ctx, tx, nil); err == nil {
		t.Fatalf("expected error for nil profile")
	}
}

func TestProfileRepoPeers(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewProfileRepo(db, testutil.Logger(t))

	testutil.SeedProfile(t, ctx, db, "me", map[string]float64{"a": 0.5})
	testutil.SeedProfile(t, ctx, db, "p1", map[string]float64{"a": 0.6}, "c1")
	testutil.SeedProfile(t, ctx, db, "p2", map[string]float64{"b": 0.1})

	peers, err := repo.Peers(ctx, "me", 10)
	if err != nil {
		t.Fatalf("Peers: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("expected two peers, got %d", len(peers))
	}
	for _, p := range peers {
		if p.ID == "me" {
			t.Fatalf("peers must exclude the learner")
		}
	}
	if one, err := repo.Peers(ctx, "me", 1); err != nil || len(one) != 1 {
		t.Fatalf("Peers(limit 1): err=%v len=%d", err, len(one))
	}
}
