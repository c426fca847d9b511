package learning

import (
	"testing"
	"time"
)

func TestProfileRecordRoundTrip(t *testing.T) {
	p := NewLearnerProfile("l1")
	p.SetMastery("m1", 0.4)
	p.CompletedConcepts["a"] = true
	p.CompletedContent["c1"] = true
	p.CompletedContent["c0"] = false
	p.TopicInterest["algebra"] = 0.7
	p.Goals = []LearningGoal{{ID: "g1", TargetConcepts: []string{"c"}}}
	p.AverageScore = 1.4

	rec := ProfileRecordFrom(p)
	if len(rec.CompletedContent) != 1 || rec.CompletedContent[0] != "c1" {
		t.Fatalf("completed content=%v", rec.CompletedContent)
	}
	if rec.AverageScore != 1 {
		t.Fatalf("average score not clamped: %v", rec.AverageScore)
	}
	back := rec.Profile()
	if v, _ := back.Mastery("m1"); v != 0.4 || !back.HasCompletedConcept("a") || back.TopicInterest["algebra"] != 0.7 {
		t.Fatalf("unexpected profile %+v", back)
	}
	if got := back.GoalConcepts(); len(got) != 1 || got[0] != "c" {
		t.Fatalf("goals=%v", got)
	}
	if back.IgnoredContent == nil || back.DecayPredictions == nil {
		t.Fatalf("maps must be non-nil after load")
	}
}

func TestConceptRecordNormalizes(t *testing.T) {
	rec := ConceptRecordFrom(ConceptNode{ID: "b", Prerequisites: []string{"a", "b", "a"}, Difficulty: 0})
	n := rec.Node()
	if len(n.Prerequisites) != 1 || n.Prerequisites[0] != "a" || n.Difficulty != DifficultyBeginner {
		t.Fatalf("unexpected node %+v", n)
	}
	if rec.Related == nil {
		t.Fatalf("related should serialize as an empty list")
	}
}

func TestEventRecordClampsAndKeepsMetadata(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	rec := EventRecordFrom(LearningEvent{ID: "e1", LearnerID: "l1", Type: EventAssessment, Score: 1.5, Metadata: map[string]any{"k": "v"}, OccurredAt: at})
	ev := rec.Event()
	if ev.Score != 1 || ev.Metadata["k"] != "v" || !ev.OccurredAt.Equal(at) || ev.OccurredAt.Location() != time.UTC {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestScoredEvents(t *testing.T) {
	cases := []struct {
		ev   LearningEvent
		want bool
	}{
		{LearningEvent{Type: EventAssessment}, true},
		{LearningEvent{Type: EventFeedback, Score: 0.3}, true},
		{LearningEvent{Type: EventFeedback}, false},
		{LearningEvent{Type: EventInteraction, Score: 0.9}, false},
	}
	for _, tc := range cases {
		if got := tc.ev.Scored(); got != tc.want {
			t.Fatalf("%s score=%v: Scored()=%v, want %v", tc.ev.Type, tc.ev.Score, got, tc.want)
		}
	}
}
