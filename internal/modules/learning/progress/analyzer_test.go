package progress

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/apierr"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

var day0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// seed records one snapshot per day with the given mastery values.
func seed(a *Analyzer, c *clock, masteries ...float64) {
	for i, m := range masteries {
		c.t = day0.AddDate(0, 0, i)
		a.Record(Snapshot{LearnerID: "l1", Timestamp: c.t, OverallMastery: m, ContentCompleted: i * 2, TimeSpentMinutes: float64(i) * 30})
	}
}

func newAnalyzer() (*Analyzer, *clock) {
	c := &clock{t: day0}
	return New(logger.Nop(), Config{Now: c.now}), c
}

func TestCreateSnapshot(t *testing.T) {
	a, c := newAnalyzer()
	p := learning.NewLearnerProfile("l1")
	p.MasteryStates["a"] = 0.4
	p.MasteryStates["b"] = 0.8
	p.CompletedContent["x"] = true
	p.AverageScore = 0.3
	p.LearningStreak = 7
	events := []learning.LearningEvent{
		{Type: learning.EventAssessment, Score: 0.9, Engagement: 1, DurationSeconds: 600, OccurredAt: c.t.Add(-time.Hour)},
		{Type: learning.EventAssessment, Score: 0.7, Engagement: 0.8, DurationSeconds: 300, OccurredAt: c.t.Add(-48 * time.Hour)},
		{Type: learning.EventAssessment, Score: 0.1, DurationSeconds: 300, OccurredAt: c.t.Add(-10 * 24 * time.Hour)},
	}
	s := a.CreateSnapshot(p, events)
	if math.Abs(s.OverallMastery-0.6) > 1e-9 {
		t.Fatalf("overall mastery=%v want 0.6", s.OverallMastery)
	}
	if math.Abs(s.AverageAccuracy-0.8) > 1e-9 {
		t.Fatalf("accuracy=%v want 0.8 (recent assessments only)", s.AverageAccuracy)
	}
	if s.TimeSpentMinutes != 20 {
		t.Fatalf("time spent=%v want 20", s.TimeSpentMinutes)
	}
	if s.Engagement != EngagementHigh {
		t.Fatalf("engagement=%s score=%v", s.Engagement, s.EngagementScore)
	}
	if s.ContentCompleted != 1 {
		t.Fatalf("content completed=%d", s.ContentCompleted)
	}

	old := a.CreateSnapshot(p, events[2:])
	if math.Abs(old.AverageAccuracy-0.3) > 1e-9 {
		t.Fatalf("accuracy fallback=%v want profile average 0.3", old.AverageAccuracy)
	}
	if got := len(a.Snapshots("l1", 0)); got != 2 {
		t.Fatalf("snapshots=%d want 2", got)
	}
}

func TestAnalyzeTrends(t *testing.T) {
	a, c := newAnalyzer()
	seed(a, c, 0.1, 0.2)
	if tr := a.AnalyzeTrends("l1", MetricMastery, 0); tr.Sufficient || !errors.Is(tr.Err(), apierr.ErrInsufficientData) {
		t.Fatalf("two snapshots should be insufficient: %+v", tr)
	} else if !strings.Contains(tr.Reason, "have 2, need 3") {
		t.Fatalf("reason=%q", tr.Reason)
	}

	a, c = newAnalyzer()
	seed(a, c, 0.1, 0.2, 0.3, 0.4)
	tr := a.AnalyzeTrends("l1", MetricMastery, 0)
	if !tr.Sufficient || tr.Direction != Improving {
		t.Fatalf("trend=%+v", tr)
	}
	if math.Abs(tr.Slope-0.1) > 1e-9 || math.Abs(tr.RSquared-1) > 1e-9 {
		t.Fatalf("slope=%v r2=%v", tr.Slope, tr.RSquared)
	}
	if math.Abs(tr.Confidence-0.95) > 1e-9 {
		t.Fatalf("confidence=%v want clamp 0.95", tr.Confidence)
	}

	a, c = newAnalyzer()
	seed(a, c, 0.5, 0.5, 0.505)
	if tr := a.AnalyzeTrends("l1", MetricMastery, 0); tr.Direction != Stable {
		t.Fatalf("direction=%s want stable", tr.Direction)
	}

	a, c = newAnalyzer()
	seed(a, c, 0.9, 0.7, 0.5)
	if tr := a.AnalyzeTrends("l1", MetricMastery, 0); tr.Direction != Declining {
		t.Fatalf("direction=%s want declining", tr.Direction)
	}
}

func TestVelocityAndPrediction(t *testing.T) {
	a, c := newAnalyzer()
	seed(a, c, 0.2, 0.3, 0.4, 0.5, 0.6)
	v := a.CalculateLearningVelocity("l1", 0)
	if !v.Sufficient || math.Abs(v.MasteryPerDay-0.1) > 1e-9 || math.Abs(v.ContentPerDay-2) > 1e-9 || math.Abs(v.MinutesPerDay-30) > 1e-9 {
		t.Fatalf("velocity=%+v", v)
	}
	p := a.PredictFutureMastery("l1", 3)
	if math.Abs(p.Predicted-0.9) > 1e-9 {
		t.Fatalf("predicted=%v want 0.9", p.Predicted)
	}
	if p.DaysTo80 == nil || math.Abs(*p.DaysTo80-2) > 1e-9 {
		t.Fatalf("days to 80=%v", p.DaysTo80)
	}
	if far := a.PredictFutureMastery("l1", 30); far.Predicted != 1 {
		t.Fatalf("prediction not clamped: %v", far.Predicted)
	}
	if p.Confidence <= 0 || p.Confidence > 0.95 {
		t.Fatalf("confidence=%v", p.Confidence)
	}

	b, _ := newAnalyzer()
	if p := b.PredictFutureMastery("nobody", 7); p.Sufficient || !errors.Is(p.Err(), apierr.ErrInsufficientData) || p.Reason == "" {
		t.Fatalf("empty history should be insufficient: %+v", p)
	}
}

func TestDetectPlateau(t *testing.T) {
	a, c := newAnalyzer()
	seed(a, c, 0.5, 0.51, 0.5, 0.52)
	if p := a.DetectPlateau("l1", 0, 0.05); p.Sufficient || p.Detected || !errors.Is(p.Err(), apierr.ErrInsufficientData) {
		t.Fatalf("four snapshots must not report a plateau: %+v", p)
	}
	seed(a, c, 0.5, 0.51, 0.5, 0.52, 0.52)
	p := a.DetectPlateau("l1", 0, 0.05)
	if !p.Detected || p.Variance <= 0 || p.Err() != nil || p.Reason != "" {
		t.Fatalf("plateau=%+v", p)
	}

	b, bc := newAnalyzer()
	seed(b, bc, 0.1, 0.2, 0.3, 0.4, 0.5)
	if p := b.DetectPlateau("l1", 0, 0.05); p.Detected {
		t.Fatalf("rising mastery flagged as plateau")
	}
}

func TestMaxSnapshotsAndReport(t *testing.T) {
	c := &clock{t: day0}
	a := New(logger.Nop(), Config{Now: c.now, MaxSnapshots: 3})
	seed(a, c, 0.1, 0.2, 0.3, 0.4, 0.5)
	snaps := a.Snapshots("l1", 0)
	if len(snaps) != 3 || snaps[0].OverallMastery != 0.3 {
		t.Fatalf("snapshots=%+v", snaps)
	}
	r := a.GenerateProgressReport("l1", 30)
	if r.Current == nil || r.Current.OverallMastery != 0.5 {
		t.Fatalf("current=%+v", r.Current)
	}
	if len(r.Trends) != len(AllMetrics) || !r.Trends[MetricMastery].Sufficient {
		t.Fatalf("trends=%+v", r.Trends)
	}
	if len(r.Insights) == 0 {
		t.Fatalf("no insights")
	}
	empty := a.GenerateProgressReport("nobody", 30)
	if empty.Current != nil || len(empty.Insights) != 1 {
		t.Fatalf("empty report=%+v", empty)
	}
}
