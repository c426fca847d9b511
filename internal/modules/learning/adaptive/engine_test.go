package adaptive

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/neurobridge-adaptive/internal/data/state"
	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/bandit"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

type fixedRand struct{ f float64 }

func (r fixedRand) Float64() float64             { return r.f }
func (r fixedRand) IntN(n int) int               { return 0 }
func (r fixedRand) Shuffle(int, func(i, j int)) {}

type fakeStrategy struct {
	name  string
	items []learning.Recommendation
	err   error
	panic bool
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Recommend(ctx context.Context, in Input) (Result, error) {
	if f.panic {
		var m map[string]int
		m["boom"]++
	}
	if f.err != nil {
		return Result{}, f.err
	}
	out := append([]learning.Recommendation(nil), f.items...)
	return Result{Items: out, Metadata: map[string]any{"n": len(out)}}, nil
}

func rec(id string, score float64) learning.Recommendation {
	return learning.Recommendation{
		Content: learning.ContentItem{ID: id, Type: learning.ContentLesson, Difficulty: 2},
		Score:   score,
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newClock() *clock {
	// Wednesday afternoon: no time-of-day bias.
	return &clock{t: time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)}
}

func newTestEngine(t *testing.T, scope bandit.Scope, c *clock, strategies ...Strategy) *Engine {
	t.Helper()
	return newTestEngineWith(t, bandit.DefaultConfig(), scope, c, strategies...)
}

func creditedEngine(t *testing.T, scope bandit.Scope, c *clock, strategies ...Strategy) *Engine {
	t.Helper()
	cfg := bandit.DefaultConfig()
	cfg.Feedback = bandit.FeedbackCredited
	return newTestEngineWith(t, cfg, scope, c, strategies...)
}

func newTestEngineWith(t *testing.T, bc bandit.Config, scope bandit.Scope, c *clock, strategies ...Strategy) *Engine {
	t.Helper()
	e, err := New(logger.Nop(), state.NewMemoryStore(), strategies, Config{
		Bandit: bc,
		Scope:  scope,
		Rand:   fixedRand{f: 0.99},
		Now:    c.now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func profile(id string) *learning.LearnerProfile {
	p := learning.NewLearnerProfile(id)
	p.AverageScore = 0.5
	return p
}

func weightSum(w map[string]float64) float64 {
	s := 0.0
	for _, v := range w {
		s += v
	}
	return s
}

func TestRecommendBlendsOtherStrategiesByWeight(t *testing.T) {
	alpha := &fakeStrategy{name: "alpha", items: []learning.Recommendation{rec("a1", 0.9), rec("a2", 0.8)}}
	beta := &fakeStrategy{name: "beta", items: []learning.Recommendation{rec("b1", 0.7), rec("a1", 0.6)}}
	e := newTestEngine(t, bandit.ScopeGlobal, newClock(), alpha, beta)

	resp, err := e.Recommend(context.Background(), profile("l1"), nil, 5)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Metadata["selected_strategy"] != "alpha" || resp.Metadata["explored"] != false {
		t.Fatalf("expected exploit of alpha, got %v", resp.Metadata)
	}
	want := []struct {
		id       string
		strategy string
		score    float64
	}{{"a1", "alpha", 0.9}, {"a2", "alpha", 0.8}, {"b1", "beta", 0.35}}
	if len(resp.Items) != len(want) {
		t.Fatalf("expected %d items, got %+v", len(want), resp.Items)
	}
	for i, w := range want {
		got := resp.Items[i]
		if got.Content.ID != w.id || got.Strategy != w.strategy || math.Abs(got.Score-w.score) > 1e-9 {
			t.Fatalf("item %d: want %+v, got %s/%s/%v", i, w, got.Content.ID, got.Strategy, got.Score)
		}
	}
}

func TestRecommendTruncatesToMax(t *testing.T) {
	alpha := &fakeStrategy{name: "alpha", items: []learning.Recommendation{rec("a1", 0.9), rec("a2", 0.8), rec("a3", 0.7)}}
	e := newTestEngine(t, bandit.ScopeGlobal, newClock(), alpha)
	resp, err := e.Recommend(context.Background(), profile("l1"), nil, 2)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[1].Content.ID != "a2" {
		t.Fatalf("unexpected items: %+v", resp.Items)
	}
}

func TestFailingStrategiesAreIsolated(t *testing.T) {
	alpha := &fakeStrategy{name: "alpha", items: []learning.Recommendation{rec("a1", 0.9)}}
	broken := &fakeStrategy{name: "broken", err: errors.New("store offline")}
	crashing := &fakeStrategy{name: "crashing", panic: true}
	e := newTestEngine(t, bandit.ScopeGlobal, newClock(), alpha, broken, crashing)

	resp, err := e.Recommend(context.Background(), profile("l1"), nil, 5)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Content.ID != "a1" {
		t.Fatalf("expected surviving alpha item, got %+v", resp.Items)
	}
	errs, _ := resp.Metadata["strategy_errors"].(map[string]string)
	if !strings.Contains(errs["broken"], "store offline") || !strings.Contains(errs["crashing"], "panic") {
		t.Fatalf("expected both failures annotated, got %v", errs)
	}
}

func TestReward(t *testing.T) {
	cases := []struct {
		e, c, s float64
		want    float64
	}{
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{0.5, 1, 0.25, 0.55},
		{2, 2, 2, 1},
	}
	for _, tc := range cases {
		if got := Reward(tc.e, tc.c, tc.s); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("Reward(%v,%v,%v) = %v, want %v", tc.e, tc.c, tc.s, got, tc.want)
		}
	}
}

func TestFeedbackCreditsAttributedStrategy(t *testing.T) {
	alpha := &fakeStrategy{name: "alpha", items: []learning.Recommendation{rec("a1", 0.9)}}
	beta := &fakeStrategy{name: "beta", items: []learning.Recommendation{rec("b1", 0.7)}}
	e := creditedEngine(t, bandit.ScopeGlobal, newClock(), alpha, beta)
	ctx := context.Background()
	if _, err := e.Recommend(ctx, profile("l1"), nil, 5); err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	res, err := e.ProcessFeedback(ctx, Feedback{LearnerID: "l1", ContentID: "b1", Engagement: 1, Completion: 1, AssessmentScore: 1})
	if err != nil {
		t.Fatalf("ProcessFeedback: %v", err)
	}
	if res.Strategy != "beta" || res.Reward != 1 {
		t.Fatalf("expected beta credited with reward 1, got %+v", res)
	}
	if res.Weights["beta"] <= res.Weights["alpha"] {
		t.Fatalf("beta should lead after positive feedback: %v", res.Weights)
	}
	if math.Abs(weightSum(res.Weights)-1) > 1e-9 {
		t.Fatalf("weights sum to %v", weightSum(res.Weights))
	}

	// Unknown content falls back to the last selected strategy.
	res, err = e.ProcessFeedback(ctx, Feedback{LearnerID: "l1", ContentID: "zzz", AssessmentScore: 0})
	if err != nil {
		t.Fatalf("ProcessFeedback: %v", err)
	}
	if res.Strategy != "alpha" {
		t.Fatalf("expected fallback to last selected alpha, got %q", res.Strategy)
	}
}

func TestLearnerScopeIsolatesWeights(t *testing.T) {
	alpha := &fakeStrategy{name: "alpha", items: []learning.Recommendation{rec("a1", 0.9)}}
	beta := &fakeStrategy{name: "beta"}
	e := creditedEngine(t, bandit.ScopeLearner, newClock(), alpha, beta)
	ctx := context.Background()
	if _, err := e.Recommend(ctx, profile("l1"), nil, 5); err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if _, err := e.ProcessFeedback(ctx, Feedback{LearnerID: "l1", ContentID: "a1", Engagement: 1, Completion: 1, AssessmentScore: 1}); err != nil {
		t.Fatalf("ProcessFeedback: %v", err)
	}
	st, err := e.BanditState(ctx, "l2")
	if err != nil {
		t.Fatalf("BanditState: %v", err)
	}
	if st.Weights["alpha"] != 0.5 || st.Weights["beta"] != 0.5 {
		t.Fatalf("l2 should still have equal weights, got %v", st.Weights)
	}
	l1, _ := e.BanditState(ctx, "l1")
	if l1.Weights["alpha"] <= 0.5 {
		t.Fatalf("l1 alpha weight should have grown, got %v", l1.Weights)
	}
}

func TestResetBandit(t *testing.T) {
	alpha := &fakeStrategy{name: "alpha", items: []learning.Recommendation{rec("a1", 0.9)}}
	beta := &fakeStrategy{name: "beta"}
	e := newTestEngine(t, bandit.ScopeGlobal, newClock(), alpha, beta)
	ctx := context.Background()
	if _, err := e.Recommend(ctx, profile("l1"), nil, 5); err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if _, err := e.ProcessFeedback(ctx, Feedback{LearnerID: "l1", ContentID: "a1", AssessmentScore: 1, Completion: 1}); err != nil {
		t.Fatalf("ProcessFeedback: %v", err)
	}
	if err := e.ResetBandit(ctx, "l1"); err != nil {
		t.Fatalf("ResetBandit: %v", err)
	}
	st, err := e.BanditState(ctx, "l1")
	if err != nil {
		t.Fatalf("BanditState: %v", err)
	}
	if st.Weights["alpha"] != 0.5 || st.Selections != 0 {
		t.Fatalf("expected fresh state after reset, got %+v", st)
	}
}

func TestFrustrationLowersDifficultyAndSuggestsBreak(t *testing.T) {
	alpha := &fakeStrategy{name: "alpha", items: []learning.Recommendation{rec("a1", 0.9)}}
	e := newTestEngine(t, bandit.ScopeGlobal, newClock(), alpha)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := e.ProcessFeedback(ctx, Feedback{LearnerID: "l1", ContentID: "a1", Engagement: 0.6, AssessmentScore: 0.2}); err != nil {
			t.Fatalf("ProcessFeedback: %v", err)
		}
	}
	ok, reason := e.ShouldSuggestBreak("l1")
	if !ok || reason != "frustration detected" {
		t.Fatalf("expected frustration break, got %v %q", ok, reason)
	}
	resp, err := e.Recommend(ctx, profile("l1"), nil, 5)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Metadata["mood"] != string(MoodFrustrated) {
		t.Fatalf("expected frustrated mood, got %v", resp.Metadata["mood"])
	}
	// Target drops from 2 to 1, a one-tier gap on a difficulty-2 item.
	if got := resp.Items[0].Score; math.Abs(got-0.9*0.85) > 1e-9 {
		t.Fatalf("expected difficulty penalty, got %v", got)
	}
}

func TestLongSessionSuggestsBreak(t *testing.T) {
	c := newClock()
	e := newTestEngine(t, bandit.ScopeGlobal, c, &fakeStrategy{name: "alpha"})
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		if _, err := e.ProcessFeedback(ctx, Feedback{LearnerID: "l1", Engagement: 0.9, AssessmentScore: 0.6}); err != nil {
			t.Fatalf("ProcessFeedback: %v", err)
		}
		c.t = c.t.Add(20 * time.Minute)
	}
	if _, err := e.ProcessFeedback(ctx, Feedback{LearnerID: "l1", Engagement: 0.9, AssessmentScore: 0.6}); err != nil {
		t.Fatalf("ProcessFeedback: %v", err)
	}
	ok, reason := e.ShouldSuggestBreak("l1")
	if !ok || reason != "long session" {
		t.Fatalf("expected long session break, got %v %q", ok, reason)
	}

	// A gap longer than the session timeout starts over.
	c.t = c.t.Add(2 * time.Hour)
	if _, err := e.ProcessFeedback(ctx, Feedback{LearnerID: "l1", Engagement: 0.9, AssessmentScore: 0.6}); err != nil {
		t.Fatalf("ProcessFeedback: %v", err)
	}
	if ok, _ := e.ShouldSuggestBreak("l1"); ok {
		t.Fatalf("expected new session after a long gap")
	}
}

func TestDetectLearningPatterns(t *testing.T) {
	e := newTestEngine(t, bandit.ScopeGlobal, newClock(), &fakeStrategy{name: "alpha"})
	if p := e.DetectLearningPatterns("nobody"); p.Trend != "insufficient_data" || p.Events != 0 {
		t.Fatalf("unexpected patterns for unknown learner: %+v", p)
	}
	ctx := context.Background()
	for _, s := range []float64{0.2, 0.3, 0.8, 0.9} {
		if _, err := e.ProcessFeedback(ctx, Feedback{LearnerID: "l1", Engagement: 0.5, Completion: 1, AssessmentScore: s}); err != nil {
			t.Fatalf("ProcessFeedback: %v", err)
		}
	}
	p := e.DetectLearningPatterns("l1")
	if p.Events != 4 || p.Trend != "improving" || !p.SufficientForTrend {
		t.Fatalf("unexpected patterns: %+v", p)
	}
	if math.Abs(p.TrendDelta-0.6) > 1e-9 || p.CompletionRate != 1 || p.CurrentEngagement != 0.5 {
		t.Fatalf("unexpected summary: %+v", p)
	}
}

func TestNewRejectsDuplicateStrategies(t *testing.T) {
	_, err := New(logger.Nop(), state.NewMemoryStore(), []Strategy{&fakeStrategy{name: "x"}, &fakeStrategy{name: "x"}}, Config{})
	if err == nil {
		t.Fatalf("expected duplicate strategy error")
	}
}

func TestFeedbackNudgesEveryWeight(t *testing.T) {
	alpha := &fakeStrategy{name: "alpha", items: []learning.Recommendation{rec("a1", 0.9)}}
	beta := &fakeStrategy{name: "beta", items: []learning.Recommendation{rec("b1", 0.7)}}
	gamma := &fakeStrategy{name: "gamma"}
	e := newTestEngine(t, bandit.ScopeGlobal, newClock(), alpha, beta, gamma)
	ctx := context.Background()
	if _, err := e.store.Update(ctx, bandit.GlobalKey, func(s *bandit.State) error {
		e.ensure(s)
		s.Weights = map[string]float64{"alpha": 0.6, "beta": 0.3, "gamma": 0.1}
		return nil
	}); err != nil {
		t.Fatalf("seed weights: %v", err)
	}
	res, err := e.ProcessFeedback(ctx, Feedback{LearnerID: "l1", ContentID: "a1", Engagement: 1, Completion: 1, AssessmentScore: 1})
	if err != nil {
		t.Fatalf("ProcessFeedback: %v", err)
	}
	want := map[string]float64{"alpha": 0.7 / 1.3, "beta": 0.4 / 1.3, "gamma": 0.2 / 1.3}
	for k, v := range want {
		if math.Abs(res.Weights[k]-v) > 1e-9 {
			t.Fatalf("%s=%v want %v", k, res.Weights[k], v)
		}
	}
	if res.Strategy != "alpha" {
		t.Fatalf("without attribution the best strategy is credited, got %q", res.Strategy)
	}
}

func TestFailedCommitLeavesStateUntouched(t *testing.T) {
	alpha := &fakeStrategy{name: "alpha", items: []learning.Recommendation{rec("a1", 0.9)}}
	beta := &fakeStrategy{name: "beta"}
	e := creditedEngine(t, bandit.ScopeGlobal, newClock(), alpha, beta)
	ctx := context.Background()
	if _, err := e.Recommend(ctx, profile("l1"), nil, 5); err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	before, err := e.BanditState(ctx, "l1")
	if err != nil {
		t.Fatalf("BanditState: %v", err)
	}
	boom := errors.New("disk full")
	var seen FeedbackResult
	_, err = e.ProcessFeedbackCommit(ctx, Feedback{LearnerID: "l1", ContentID: "a1", Engagement: 1, Completion: 1, AssessmentScore: 1},
		func(r FeedbackResult) error {
			seen = r
			return boom
		})
	if !errors.Is(err, boom) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if seen.Strategy != "alpha" || seen.Reward != 1 {
		t.Fatalf("commit saw %+v", seen)
	}
	after, _ := e.BanditState(ctx, "l1")
	if after.Updates != before.Updates || after.Weights["alpha"] != before.Weights["alpha"] {
		t.Fatalf("weights changed after failed commit: %+v -> %+v", before, after)
	}
	if c, _ := e.Context("l1"); len(c.History) != 0 {
		t.Fatalf("history recorded after failed commit: %d", len(c.History))
	}
}
