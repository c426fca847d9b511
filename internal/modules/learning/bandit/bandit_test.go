package bandit

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/yungbote/neurobridge-adaptive/internal/pkg/randx"
)

var names = []string{"rule_based", "graph_based", "content_based", "collaborative"}

func sum(w map[string]float64) float64 {
	s := 0.0
	for _, v := range w {
		s += v
	}
	return s
}

func TestWeightsSumToOneForAnyRewards(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	rng := randx.New(3)
	s := NewState(names, DefaultConfig())
	for i := 0; i < 2000; i++ {
		if i%3 == 0 {
			s.Select(rng, DefaultConfig())
		} else {
			s.Update(names[r.IntN(len(names))], r.Float64(), r.Float64(), DefaultConfig())
		}
		if math.Abs(sum(s.Weights)-1) > 1e-9 {
			t.Fatalf("step %d: weights sum to %v", i, sum(s.Weights))
		}
	}
}

func TestExplorationAnnealsToFloor(t *testing.T) {
	cfg := Config{ExplorationRate: 0.5, MinExploration: 0.1, Decay: 0.9, LearningRate: 0.1}
	s := NewState(names, cfg)
	rng := randx.New(1)
	prev := s.ExplorationRate
	for i := 0; i < 200; i++ {
		s.Select(rng, cfg)
		if s.ExplorationRate > prev {
			t.Fatalf("exploration increased at %d: %v > %v", i, s.ExplorationRate, prev)
		}
		if s.ExplorationRate < cfg.MinExploration {
			t.Fatalf("exploration below floor: %v", s.ExplorationRate)
		}
		prev = s.ExplorationRate
	}
	if s.ExplorationRate != cfg.MinExploration {
		t.Fatalf("exploration=%v want floor %v", s.ExplorationRate, cfg.MinExploration)
	}
}

func TestRepeatedRewardFavorsStrategy(t *testing.T) {
	s := NewState(names, DefaultConfig())
	before := s.Clone()
	for i := 0; i < 10; i++ {
		s.Update("graph_based", 1, 1, DefaultConfig())
	}
	if s.Weights["graph_based"] <= before.Weights["graph_based"] || s.Weights["graph_based"] > 1 {
		t.Fatalf("graph weight=%v before %v", s.Weights["graph_based"], before.Weights["graph_based"])
	}
	for _, n := range names {
		if n != "graph_based" && s.Weights[n] >= before.Weights[n] {
			t.Fatalf("%s weight did not decrease: %v", n, s.Weights[n])
		}
	}
	if math.Abs(sum(s.Weights)-1) > 1e-9 {
		t.Fatalf("sum=%v", sum(s.Weights))
	}
	st := s.Stats["graph_based"]
	if st.Feedback != 10 || st.SuccessRate != 1 || st.AvgEngagement != 1 {
		t.Fatalf("stats=%+v", st)
	}
	if s.Best() != "graph_based" {
		t.Fatalf("best=%s", s.Best())
	}
}

func TestNeutralRewardLeavesWeights(t *testing.T) {
	s := NewState(names, DefaultConfig())
	s.Update("rule_based", 0.5, 0, DefaultConfig())
	for _, n := range names {
		if math.Abs(s.Weights[n]-0.25) > 1e-12 {
			t.Fatalf("%s=%v", n, s.Weights[n])
		}
	}
}

func TestExploitPicksBest(t *testing.T) {
	cfg := Config{ExplorationRate: 0.05, MinExploration: 0.05, Decay: 1, LearningRate: 0.1}
	s := NewState(names, cfg)
	s.Weights["content_based"] = 0.7
	s.normalize()
	rng := randx.New(99)
	exploits := 0
	for i := 0; i < 100; i++ {
		name, explored := s.Select(rng, cfg)
		if !explored {
			exploits++
			if name != "content_based" {
				t.Fatalf("exploit chose %s", name)
			}
		}
	}
	if exploits < 80 {
		t.Fatalf("too few exploits: %d", exploits)
	}
}

func TestScopeKey(t *testing.T) {
	if ScopeGlobal.Key("l1") != GlobalKey || ScopeLearner.Key("l1") != "learner:l1" || ScopeLearner.Key("") != GlobalKey {
		t.Fatalf("unexpected scope keys")
	}
}

func spread(w map[string]float64) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range w {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return hi - lo
}

func TestNudgeMovesEveryWeightTowardUniform(t *testing.T) {
	s := NewState([]string{"a", "b", "c", "d"}, DefaultConfig())
	s.Weights = map[string]float64{"a": 0.4, "b": 0.3, "c": 0.2, "d": 0.1}
	before := spread(s.Weights)
	s.Nudge("a", 1, 1, DefaultConfig())

	want := map[string]float64{"a": 0.5 / 1.4, "b": 0.4 / 1.4, "c": 0.3 / 1.4, "d": 0.2 / 1.4}
	for k, v := range want {
		if math.Abs(s.Weights[k]-v) > 1e-9 {
			t.Fatalf("%s=%v want %v", k, s.Weights[k], v)
		}
	}
	if spread(s.Weights) >= before {
		t.Fatalf("spread grew: %v -> %v", before, spread(s.Weights))
	}
	if math.Abs(sum(s.Weights)-1) > 1e-9 {
		t.Fatalf("sum=%v", sum(s.Weights))
	}
	if st := s.Stats["a"]; st.Feedback != 1 || st.Successes != 1 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestNudgeKeepsUniformTable(t *testing.T) {
	s := NewState(names, DefaultConfig())
	for i := 0; i < 20; i++ {
		s.Nudge("", 0, 0, DefaultConfig())
	}
	for _, n := range names {
		if math.Abs(s.Weights[n]-0.25) > 1e-9 {
			t.Fatalf("%s=%v", n, s.Weights[n])
		}
	}
	if s.Updates != 20 {
		t.Fatalf("updates=%d", s.Updates)
	}
}

func TestApplyFollowsFeedbackMode(t *testing.T) {
	credited := DefaultConfig()
	credited.Feedback = FeedbackCredited
	a := NewState(names, credited)
	a.Apply("rule_based", 1, 1, credited)
	if a.Weights["rule_based"] <= a.Weights["graph_based"] {
		t.Fatalf("credited mode should favor rule_based: %v", a.Weights)
	}

	b := NewState(names, DefaultConfig())
	b.Apply("rule_based", 1, 1, DefaultConfig())
	for _, n := range names {
		if math.Abs(b.Weights[n]-0.25) > 1e-9 {
			t.Fatalf("all mode on a uniform table changed %s to %v", n, b.Weights[n])
		}
	}
}

func TestSanitizedKeepsZeroExploration(t *testing.T) {
	cfg := Config{ExplorationRate: 0, MinExploration: 0, Decay: 0.9, LearningRate: 0.1}.Sanitized()
	if cfg.ExplorationRate != 0 || cfg.Feedback != FeedbackAll {
		t.Fatalf("sanitized=%+v", cfg)
	}
	if (Config{}).Sanitized() != DefaultConfig() {
		t.Fatalf("zero config should sanitize to defaults")
	}
	s := NewState(names, cfg)
	s.Weights["collaborative"] = 0.6
	s.normalize()
	rng := randx.New(5)
	for i := 0; i < 50; i++ {
		if name, explored := s.Select(rng, cfg); explored || name != "collaborative" {
			t.Fatalf("pure exploit explored=%v name=%s", explored, name)
		}
	}
}
