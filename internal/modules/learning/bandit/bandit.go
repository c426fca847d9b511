// Package bandit holds the epsilon-greedy strategy arbiter state and its
// selection and reward-update rules. State is plain data so stores can persist
// it; every mutation goes through a Store update.
package bandit

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/pkg/randx"
)

const (
	DefaultExplorationRate = 0.2
	DefaultMinExploration  = 0.05
	DefaultDecay           = 0.995
	DefaultLearningRate    = 0.1

	MinWeight = 0.1
	MaxWeight = 1.0

	GlobalKey = "global"
)

// FeedbackMode decides how a reward moves the weight table.
type FeedbackMode string

const (
	// FeedbackAll nudges every weight in the reward's direction.
	FeedbackAll FeedbackMode = "all"
	// FeedbackCredited moves the credited strategy against the others.
	FeedbackCredited FeedbackMode = "credited"
)

func (m FeedbackMode) Valid() bool { return m == FeedbackAll || m == FeedbackCredited }

type Config struct {
	ExplorationRate float64      `json:"exploration_rate"`
	MinExploration  float64      `json:"min_exploration"`
	Decay           float64      `json:"decay"`
	LearningRate    float64      `json:"learning_rate"`
	Feedback        FeedbackMode `json:"feedback_mode"`
}

func DefaultConfig() Config {
	return Config{
		ExplorationRate: DefaultExplorationRate,
		MinExploration:  DefaultMinExploration,
		Decay:           DefaultDecay,
		LearningRate:    DefaultLearningRate,
		Feedback:        FeedbackAll,
	}
}

// Sanitized replaces out-of-range fields with defaults. The zero Config is the
// default config; otherwise a zero exploration rate is kept, so MinExploration
// 0 with ExplorationRate 0 is pure exploit.
func (c Config) Sanitized() Config {
	d := DefaultConfig()
	if c == (Config{}) {
		return d
	}
	if c.MinExploration < 0 || c.MinExploration > 1 {
		c.MinExploration = d.MinExploration
	}
	if c.ExplorationRate < 0 || c.ExplorationRate > 1 {
		c.ExplorationRate = d.ExplorationRate
	}
	if c.ExplorationRate < c.MinExploration {
		c.ExplorationRate = c.MinExploration
	}
	if c.Decay <= 0 || c.Decay > 1 {
		c.Decay = d.Decay
	}
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		c.LearningRate = d.LearningRate
	}
	if !c.Feedback.Valid() {
		c.Feedback = d.Feedback
	}
	return c
}

type StrategyStats struct {
	Uses            int     `json:"uses"`
	Feedback        int     `json:"feedback"`
	Successes       int     `json:"successes"`
	SuccessRate     float64 `json:"success_rate"`
	TotalEngagement float64 `json:"total_engagement"`
	AvgEngagement   float64 `json:"avg_engagement"`
}

type State struct {
	Weights         map[string]float64       `json:"weights"`
	Stats           map[string]StrategyStats `json:"stats"`
	ExplorationRate float64                  `json:"exploration_rate"`
	Selections      int                      `json:"selections"`
	Updates         int                      `json:"updates"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// NewState gives every strategy an equal share of the weight.
func NewState(strategies []string, cfg Config) State {
	cfg = cfg.Sanitized()
	s := State{
		Weights:         make(map[string]float64, len(strategies)),
		Stats:           make(map[string]StrategyStats, len(strategies)),
		ExplorationRate: cfg.ExplorationRate,
	}
	for _, name := range strategies {
		s.Weights[name] = 1
		s.Stats[name] = StrategyStats{}
	}
	s.normalize()
	return s
}

// Register adds strategies missing from the table at the minimum weight and
// renormalizes. It reports whether anything was added.
func (s *State) Register(strategies []string) bool {
	if s.Weights == nil {
		s.Weights = map[string]float64{}
	}
	if s.Stats == nil {
		s.Stats = map[string]StrategyStats{}
	}
	added := false
	for _, name := range strategies {
		if _, ok := s.Weights[name]; ok {
			continue
		}
		s.Weights[name] = MinWeight
		s.Stats[name] = StrategyStats{}
		added = true
	}
	if added {
		s.normalize()
	}
	return added
}

// Empty reports whether the state has never been initialized.
func (s State) Empty() bool { return len(s.Weights) == 0 }

func (s State) Clone() State {
	out := s
	out.Weights = make(map[string]float64, len(s.Weights))
	for k, v := range s.Weights {
		out.Weights[k] = v
	}
	out.Stats = make(map[string]StrategyStats, len(s.Stats))
	for k, v := range s.Stats {
		out.Stats[k] = v
	}
	return out
}

// Strategies returns the strategy names in sorted order.
func (s State) Strategies() []string {
	names := make([]string, 0, len(s.Weights))
	for k := range s.Weights {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Best is the highest-weight strategy; ties go to the lexically smallest name.
func (s State) Best() string {
	best, bestW := "", math.Inf(-1)
	for _, name := range s.Strategies() {
		if w := s.Weights[name]; w > bestW {
			best, bestW = name, w
		}
	}
	return best
}

// Select anneals the exploration rate, then explores uniformly with that
// probability or exploits the best strategy.
func (s *State) Select(rng randx.Source, cfg Config) (string, bool) {
	cfg = cfg.Sanitized()
	if s.Empty() {
		return "", false
	}
	s.ExplorationRate = math.Max(cfg.MinExploration, s.ExplorationRate*cfg.Decay)
	name, explored := s.Best(), false
	if rng.Float64() < s.ExplorationRate {
		names := s.Strategies()
		name, explored = names[rng.IntN(len(names))], true
	}
	st := s.Stats[name]
	st.Uses++
	s.Stats[name] = st
	s.Selections++
	s.normalize()
	return name, explored
}

// step is learning_rate*|reward-0.5|*2 signed by the side of 0.5 reward falls on.
func step(reward float64, cfg Config) float64 {
	delta := cfg.LearningRate * math.Abs(reward-0.5) * 2
	switch {
	case reward > 0.5:
		return delta
	case reward < 0.5:
		return -delta
	}
	return 0
}

// Update applies a reward in [0,1] credited to strategy. The credited weight
// moves by the step, up when reward exceeds 0.5 and down otherwise; the others
// move the opposite way by an equal share. Weights are clamped to [0.1, 1] and
// renormalized to sum to 1.
func (s *State) Update(strategy string, reward, engagement float64, cfg Config) {
	cfg = cfg.Sanitized()
	if _, ok := s.Weights[strategy]; !ok {
		return
	}
	reward = learning.Clamp01(reward)
	d := step(reward, cfg)
	others := float64(len(s.Weights) - 1)
	for name, w := range s.Weights {
		if name == strategy {
			w += d
		} else if others > 0 {
			w -= d / others
		}
		s.Weights[name] = learning.ClampRange(w, MinWeight, MaxWeight)
	}
	s.normalize()
	s.record(strategy, reward, engagement)
}

// Nudge moves every weight by the same step, then clamps to [0.1, 1] and
// renormalizes. Stats are recorded against strategy when it is known.
func (s *State) Nudge(strategy string, reward, engagement float64, cfg Config) {
	cfg = cfg.Sanitized()
	if s.Empty() {
		return
	}
	reward = learning.Clamp01(reward)
	d := step(reward, cfg)
	for name, w := range s.Weights {
		s.Weights[name] = learning.ClampRange(w+d, MinWeight, MaxWeight)
	}
	s.normalize()
	if _, ok := s.Weights[strategy]; ok {
		s.record(strategy, reward, engagement)
		return
	}
	s.Updates++
}

// Apply routes a reward through the configured feedback mode.
func (s *State) Apply(strategy string, reward, engagement float64, cfg Config) {
	if cfg.Sanitized().Feedback == FeedbackCredited {
		s.Update(strategy, reward, engagement, cfg)
		return
	}
	s.Nudge(strategy, reward, engagement, cfg)
}

func (s *State) record(strategy string, reward, engagement float64) {
	st := s.Stats[strategy]
	st.Feedback++
	if reward > 0.5 {
		st.Successes++
	}
	st.TotalEngagement += learning.Clamp01(engagement)
	st.SuccessRate = float64(st.Successes) / float64(st.Feedback)
	st.AvgEngagement = st.TotalEngagement / float64(st.Feedback)
	s.Stats[strategy] = st
	s.Updates++
}

func (s *State) normalize() {
	sum := 0.0
	for _, w := range s.Weights {
		sum += w
	}
	if sum <= 0 {
		n := float64(len(s.Weights))
		for k := range s.Weights {
			s.Weights[k] = 1 / n
		}
		return
	}
	for k, w := range s.Weights {
		s.Weights[k] = w / sum
	}
}

// Store is the lockable home of bandit state. Update must apply fn atomically
// with respect to other updates of the same key.
type Store interface {
	Get(ctx context.Context, key string) (State, bool, error)
	Update(ctx context.Context, key string, fn func(*State) error) (State, error)
	Reset(ctx context.Context, key string) error
}

// Scope decides which learners share a weight table.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeLearner Scope = "learner"
)

func (s Scope) Key(learnerID string) string {
	if s == ScopeLearner && learnerID != "" {
		return "learner:" + learnerID
	}
	return GlobalKey
}
