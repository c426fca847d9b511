package adaptive

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/bandit"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/graphrec"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/scoring"
	"github.com/yungbote/neurobridge-adaptive/internal/observability"
	"github.com/yungbote/neurobridge-adaptive/internal/pkg/keylock"
	"github.com/yungbote/neurobridge-adaptive/internal/pkg/randx"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/ctxutil"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

const (
	DefaultStateCapacity = 10000
	DefaultHistoryLimit  = 200
	DefaultOtherLimit    = 10
	DefaultMaxResults    = 10

	preferredTypeBonus = 0.1
	varietyBonus       = 0.05
	minPatternEvents   = 4
	trendThreshold     = 0.1
)

type Config struct {
	Bandit        bandit.Config
	Scope         bandit.Scope
	StateCapacity int
	HistoryLimit  int
	// OtherLimit caps the items each non-selected strategy contributes.
	OtherLimit int
	Rand       randx.Source
	Now        func() time.Time
	Metrics    *observability.Metrics
}

type Engine struct {
	log        *logger.Logger
	cfg        Config
	store      bandit.Store
	strategies map[string]Strategy
	names      []string
	rng        randx.Source
	now        func() time.Time
	metrics    *observability.Metrics
	tracer     trace.Tracer

	locks *keylock.Locker
	// mu guards the cache; per-learner contexts are guarded by locks.
	mu       sync.Mutex
	contexts *lru.Cache[string, *LearnerContext]
}

func New(log *logger.Logger, store bandit.Store, strategies []Strategy, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("adaptive engine: bandit store required")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("adaptive engine: at least one strategy required")
	}
	cfg.Bandit = cfg.Bandit.Sanitized()
	if cfg.Scope != bandit.ScopeLearner {
		cfg.Scope = bandit.ScopeGlobal
	}
	if cfg.StateCapacity <= 0 {
		cfg.StateCapacity = DefaultStateCapacity
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.OtherLimit <= 0 {
		cfg.OtherLimit = DefaultOtherLimit
	}
	if cfg.Rand == nil {
		cfg.Rand = randx.New(0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cache, err := lru.New[string, *LearnerContext](cfg.StateCapacity)
	if err != nil {
		return nil, fmt.Errorf("adaptive engine: learner cache: %w", err)
	}
	e := &Engine{
		log:        log.With("module", "AdaptiveEngine"),
		cfg:        cfg,
		store:      store,
		strategies: make(map[string]Strategy, len(strategies)),
		rng:        cfg.Rand,
		now:        cfg.Now,
		metrics:    cfg.Metrics,
		tracer:     otel.Tracer("adaptive"),
		locks:      keylock.New(),
		contexts:   cache,
	}
	for _, s := range strategies {
		if _, dup := e.strategies[s.Name()]; dup {
			return nil, fmt.Errorf("adaptive engine: duplicate strategy %q", s.Name())
		}
		e.strategies[s.Name()] = s
		e.names = append(e.names, s.Name())
	}
	sort.Strings(e.names)
	return e, nil
}

func (e *Engine) Strategies() []string { return append([]string(nil), e.names...) }

// learnerContext returns the cached context, creating it on first use. Callers
// must hold the learner's key lock.
func (e *Engine) learnerContext(id string, now time.Time) *LearnerContext {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.contexts.Get(id); ok {
		return c
	}
	c := newLearnerContext(id, now)
	e.contexts.Add(id, c)
	return c
}

// Context returns a copy of the learner's current context.
func (e *Engine) Context(learnerID string) (LearnerContext, bool) {
	unlock := e.locks.Lock(learnerID)
	defer unlock()
	e.mu.Lock()
	c, ok := e.contexts.Get(learnerID)
	e.mu.Unlock()
	if !ok {
		return LearnerContext{}, false
	}
	return c.snapshot(), true
}

// ensure initializes empty state and registers strategies added since it was stored.
func (e *Engine) ensure(st *bandit.State) {
	if st.Empty() {
		*st = bandit.NewState(e.names, e.cfg.Bandit)
		return
	}
	st.Register(e.names)
}

type Response struct {
	Items    []learning.Recommendation `json:"items"`
	Reasons  []string                  `json:"reasons"`
	Metadata map[string]any            `json:"metadata"`
}

type strategyOutcome struct {
	result Result
	err    error
}

// Recommend runs every strategy, lets the bandit pick which one seeds the list,
// blends in the others by weight and applies the learner's context adaptations.
func (e *Engine) Recommend(ctx context.Context, profile *learning.LearnerProfile, candidates []learning.ContentItem, maxResults int) (Response, error) {
	if profile == nil {
		return Response{}, fmt.Errorf("recommend: profile required")
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	ctx, span := e.tracer.Start(ctx, "adaptive.Recommend", trace.WithAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("max_results", maxResults),
	))
	defer span.End()
	start := e.now()

	unlock := e.locks.Lock(profile.ID)
	defer unlock()

	lc := e.learnerContext(profile.ID, start)
	lc.touch(start)
	mood := lc.classify()
	adaptation, appliedAdaptations := adapt(lc)

	key := e.cfg.Scope.Key(profile.ID)
	var selected string
	var explored bool
	st, err := e.store.Update(ctx, key, func(s *bandit.State) error {
		e.ensure(s)
		selected, explored = s.Select(e.rng, e.cfg.Bandit)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Response{}, fmt.Errorf("select strategy: %w", err)
	}
	span.SetAttributes(attribute.String("strategy", selected), attribute.Bool("explored", explored))

	outcomes := e.runStrategies(ctx, Input{Profile: profile, Candidates: candidates, Limit: maxResults * 2})

	items := e.blend(selected, outcomes, st.Weights)
	items = e.applyAdaptation(items, profile, adaptation)
	if len(items) > maxResults {
		items = items[:maxResults]
	}
	for _, it := range items {
		lc.attribute(it.Content.ID, it.Strategy)
	}
	lc.LastStrategy = selected

	strategyErrors := map[string]string{}
	strategyMeta := map[string]any{}
	for name, o := range outcomes {
		if o.err != nil {
			strategyErrors[name] = o.err.Error()
			e.metrics.IncStrategyError(name)
			e.log.Warn("strategy failed", append(ctxutil.LogFields(ctx), "strategy", name, "error", o.err)...)
			continue
		}
		strategyMeta[name] = o.result.Metadata
	}

	reasons := []string{}
	if explored {
		reasons = append(reasons, fmt.Sprintf("Exploring the %s strategy.", selected))
	} else {
		reasons = append(reasons, fmt.Sprintf("Using the best performing %s strategy.", selected))
	}
	reasons = append(reasons, adaptation.Notes...)
	if o, ok := outcomes[StrategyRule]; ok && o.err == nil {
		if ex, ok := o.result.Metadata["explanations"].([]string); ok {
			reasons = append(reasons, ex...)
		}
	}

	e.metrics.ObserveRecommendation(selected, explored, len(items), e.now().Sub(start))
	e.metrics.SetBandit(string(e.cfg.Scope), st.Weights, st.ExplorationRate)

	return Response{
		Items:   items,
		Reasons: dedupe(reasons),
		Metadata: map[string]any{
			"selected_strategy": selected,
			"explored":          explored,
			"exploration_rate":  st.ExplorationRate,
			"weights":           st.Weights,
			"bandit_scope":      string(e.cfg.Scope),
			"mood":              string(mood),
			"adaptations":       appliedAdaptations,
			"adaptation":        adaptation,
			"strategy_errors":   strategyErrors,
			"strategies":        strategyMeta,
		},
	}, nil
}

// runStrategies evaluates every strategy concurrently. A failing or panicking
// strategy yields an error outcome and never aborts the others.
func (e *Engine) runStrategies(ctx context.Context, in Input) map[string]strategyOutcome {
	out := make(map[string]strategyOutcome, len(e.names))
	var mu sync.Mutex
	var g errgroup.Group
	for _, name := range e.names {
		s := e.strategies[name]
		g.Go(func() error {
			o := e.runOne(ctx, s, in)
			mu.Lock()
			out[name] = o
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (e *Engine) runOne(ctx context.Context, s Strategy, in Input) (o strategyOutcome) {
	defer func() {
		if r := recover(); r != nil {
			o = strategyOutcome{err: fmt.Errorf("panic: %v", r)}
			e.log.Error("strategy panicked", "strategy", s.Name(), "stack", string(debug.Stack()))
		}
	}()
	res, err := s.Recommend(ctx, in)
	return strategyOutcome{result: res, err: err}
}

// blend seeds the list with the selected strategy's items, then appends up to
// OtherLimit unseen items from each other strategy scaled by its weight.
func (e *Engine) blend(selected string, outcomes map[string]strategyOutcome, weights map[string]float64) []learning.Recommendation {
	seen := map[string]bool{}
	items := []learning.Recommendation{}
	if o, ok := outcomes[selected]; ok && o.err == nil {
		for _, it := range o.result.Items {
			if seen[it.Content.ID] {
				continue
			}
			seen[it.Content.ID] = true
			it.Strategy = selected
			items = append(items, it)
		}
	}
	others := make([]string, 0, len(e.names))
	for _, n := range e.names {
		if n != selected {
			others = append(others, n)
		}
	}
	sort.SliceStable(others, func(i, j int) bool { return weights[others[i]] > weights[others[j]] })
	for _, name := range others {
		o, ok := outcomes[name]
		if !ok || o.err != nil {
			continue
		}
		added := 0
		for _, it := range o.result.Items {
			if added >= e.cfg.OtherLimit {
				break
			}
			if seen[it.Content.ID] {
				continue
			}
			seen[it.Content.ID] = true
			it.Strategy = name
			it.Score = learning.Clamp01(it.Score * weights[name])
			items = append(items, it)
			added++
		}
	}
	return items
}

// applyAdaptation rescales scores for the adapted difficulty target and
// preferred types, optionally shuffling and adding a diversity bonus, then
// sorts by score.
func (e *Engine) applyAdaptation(items []learning.Recommendation, p *learning.LearnerProfile, a Adaptation) []learning.Recommendation {
	target := learning.ClampRange(graphrec.EstimatedLevel(p)+a.DifficultyDelta, learning.DifficultyBeginner, learning.DifficultyExpert)
	for i := range items {
		s := scoring.AdjustForDifficulty(items[i].Score, float64(items[i].Content.Difficulty), target)
		if a.prefers(items[i].Content.Type) {
			s += preferredTypeBonus
		}
		items[i].Score = learning.Clamp01(s)
	}
	if a.VarietyBoost {
		e.rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		cats := make([]scoring.Categorized, len(items))
		for i, it := range items {
			cats[i] = scoring.Categorized{ID: it.Content.ID, Category: string(it.Content.Type), Score: it.Score}
		}
		for i, c := range scoring.DiversityBonus(cats, varietyBonus) {
			items[i].Score = c.Score
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	return items
}

type Feedback struct {
	LearnerID       string  `json:"learner_id"`
	ContentID       string  `json:"content_id"`
	Engagement      float64 `json:"engagement"`
	Completion      float64 `json:"completion"`
	AssessmentScore float64 `json:"assessment_score"`
}

type FeedbackResult struct {
	Reward   float64            `json:"reward"`
	Strategy string             `json:"strategy"`
	Weights  map[string]float64 `json:"weights"`
	Mood     Mood               `json:"mood"`
}

// Reward blends the feedback signals: 0.3 engagement, 0.3 completion, 0.4 score.
func Reward(engagement, completion, score float64) float64 {
	return learning.Clamp01(0.3*learning.Clamp01(engagement) + 0.3*learning.Clamp01(completion) + 0.4*learning.Clamp01(score))
}

// ProcessFeedback records the signal in the learner's window and applies the
// reward to the bandit table.
func (e *Engine) ProcessFeedback(ctx context.Context, fb Feedback) (FeedbackResult, error) {
	return e.ProcessFeedbackCommit(ctx, fb, nil)
}

// ProcessFeedbackCommit resolves the credited strategy, then runs commit before
// anything is mutated. A commit error leaves the bandit table and the learner
// context untouched. The credited strategy is the one that produced the
// content, else the last selected one, else the current best.
func (e *Engine) ProcessFeedbackCommit(ctx context.Context, fb Feedback, commit func(FeedbackResult) error) (FeedbackResult, error) {
	if fb.LearnerID == "" {
		return FeedbackResult{}, fmt.Errorf("process feedback: learner id required")
	}
	ctx, span := e.tracer.Start(ctx, "adaptive.ProcessFeedback")
	defer span.End()

	now := e.now()
	reward := Reward(fb.Engagement, fb.Completion, fb.AssessmentScore)
	key := e.cfg.Scope.Key(fb.LearnerID)

	unlock := e.locks.Lock(fb.LearnerID)
	defer unlock()
	lc := e.learnerContext(fb.LearnerID, now)

	credited := lc.attribution[fb.ContentID]
	if credited == "" {
		credited = lc.LastStrategy
	}
	if _, ok := e.strategies[credited]; !ok {
		cur, _, err := e.store.Get(ctx, key)
		if err != nil {
			span.RecordError(err)
			return FeedbackResult{}, fmt.Errorf("load strategy weights: %w", err)
		}
		e.ensure(&cur)
		credited = cur.Best()
	}

	if commit != nil {
		if err := commit(FeedbackResult{Reward: reward, Strategy: credited, Mood: lc.Mood}); err != nil {
			span.RecordError(err)
			return FeedbackResult{}, err
		}
	}

	st, err := e.store.Update(ctx, key, func(s *bandit.State) error {
		e.ensure(s)
		s.Apply(credited, reward, fb.Engagement, e.cfg.Bandit)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if commit != nil {
			return FeedbackResult{}, fmt.Errorf("update strategy weights after feedback was recorded: %w", err)
		}
		return FeedbackResult{}, fmt.Errorf("update strategy weights: %w", err)
	}

	lc.touch(now)
	lc.recordScore(fb.AssessmentScore)
	lc.recordEngagement(fb.Engagement)
	lc.History = append(lc.History, FeedbackEvent{
		ContentID:       fb.ContentID,
		Strategy:        credited,
		Engagement:      learning.Clamp01(fb.Engagement),
		Completion:      learning.Clamp01(fb.Completion),
		AssessmentScore: learning.Clamp01(fb.AssessmentScore),
		Reward:          reward,
		At:              now,
	})
	if len(lc.History) > e.cfg.HistoryLimit {
		lc.History = append([]FeedbackEvent(nil), lc.History[len(lc.History)-e.cfg.HistoryLimit:]...)
	}
	mood := lc.classify()

	span.SetAttributes(attribute.String("strategy", credited), attribute.Float64("reward", reward))
	e.metrics.ObserveReward(credited, reward)
	e.metrics.SetBandit(string(e.cfg.Scope), st.Weights, st.ExplorationRate)
	e.log.Debug("feedback processed", "learner_id", fb.LearnerID, "strategy", credited, "reward", reward)

	return FeedbackResult{Reward: reward, Strategy: credited, Weights: st.Weights, Mood: mood}, nil
}

type LearningPatterns struct {
	Events            int     `json:"events"`
	AverageEngagement float64 `json:"average_engagement"`
	CompletionRate    float64 `json:"completion_rate"`
	AverageScore      float64 `json:"average_score"`
	// Trend compares the mean score of the second half of events with the first.
	Trend              string  `json:"trend"`
	TrendDelta         float64 `json:"trend_delta"`
	CurrentEngagement  float64 `json:"current_engagement"`
	Mood               Mood    `json:"mood"`
	SessionMinutes     float64 `json:"session_minutes"`
	PreferredStrategy  string  `json:"preferred_strategy,omitempty"`
	SufficientForTrend bool    `json:"sufficient_for_trend"`
}

func (e *Engine) DetectLearningPatterns(learnerID string) LearningPatterns {
	c, ok := e.Context(learnerID)
	pat := LearningPatterns{Trend: "insufficient_data", Mood: MoodNeutral}
	if !ok {
		return pat
	}
	pat.Mood = c.Mood
	pat.SessionMinutes = c.SessionDuration().Minutes()
	pat.Events = len(c.History)
	if pat.Events == 0 {
		return pat
	}
	var eng, comp, score []float64
	credit := map[string]float64{}
	for _, ev := range c.History {
		eng = append(eng, ev.Engagement)
		comp = append(comp, ev.Completion)
		score = append(score, ev.AssessmentScore)
		credit[ev.Strategy] += ev.Reward
	}
	pat.AverageEngagement, _ = average(eng)
	pat.CompletionRate, _ = average(comp)
	pat.AverageScore, _ = average(score)
	pat.CurrentEngagement = eng[len(eng)-1]
	best := math.Inf(-1)
	for _, name := range sortedKeys(credit) {
		if credit[name] > best {
			best, pat.PreferredStrategy = credit[name], name
		}
	}
	if pat.Events >= minPatternEvents {
		half := pat.Events / 2
		first, _ := average(score[:half])
		second, _ := average(score[half:])
		pat.SufficientForTrend = true
		pat.TrendDelta = second - first
		switch {
		case pat.TrendDelta > trendThreshold:
			pat.Trend = "improving"
		case pat.TrendDelta < -trendThreshold:
			pat.Trend = "declining"
		default:
			pat.Trend = "stable"
		}
	}
	return pat
}

// ShouldSuggestBreak is true after a long session, when the learner is
// frustrated, or when the last three engagement readings average below 0.3.
func (e *Engine) ShouldSuggestBreak(learnerID string) (bool, string) {
	c, ok := e.Context(learnerID)
	if !ok {
		return false, ""
	}
	if c.SessionDuration() >= breakSession {
		return true, "long session"
	}
	if c.Mood == MoodFrustrated {
		return true, "frustration detected"
	}
	if n := len(c.RecentEngagement); n >= 3 {
		if avg, _ := average(c.RecentEngagement[n-3:]); avg < 0.3 {
			return true, "low engagement"
		}
	}
	return false, ""
}

// BanditState returns the weight table that applies to learnerID.
func (e *Engine) BanditState(ctx context.Context, learnerID string) (bandit.State, error) {
	st, ok, err := e.store.Get(ctx, e.cfg.Scope.Key(learnerID))
	if err != nil {
		return bandit.State{}, err
	}
	if !ok {
		return bandit.NewState(e.names, e.cfg.Bandit), nil
	}
	return st, nil
}

// ResetBandit discards the weight table for learnerID's scope. The next call
// starts from equal weights.
func (e *Engine) ResetBandit(ctx context.Context, learnerID string) error {
	key := e.cfg.Scope.Key(learnerID)
	if err := e.store.Reset(ctx, key); err != nil {
		return fmt.Errorf("reset bandit %s: %w", key, err)
	}
	e.log.Info("bandit state reset", "key", key)
	return nil
}

func dedupe(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
