package rules

import (
	"fmt"
	"math"
	"sort"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

const (
	baseScore          = 0.5
	alignmentWeight    = 0.2
	typeMatchBonus     = 0.15
	notCompletedBonus  = 0.1
	qualityWeight      = 0.1
	ignoredPenalty     = 0.2
	defaultRuleResults = 10
)

type Engine struct {
	log   *logger.Logger
	rules []Rule
}

// NewEngine keeps rules ordered by ascending priority (lower is more urgent).
// Malformed rules are logged and kept; their bad conditions evaluate false.
func NewEngine(log *logger.Logger, rules []Rule) *Engine {
	e := &Engine{log: log.With("module", "RuleEngine")}
	for _, err := range Validate(rules) {
		e.log.Warn("rule configuration problem", "error", err)
	}
	e.rules = append([]Rule(nil), rules...)
	sort.SliceStable(e.rules, func(i, j int) bool { return e.rules[i].Priority < e.rules[j].Priority })
	return e
}

func (e *Engine) Rules() []Rule { return append([]Rule(nil), e.rules...) }

func (e *Engine) GetApplicableRules(profile *learning.LearnerProfile) []Rule {
	view := NewProfileView(profile)
	out := []Rule{}
	for _, r := range e.rules {
		if r.Applies(view) {
			out = append(out, r)
		}
	}
	return out
}

// BaseDifficulty maps an average score onto five difficulty tiers.
func BaseDifficulty(avg float64) float64 {
	switch {
	case avg < 0.5:
		return learning.DifficultyBeginner
	case avg < 0.7:
		return learning.DifficultyElementary
	case avg < 0.8:
		return learning.DifficultyIntermediate
	case avg < 0.9:
		return learning.DifficultyAdvanced
	default:
		return learning.DifficultyExpert
	}
}

// CalculateDifficultyScore nudges the base tier by half a tier per unit of the
// most urgent applicable rule's adjustment.
func (e *Engine) CalculateDifficultyScore(profile *learning.LearnerProfile) float64 {
	avg := 0.0
	if profile != nil {
		avg = profile.AverageScore
	}
	d := BaseDifficulty(avg)
	if applicable := e.GetApplicableRules(profile); len(applicable) > 0 {
		d += 0.5 * float64(applicable[0].DifficultyAdjustment)
	}
	return learning.ClampRange(d, learning.DifficultyBeginner, learning.DifficultyExpert)
}

// ScoreContentForRule sums bonuses and penalties from a 0.5 base, clamped to [0,1].
func (e *Engine) ScoreContentForRule(content learning.ContentItem, rule Rule, profile *learning.LearnerProfile, targetDifficulty float64) float64 {
	score := baseScore
	gap := math.Abs(float64(content.Difficulty) - targetDifficulty)
	score += alignmentWeight * (1 - math.Min(gap, 4)/4)
	if len(rule.ContentTypes) > 0 && containsFold(rule.ContentTypes, string(content.Type)) {
		score += typeMatchBonus
	}
	if !profile.HasCompletedContent(content.ID) {
		score += notCompletedBonus
	}
	score += qualityWeight * content.Quality()
	if profile != nil && profile.IgnoredContent[content.ID] {
		score -= ignoredPenalty
	}
	return learning.Clamp01(score)
}

type Result struct {
	Items        []learning.Recommendation
	Explanations []string
	AppliedRules []string
}

// Recommend scores every candidate admitted by each applicable rule, keeps the
// best-scoring occurrence of each content id and returns the top maxResults.
func (e *Engine) Recommend(profile *learning.LearnerProfile, candidates []learning.ContentItem, maxResults int) Result {
	applicable := e.GetApplicableRules(profile)
	res := Result{Items: []learning.Recommendation{}, Explanations: []string{}, AppliedRules: []string{}}
	if len(applicable) == 0 {
		return res
	}
	target := e.CalculateDifficultyScore(profile)

	all := []learning.Recommendation{}
	for _, r := range applicable {
		res.AppliedRules = append(res.AppliedRules, r.ID)
		res.Explanations = append(res.Explanations, explanation(r))

		ruleItems := []learning.Recommendation{}
		for _, c := range candidates {
			if !r.acceptsType(string(c.Type)) || !r.acceptsSubject(c.Subject) || !r.acceptsTopic(c.Topic) {
				continue
			}
			ruleItems = append(ruleItems, learning.Recommendation{
				Content:  c,
				Score:    e.ScoreContentForRule(c, r, profile, target),
				Strategy: "rule_based",
				Reason:   fmt.Sprintf("rule %s: %s", r.ID, r.Name),
			})
		}
		sortByScore(ruleItems)
		limit := r.MaxResults
		if limit <= 0 {
			limit = defaultRuleResults
		}
		if len(ruleItems) > limit {
			ruleItems = ruleItems[:limit]
		}
		all = append(all, ruleItems...)
	}

	sortByScore(all)
	seen := map[string]bool{}
	for _, it := range all {
		if seen[it.Content.ID] {
			continue
		}
		seen[it.Content.ID] = true
		res.Items = append(res.Items, it)
		if maxResults > 0 && len(res.Items) >= maxResults {
			break
		}
	}
	return res
}

func explanation(r Rule) string {
	if r.Explanation != "" {
		return r.Explanation
	}
	return fmt.Sprintf("Rule %q matched", r.Name)
}

func sortByScore(items []learning.Recommendation) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
}
