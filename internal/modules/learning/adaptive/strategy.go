package adaptive

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/conceptgraph"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/graphrec"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/rules"
)

const (
	StrategyRule          = "rule_based"
	StrategyGraph         = "graph_based"
	StrategyContent       = "content_based"
	StrategyCollaborative = "collaborative"
)

// Input is what every strategy sees for one recommendation call.
type Input struct {
	Profile    *learning.LearnerProfile
	Candidates []learning.ContentItem
	Limit      int
}

type Result struct {
	Items    []learning.Recommendation
	Metadata map[string]any
}

// Strategy produces ranked candidates. Implementations must not mutate Input.
type Strategy interface {
	Name() string
	Recommend(ctx context.Context, in Input) (Result, error)
}

type ruleStrategy struct {
	engine *rules.Engine
}

func NewRuleStrategy(engine *rules.Engine) Strategy { return &ruleStrategy{engine: engine} }

func (s *ruleStrategy) Name() string { return StrategyRule }

func (s *ruleStrategy) Recommend(ctx context.Context, in Input) (Result, error) {
	res := s.engine.Recommend(in.Profile, in.Candidates, in.Limit)
	return Result{
		Items: res.Items,
		Metadata: map[string]any{
			"applied_rules": res.AppliedRules,
			"explanations":  res.Explanations,
			"difficulty":    s.engine.CalculateDifficultyScore(in.Profile),
		},
	}, nil
}

type graphStrategy struct {
	engine *graphrec.Engine
	path   conceptgraph.Strategy
}

// NewGraphStrategy recommends along learning paths found with path.
func NewGraphStrategy(engine *graphrec.Engine, path conceptgraph.Strategy) Strategy {
	if !path.Valid() {
		path = conceptgraph.Topological
	}
	return &graphStrategy{engine: engine, path: path}
}

func (s *graphStrategy) Name() string { return StrategyGraph }

func (s *graphStrategy) Recommend(ctx context.Context, in Input) (Result, error) {
	items := s.engine.RecommendBasedOnConcepts(in.Profile, in.Candidates, s.path, in.Limit)
	return Result{
		Items: items,
		Metadata: map[string]any{
			"path_strategy":   string(s.path),
			"target_concepts": s.engine.TargetConcepts(in.Profile),
		},
	}, nil
}

type contentStrategy struct{}

// NewContentStrategy scores by topic interest, content-type preference and
// concept overlap with content the learner already completed.
func NewContentStrategy() Strategy { return contentStrategy{} }

func (contentStrategy) Name() string { return StrategyContent }

func (contentStrategy) Recommend(ctx context.Context, in Input) (Result, error) {
	p := in.Profile
	var completed []learning.ContentItem
	for _, c := range in.Candidates {
		if p.HasCompletedContent(c.ID) {
			completed = append(completed, c)
		}
	}
	items := []learning.Recommendation{}
	for _, c := range in.Candidates {
		if p.HasCompletedContent(c.ID) {
			continue
		}
		interest := 0.0
		if p != nil {
			interest = math.Max(lookupFold(p.TopicInterest, c.Topic), lookupFold(p.TopicInterest, c.Subject))
		}
		pref := 0.0
		if p != nil {
			pref = lookupFold(p.ContentTypePreference, string(c.Type))
		}
		sim := 0.0
		for _, done := range completed {
			sim = math.Max(sim, jaccard(c.ConceptIDs, done.ConceptIDs))
		}
		score := learning.Clamp01(0.4*learning.Clamp01(interest) + 0.3*learning.Clamp01(pref) + 0.3*sim)
		if score == 0 {
			continue
		}
		items = append(items, learning.Recommendation{
			Content:  c,
			Score:    score,
			Strategy: StrategyContent,
			Reason:   "matches your interests and past content",
		})
	}
	return Result{Items: topN(items, in.Limit), Metadata: map[string]any{"completed_reference": len(completed)}}, nil
}

func lookupFold(m map[string]float64, key string) float64 {
	if key == "" || len(m) == 0 {
		return 0
	}
	if v, ok := m[key]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return 0
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	inter := 0
	union := len(set)
	seen := map[string]bool{}
	for _, y := range b {
		if seen[y] {
			continue
		}
		seen[y] = true
		if set[y] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// PeerSource supplies other learners' profiles for collaborative filtering.
type PeerSource interface {
	Peers(ctx context.Context, learnerID string, limit int) ([]*learning.LearnerProfile, error)
}

const (
	defaultPeerLimit = 50
	topPeers         = 10
)

type collaborativeStrategy struct {
	peers PeerSource
}

// NewCollaborativeStrategy weights content completed by similar learners. With
// no peers available it falls back to popularity times effectiveness.
func NewCollaborativeStrategy(peers PeerSource) Strategy {
	return &collaborativeStrategy{peers: peers}
}

func (s *collaborativeStrategy) Name() string { return StrategyCollaborative }

type similarPeer struct {
	profile *learning.LearnerProfile
	sim     float64
}

func (s *collaborativeStrategy) Recommend(ctx context.Context, in Input) (Result, error) {
	p := in.Profile
	var similar []similarPeer
	if s.peers != nil && p != nil {
		peers, err := s.peers.Peers(ctx, p.ID, defaultPeerLimit)
		if err != nil {
			return Result{}, fmt.Errorf("load peers: %w", err)
		}
		for _, peer := range peers {
			if peer == nil || peer.ID == p.ID {
				continue
			}
			if sim := cosine(p.MasteryStates, peer.MasteryStates); sim > 0 {
				similar = append(similar, similarPeer{profile: peer, sim: sim})
			}
		}
		sort.SliceStable(similar, func(i, j int) bool { return similar[i].sim > similar[j].sim })
		if len(similar) > topPeers {
			similar = similar[:topPeers]
		}
	}

	items := []learning.Recommendation{}
	if len(similar) == 0 {
		for _, c := range in.Candidates {
			if p.HasCompletedContent(c.ID) {
				continue
			}
			score := learning.Clamp01(c.Popularity) * learning.Clamp01(c.Effectiveness)
			if score == 0 {
				continue
			}
			items = append(items, learning.Recommendation{Content: c, Score: score, Strategy: StrategyCollaborative, Reason: "popular and effective with other learners"})
		}
		return Result{Items: topN(items, in.Limit), Metadata: map[string]any{"peers": 0, "fallback": "popularity"}}, nil
	}

	total := 0.0
	for _, sp := range similar {
		total += sp.sim
	}
	for _, c := range in.Candidates {
		if p.HasCompletedContent(c.ID) {
			continue
		}
		w := 0.0
		for _, sp := range similar {
			if sp.profile.HasCompletedContent(c.ID) {
				w += sp.sim
			}
		}
		if w == 0 {
			continue
		}
		items = append(items, learning.Recommendation{
			Content:  c,
			Score:    learning.Clamp01(w / total),
			Strategy: StrategyCollaborative,
			Reason:   "completed by learners similar to you",
		})
	}
	return Result{Items: topN(items, in.Limit), Metadata: map[string]any{"peers": len(similar)}}, nil
}

// cosine similarity over the union of concept keys.
func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	dot, na, nb := 0.0, 0.0, 0.0
	for k, x := range a {
		na += x * x
		if y, ok := b[k]; ok {
			dot += x * y
		}
	}
	for _, y := range b {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func topN(items []learning.Recommendation, n int) []learning.Recommendation {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Content.ID < items[j].Content.ID
	})
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items
}
