package graphrec

import (
	"fmt"
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/conceptgraph"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

const (
	masteryTarget   = 0.7
	overlapWeight   = 0.4
	priorityWeight  = 0.6
	directBonus     = 0.4
	inProgressBonus = 0.2
	qualityBonus    = 0.2
	fitBonus        = 0.2
	extensionDepth  = 2
	strategyName    = "graph_based"

	// mappingCacheSize bounds the content sets whose mappings are kept.
	mappingCacheSize = 32
)

// GraphProvider returns the graph snapshot readers should traverse.
type GraphProvider interface {
	Current() *conceptgraph.Graph
}

type staticGraph struct{ g *conceptgraph.Graph }

func (s staticGraph) Current() *conceptgraph.Graph { return s.g }

// Static wraps a fixed graph.
func Static(g *conceptgraph.Graph) GraphProvider { return staticGraph{g: g} }

type Engine struct {
	log      *logger.Logger
	graphs   GraphProvider
	mappings *lru.Cache[uint64, *contentMapping]
}

func New(log *logger.Logger, graphs GraphProvider) *Engine {
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[uint64, *contentMapping](mappingCacheSize)
	return &Engine{log: log.With("module", "GraphEngine"), graphs: graphs, mappings: cache}
}

// mappingFor returns the content mapping for this content set, rebuilding it
// when the set is new or was mapped against an older graph snapshot.
func (e *Engine) mappingFor(g *conceptgraph.Graph, items []learning.ContentItem) *contentMapping {
	fp := fingerprint(items)
	if m, ok := e.mappings.Get(fp); ok && m.graph == g {
		return m
	}
	m := buildMapping(g, items)
	e.mappings.Add(fp, m)
	e.log.Debug("content mapping rebuilt", "content", len(items), "concepts", g.Len())
	return m
}

func (e *Engine) graph() *conceptgraph.Graph {
	if e.graphs == nil {
		return nil
	}
	return e.graphs.Current()
}

// EstimatedLevel maps average score onto the difficulty scale: 1 + avg*2.
func EstimatedLevel(p *learning.LearnerProfile) float64 {
	if p == nil {
		return 1
	}
	return 1 + learning.Clamp01(p.AverageScore)*2
}

// TargetConcepts collects incomplete prerequisites of goal and in-progress
// concepts, concepts with mastery below 0.7, and goal concepts, sorted.
func (e *Engine) TargetConcepts(p *learning.LearnerProfile) []string {
	g := e.graph()
	if g == nil {
		return nil
	}
	return targetConcepts(g, p)
}

func targetConcepts(g *conceptgraph.Graph, p *learning.LearnerProfile) []string {
	targets := map[string]bool{}
	anchors := map[string]bool{}
	for _, c := range p.GoalConcepts() {
		if g.Has(c) && !p.HasCompletedConcept(c) {
			targets[c] = true
			anchors[c] = true
		}
	}
	if p != nil {
		for c, m := range p.MasteryStates {
			if m < masteryTarget && g.Has(c) && !p.HasCompletedConcept(c) {
				targets[c] = true
				anchors[c] = true
			}
		}
	}
	for c := range anchors {
		for _, pre := range g.DirectPrerequisites(c) {
			if !p.HasCompletedConcept(pre) {
				targets[pre] = true
			}
		}
	}
	return learning.SortedKeys(targets)
}

func startConcepts(g *conceptgraph.Graph, p *learning.LearnerProfile) []string {
	var starts []string
	for _, c := range p.CompletedConceptIDs() {
		if g.Has(c) {
			starts = append(starts, c)
		}
	}
	if len(starts) == 0 {
		starts = g.Roots()
	}
	return starts
}

// RecommendBasedOnConcepts scores content by overlap with the learning paths to
// the learner's target concepts, blended 40/60 with a priority score.
func (e *Engine) RecommendBasedOnConcepts(p *learning.LearnerProfile, candidates []learning.ContentItem, strategy conceptgraph.Strategy, limit int) []learning.Recommendation {
	g := e.graph()
	if g == nil || g.Len() == 0 || len(candidates) == 0 {
		return []learning.Recommendation{}
	}
	if !strategy.Valid() {
		strategy = conceptgraph.Topological
	}
	m := e.mappingFor(g, candidates)
	targets := targetConcepts(g, p)
	if len(targets) == 0 {
		return []learning.Recommendation{}
	}
	starts := startConcepts(g, p)
	isStart := map[string]bool{}
	for _, s := range starts {
		isStart[s] = true
	}

	onPath := map[string]bool{}
	for _, t := range targets {
		path, ok := g.FindLearningPath(starts, []string{t}, strategy)
		if !ok {
			// A target unreachable from the learner's position is still worth content.
			onPath[t] = true
			continue
		}
		needed := neededFor(g, t)
		for _, c := range path {
			if p.HasCompletedConcept(c) || (isStart[c] && !needed[c]) {
				continue
			}
			onPath[c] = true
		}
	}
	isTarget := map[string]bool{}
	for _, t := range targets {
		isTarget[t] = true
	}
	level := EstimatedLevel(p)

	out := []learning.Recommendation{}
	for _, it := range candidates {
		if p.HasCompletedContent(it.ID) {
			continue
		}
		concepts := m.concepts(it.ID)
		overlap := 0
		direct, inProgress := false, false
		for _, c := range concepts {
			if onPath[c] {
				overlap++
			}
			if isTarget[c] {
				direct = true
			}
			if mv, ok := p.Mastery(c); ok && mv > 0 && mv < masteryTarget {
				inProgress = true
			}
		}
		if overlap == 0 {
			continue
		}
		overlapScore := float64(overlap) / float64(len(onPath))
		priority := qualityBonus * it.Quality()
		priority += fitBonus * (1 - math.Min(math.Abs(float64(it.Difficulty)-level), 4)/4)
		if direct {
			priority += directBonus
		}
		if inProgress {
			priority += inProgressBonus
		}
		out = append(out, learning.Recommendation{
			Content:  it,
			Score:    learning.Clamp01(overlapWeight*overlapScore + priorityWeight*priority),
			Strategy: strategyName,
			Reason:   fmt.Sprintf("covers %d concept(s) on your learning path", overlap),
		})
	}
	return top(out, limit)
}

// RecommendPrerequisites returns content for the target's missing transitive
// prerequisites, most foundational first.
func (e *Engine) RecommendPrerequisites(p *learning.LearnerProfile, target learning.ContentItem, candidates []learning.ContentItem, limit int) []learning.Recommendation {
	g := e.graph()
	if g == nil || g.Len() == 0 {
		return []learning.Recommendation{}
	}
	m := e.mappingFor(g, append(append([]learning.ContentItem(nil), candidates...), target))
	missing := map[string]bool{}
	for _, c := range m.concepts(target.ID) {
		for _, pre := range g.GetPrerequisites(c) {
			if !p.HasCompletedConcept(pre) {
				missing[pre] = true
			}
		}
	}
	if len(missing) == 0 {
		return []learning.Recommendation{}
	}

	type scored struct {
		rec   learning.Recommendation
		depth int
	}
	var found []scored
	for _, it := range candidates {
		if it.ID == target.ID || p.HasCompletedContent(it.ID) {
			continue
		}
		depth := math.MaxInt
		hit := ""
		for _, c := range m.concepts(it.ID) {
			if missing[c] {
				if d := g.PrerequisiteDepth(c); d < depth {
					depth, hit = d, c
				}
			}
		}
		if hit == "" {
			continue
		}
		found = append(found, scored{
			rec: learning.Recommendation{
				Content:  it,
				Score:    it.Quality(),
				Strategy: strategyName,
				Reason:   fmt.Sprintf("prerequisite %s for %s", hit, target.Title),
			},
			depth: depth,
		})
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].depth != found[j].depth {
			return found[i].depth < found[j].depth
		}
		if found[i].rec.Score != found[j].rec.Score {
			return found[i].rec.Score > found[j].rec.Score
		}
		return found[i].rec.Content.ID < found[j].rec.Content.ID
	})
	out := make([]learning.Recommendation, 0, len(found))
	for _, f := range found {
		out = append(out, f.rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// RecommendExtendedLearning ranks content covering concepts within two hops of a
// just-completed item by the average centrality of those concepts.
func (e *Engine) RecommendExtendedLearning(p *learning.LearnerProfile, completed learning.ContentItem, candidates []learning.ContentItem, limit int) []learning.Recommendation {
	g := e.graph()
	if g == nil || g.Len() == 0 {
		return []learning.Recommendation{}
	}
	m := e.mappingFor(g, append(append([]learning.ContentItem(nil), candidates...), completed))
	own := map[string]bool{}
	for _, c := range m.concepts(completed.ID) {
		own[c] = true
	}
	next := map[string]bool{}
	for c := range own {
		for _, rc := range g.GetRelatedConcepts(c, extensionDepth,
			conceptgraph.EdgePrerequisite, conceptgraph.EdgeExtension, conceptgraph.EdgeRelated, conceptgraph.EdgeSimilar) {
			if !own[rc.ID] && !p.HasCompletedConcept(rc.ID) {
				next[rc.ID] = true
			}
		}
	}
	if len(next) == 0 {
		return []learning.Recommendation{}
	}
	out := []learning.Recommendation{}
	for _, it := range candidates {
		if it.ID == completed.ID || p.HasCompletedContent(it.ID) {
			continue
		}
		sum, n := 0.0, 0
		for _, c := range m.concepts(it.ID) {
			if next[c] {
				sum += g.Centrality(c)
				n++
			}
		}
		if n == 0 {
			continue
		}
		out = append(out, learning.Recommendation{
			Content:  it,
			Score:    sum / float64(n),
			Strategy: strategyName,
			Reason:   fmt.Sprintf("builds on %s", completed.Title),
		})
	}
	return top(out, limit)
}

type PathStep struct {
	ConceptID        string                `json:"concept_id"`
	ConceptName      string                `json:"concept_name"`
	Content          *learning.ContentItem `json:"content,omitempty"`
	EstimatedMinutes float64               `json:"estimated_minutes"`
}

type LearningPath struct {
	Steps        []PathStep `json:"steps"`
	TotalMinutes float64    `json:"total_minutes"`
	Concepts     []string   `json:"concepts"`
	// Missing lists targets the path could not reach.
	Missing []string `json:"missing,omitempty"`
}

// GenerateLearningPath orders the concepts needed for targets topologically and
// assigns each the best content item: unseen first, then by quality.
func (e *Engine) GenerateLearningPath(p *learning.LearnerProfile, targets []string, candidates []learning.ContentItem) LearningPath {
	path := LearningPath{Steps: []PathStep{}, Concepts: []string{}}
	g := e.graph()
	if g == nil {
		path.Missing = append([]string(nil), targets...)
		return path
	}
	var known []string
	for _, t := range targets {
		if g.Has(t) {
			known = append(known, t)
		} else {
			path.Missing = append(path.Missing, t)
		}
	}
	if len(known) == 0 {
		return path
	}
	m := e.mappingFor(g, candidates)
	byID := make(map[string]learning.ContentItem, len(candidates))
	for _, it := range candidates {
		byID[it.ID] = it
	}

	order, ok := g.FindLearningPath(startConcepts(g, p), known, conceptgraph.Topological)
	if !ok {
		reached := map[string]bool{}
		for _, c := range order {
			reached[c] = true
		}
		for _, t := range known {
			if !reached[t] {
				path.Missing = append(path.Missing, t)
			}
		}
	}

	needed := map[string]bool{}
	for _, t := range known {
		for c := range neededFor(g, t) {
			needed[c] = true
		}
	}
	used := map[string]bool{}
	for _, cid := range order {
		if p.HasCompletedConcept(cid) || !needed[cid] {
			continue
		}
		concept, _ := g.Concept(cid)
		step := PathStep{ConceptID: cid, ConceptName: concept.Name, EstimatedMinutes: concept.EstimatedMinutes}
		if best, found := bestContent(p, m.byConcept[cid], byID, used); found {
			used[best.ID] = true
			step.Content = &best
			if best.DurationMinutes > 0 {
				step.EstimatedMinutes = best.DurationMinutes
			}
		}
		path.Steps = append(path.Steps, step)
		path.Concepts = append(path.Concepts, cid)
		path.TotalMinutes += step.EstimatedMinutes
	}
	return path
}

// neededFor is the target plus its transitive prerequisites.
func neededFor(g *conceptgraph.Graph, target string) map[string]bool {
	out := map[string]bool{target: true}
	for _, c := range g.GetPrerequisites(target) {
		out[c] = true
	}
	return out
}

func bestContent(p *learning.LearnerProfile, ids []string, byID map[string]learning.ContentItem, used map[string]bool) (learning.ContentItem, bool) {
	var best learning.ContentItem
	found := false
	better := func(a, b learning.ContentItem) bool {
		seenA, seenB := p.HasCompletedContent(a.ID), p.HasCompletedContent(b.ID)
		if seenA != seenB {
			return !seenA
		}
		if a.Quality() != b.Quality() {
			return a.Quality() > b.Quality()
		}
		return a.ID < b.ID
	}
	for _, id := range ids {
		it, ok := byID[id]
		if !ok || used[id] {
			continue
		}
		if !found || better(it, best) {
			best, found = it, true
		}
	}
	return best, found
}

func top(items []learning.Recommendation, limit int) []learning.Recommendation {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Content.ID < items[j].Content.ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
