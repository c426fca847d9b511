package conceptgraph

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/apierr"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

func chain() *Graph {
	g := New(logger.Nop())
	g.BuildFromConcepts([]learning.ConceptNode{
		{ID: "A", Name: "Counting"},
		{ID: "B", Name: "Addition", Prerequisites: []string{"A"}},
		{ID: "C", Name: "Multiplication", Prerequisites: []string{"B"}},
	})
	return g
}

// randomDAG declares prerequisites only on lower-numbered concepts so it is acyclic.
func randomDAG(seed uint64, n int) []learning.ConceptNode {
	r := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]learning.ConceptNode, n)
	for i := 0; i < n; i++ {
		c := learning.ConceptNode{ID: fmt.Sprintf("c%02d", i)}
		for j := 0; j < i; j++ {
			if r.Float64() < 0.15 {
				c.Prerequisites = append(c.Prerequisites, fmt.Sprintf("c%02d", j))
			}
		}
		for j := 0; j < n; j++ {
			if j != i && r.Float64() < 0.05 {
				c.Related = append(c.Related, fmt.Sprintf("c%02d", j))
			}
		}
		out[i] = c
	}
	return out
}

func declaredClosure(concepts []learning.ConceptNode, id string) []string {
	byID := map[string]learning.ConceptNode{}
	for _, c := range concepts {
		byID[c.ID] = c
	}
	seen := map[string]bool{}
	var walk func(string)
	walk = func(cur string) {
		for _, p := range byID[cur].Prerequisites {
			if !seen[p] {
				seen[p] = true
				walk(p)
			}
		}
	}
	walk(id)
	return learning.SortedKeys(seen)
}

func TestGetPrerequisitesIsTransitiveClosure(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		concepts := randomDAG(seed, 30)
		g := New(logger.Nop())
		if rejected := g.BuildFromConcepts(concepts); rejected != 0 {
			t.Fatalf("seed %d: rejected %d edges", seed, rejected)
		}
		for _, c := range concepts {
			got := g.GetPrerequisites(c.ID)
			want := declaredClosure(concepts, c.ID)
			if fmt.Sprint(got) != fmt.Sprint(want) {
				t.Fatalf("seed %d concept %s: got %v want %v", seed, c.ID, got, want)
			}
			if len(c.Prerequisites) == 0 && len(got) != 0 {
				t.Fatalf("seed %d concept %s: expected no prerequisites, got %v", seed, c.ID, got)
			}
		}
	}
}

func TestGetDependents(t *testing.T) {
	g := chain()
	if got := g.GetDependents("A"); fmt.Sprint(got) != "[B C]" {
		t.Fatalf("dependents of A: %v", got)
	}
	if got := g.GetDependents("C"); len(got) != 0 {
		t.Fatalf("dependents of C: %v", got)
	}
	if got := g.GetPrerequisites("missing"); len(got) != 0 {
		t.Fatalf("unknown concept: %v", got)
	}
}

func TestDijkstraNeverCostsMoreThanBFS(t *testing.T) {
	for seed := uint64(10); seed < 20; seed++ {
		g := New(logger.Nop())
		g.BuildFromConcepts(randomDAG(seed, 25))
		ids := g.IDs()
		for i := 0; i < len(ids); i += 3 {
			for j := len(ids) - 1; j > i; j -= 4 {
				bfs, okB := g.FindLearningPath([]string{ids[i]}, []string{ids[j]}, BFS)
				dij, okD := g.FindLearningPath([]string{ids[i]}, []string{ids[j]}, Dijkstra)
				if okB != okD {
					t.Fatalf("reachability differs %s->%s: bfs=%v dijkstra=%v", ids[i], ids[j], okB, okD)
				}
				if !okB {
					continue
				}
				cb, _ := g.PathCost(bfs)
				cd, _ := g.PathCost(dij)
				if cd > cb+1e-9 {
					t.Fatalf("%s->%s: dijkstra %v (%v) > bfs %v (%v)", ids[i], ids[j], cd, dij, cb, bfs)
				}
				astar, okA := g.FindLearningPath([]string{ids[i]}, []string{ids[j]}, AStar)
				if !okA {
					t.Fatalf("a* missed reachable target %s->%s", ids[i], ids[j])
				}
				if ca, _ := g.PathCost(astar); ca > cd+1e-9 {
					t.Fatalf("%s->%s: a* %v > dijkstra %v", ids[i], ids[j], ca, cd)
				}
				dfs, okF := g.FindLearningPath([]string{ids[i]}, []string{ids[j]}, DFS)
				if !okF || dfs[0] != ids[i] || dfs[len(dfs)-1] != ids[j] {
					t.Fatalf("dfs path %v", dfs)
				}
				if _, ok := g.PathCost(dfs); !ok {
					t.Fatalf("dfs path is not connected: %v", dfs)
				}
			}
		}
	}
}

func TestTopologicalScenario(t *testing.T) {
	g := chain()
	path, ok := g.FindLearningPath([]string{"A"}, []string{"C"}, Topological)
	if !ok || fmt.Sprint(path) != "[A B C]" {
		t.Fatalf("topological: ok=%v path=%v", ok, path)
	}
}

func TestTopologicalDefersStartsUntilPrerequisites(t *testing.T) {
	g := chain()
	cases := []struct {
		starts []string
		want   string
	}{
		{[]string{"B"}, "[A B C]"},
		{[]string{"B", "A"}, "[A B C]"},
		{[]string{"C", "A"}, "[A B C]"},
	}
	for _, tc := range cases {
		path, ok := g.FindLearningPath(tc.starts, []string{"C"}, Topological)
		if !ok || fmt.Sprint(path) != tc.want {
			t.Fatalf("starts %v: ok=%v path=%v want %s", tc.starts, ok, path, tc.want)
		}
	}
}

func TestTopologicalRespectsPrerequisites(t *testing.T) {
	for seed := uint64(30); seed < 36; seed++ {
		concepts := randomDAG(seed, 30)
		g := New(logger.Nop())
		g.BuildFromConcepts(concepts)
		roots := g.Roots()
		target := concepts[len(concepts)-1].ID
		order, ok := g.FindLearningPath(roots[:1], []string{target}, Topological)
		if !ok {
			t.Fatalf("seed %d: target %s not reached: %v", seed, target, order)
		}
		pos := map[string]int{}
		for i, id := range order {
			pos[id] = i
		}
		for i, id := range order {
			if i == 0 {
				continue
			}
			for _, pre := range g.DirectPrerequisites(id) {
				p, in := pos[pre]
				if !in || p > i {
					t.Fatalf("seed %d: %s placed before prerequisite %s: %v", seed, id, pre, order)
				}
			}
		}
	}
}

func TestFindLearningPathStrategies(t *testing.T) {
	g := New(logger.Nop())
	for _, id := range []string{"s", "a", "b", "t"} {
		g.AddConcept(learning.ConceptNode{ID: id})
	}
	// s->t directly is expensive, s->a->b->t is cheap.
	mustEdge(t, g, "s", "t", EdgePrerequisite, 5)
	mustEdge(t, g, "s", "a", EdgeRelated, 1)
	mustEdge(t, g, "a", "b", EdgeRelated, 1)
	mustEdge(t, g, "b", "t", EdgeRelated, 1)

	bfs, _ := g.FindLearningPath([]string{"s"}, []string{"t"}, BFS)
	if fmt.Sprint(bfs) != "[s t]" {
		t.Fatalf("bfs=%v", bfs)
	}
	for _, s := range []Strategy{Dijkstra, AStar} {
		p, _ := g.FindLearningPath([]string{"s"}, []string{"t"}, s)
		if fmt.Sprint(p) != "[s a b t]" {
			t.Fatalf("%s=%v", s, p)
		}
	}
	dfs, _ := g.FindLearningPath([]string{"s"}, []string{"t"}, DFS)
	if fmt.Sprint(dfs) != "[s a b t]" {
		t.Fatalf("dfs=%v", dfs)
	}
	if p, ok := g.FindLearningPath([]string{"t"}, []string{"s"}, BFS); ok || p != nil {
		t.Fatalf("reverse should be unreachable: %v", p)
	}
	if p, ok := g.FindLearningPath([]string{"s"}, []string{"s"}, Dijkstra); !ok || len(p) != 1 {
		t.Fatalf("start is target: %v", p)
	}
}

func mustEdge(t *testing.T, g *Graph, s, d string, typ EdgeType, w float64) {
	t.Helper()
	if err := g.AddEdge(s, d, typ, w); err != nil {
		t.Fatalf("AddEdge(%s,%s): %v", s, d, err)
	}
}

func TestAddEdgeRejectsBadReferences(t *testing.T) {
	g := chain()
	if err := g.AddEdge("A", "nope", EdgeRelated, 1); !errors.Is(err, apierr.ErrInvalidGraphReference) {
		t.Fatalf("unknown node: %v", err)
	}
	if err := g.AddEdge("A", "A", EdgePrerequisite, 1); !errors.Is(err, apierr.ErrInvalidGraphReference) {
		t.Fatalf("self loop: %v", err)
	}
	if err := g.AddEdge("A", "C", EdgeRelated, -1); !errors.Is(err, apierr.ErrConfiguration) {
		t.Fatalf("negative weight: %v", err)
	}

	g2 := New(logger.Nop())
	rejected := g2.BuildFromConcepts([]learning.ConceptNode{
		{ID: "x", Prerequisites: []string{"ghost", "x"}},
		{ID: "y", Prerequisites: []string{"x"}, Related: []string{"z"}},
	})
	if rejected != 2 {
		t.Fatalf("rejected=%d want 2", rejected)
	}
	if g2.Len() != 2 || g2.EdgeCount() != 1 {
		t.Fatalf("len=%d edges=%d", g2.Len(), g2.EdgeCount())
	}
}

func TestPrerequisiteEdgeNotDowngraded(t *testing.T) {
	g := New(logger.Nop())
	g.BuildFromConcepts([]learning.ConceptNode{
		{ID: "a"},
		{ID: "b", Prerequisites: []string{"a"}},
	})
	mustEdge(t, g, "a", "b", EdgeRelated, RelatedWeight)
	if e, _ := g.Edge("a", "b"); e.Type != EdgePrerequisite {
		t.Fatalf("edge downgraded to %s", e.Type)
	}
	if got := g.GetPrerequisites("b"); fmt.Sprint(got) != "[a]" {
		t.Fatalf("prerequisites=%v", got)
	}
}

func TestRelatedConceptsClustersCentrality(t *testing.T) {
	g := New(logger.Nop())
	g.BuildFromConcepts([]learning.ConceptNode{
		{ID: "hub"},
		{ID: "l1", Prerequisites: []string{"hub"}},
		{ID: "l2", Prerequisites: []string{"hub"}},
		{ID: "l3", Prerequisites: []string{"hub"}, Related: []string{"far"}},
		{ID: "far"},
		{ID: "island"},
	})

	related := g.GetRelatedConcepts("hub", 2)
	want := []RelatedConcept{{"l1", 1}, {"l2", 1}, {"l3", 1}, {"far", 2}}
	if fmt.Sprint(related) != fmt.Sprint(want) {
		t.Fatalf("related=%v", related)
	}
	onlyRelated := g.GetRelatedConcepts("far", 3, EdgeRelated)
	if fmt.Sprint(onlyRelated) != fmt.Sprint([]RelatedConcept{{"l3", 1}}) {
		t.Fatalf("related filter from far=%v", onlyRelated)
	}

	central := g.GetCentralConcepts(1)
	if len(central) != 1 || central[0].Concept.ID != "hub" || central[0].Centrality != 1 {
		t.Fatalf("central=%+v", central)
	}
	if g.Centrality("island") != 0 {
		t.Fatalf("island centrality=%v", g.Centrality("island"))
	}

	clusters := g.IdentifyClusters()
	if len(clusters) != 2 {
		t.Fatalf("clusters=%v", clusters)
	}
	if g.ClusterID("far") != g.ClusterID("hub") || g.ClusterID("island") == g.ClusterID("hub") {
		t.Fatalf("cluster ids: hub=%d far=%d island=%d", g.ClusterID("hub"), g.ClusterID("far"), g.ClusterID("island"))
	}
	members := clusters[g.ClusterID("hub")]
	if !sort.StringsAreSorted(members) || len(members) != 5 {
		t.Fatalf("members=%v", members)
	}
	if d := g.PrerequisiteDepth("l3"); d != 1 {
		t.Fatalf("depth=%d", d)
	}
}
