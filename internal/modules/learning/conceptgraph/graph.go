// Package conceptgraph is the in-memory concept dependency graph. A Graph is built
// once and then treated as read-only; refreshes build a new Graph and swap it in.
package conceptgraph

import (
	"sort"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/apierr"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

type EdgeType string

const (
	EdgePrerequisite EdgeType = "prerequisite"
	EdgeRelated      EdgeType = "related"
	EdgeExtension    EdgeType = "extension"
	EdgeSimilar      EdgeType = "similar"
)

const (
	PrerequisiteWeight = 1.0
	RelatedWeight      = 0.5
)

// symmetric edge types are walked in both directions by neighborhood queries.
func (t EdgeType) symmetric() bool {
	return t == EdgeRelated || t == EdgeSimilar
}

type Edge struct {
	Source string
	Target string
	Type   EdgeType
	Weight float64
}

type Node struct {
	Concept learning.ConceptNode
	// Neighbors holds outgoing edges of every type.
	Neighbors map[string]float64
	// IncomingEdges holds prerequisite edges only: prerequisite id -> weight.
	IncomingEdges map[string]float64
	Centrality    float64
	ClusterID     int
}

type edgeKey struct{ src, dst string }

type Graph struct {
	log     *logger.Logger
	nodes   map[string]*Node
	edges   map[edgeKey]Edge
	reverse map[string]map[string]float64
}

func New(log *logger.Logger) *Graph {
	return &Graph{
		log:     log.With("module", "ConceptDependencyGraph"),
		nodes:   map[string]*Node{},
		edges:   map[edgeKey]Edge{},
		reverse: map[string]map[string]float64{},
	}
}

// AddConcept registers a node. Re-adding an id replaces the concept data and keeps
// existing edges.
func (g *Graph) AddConcept(c learning.ConceptNode) {
	c = c.Normalized()
	if c.ID == "" {
		return
	}
	if n, ok := g.nodes[c.ID]; ok {
		n.Concept = c
		return
	}
	g.nodes[c.ID] = &Node{
		Concept:       c,
		Neighbors:     map[string]float64{},
		IncomingEdges: map[string]float64{},
		ClusterID:     -1,
	}
}

// AddEdge rejects edges that reference unknown nodes or loop on one node.
// A prerequisite edge is never downgraded by a later related/similar edge.
func (g *Graph) AddEdge(source, target string, typ EdgeType, weight float64) error {
	src, okS := g.nodes[source]
	dst, okT := g.nodes[target]
	if !okS || !okT || source == target {
		return apierr.InvalidGraphReference(source, target)
	}
	if weight < 0 {
		return apierr.Configuration("edge %s -> %s has negative weight %v", source, target, weight)
	}
	key := edgeKey{source, target}
	if prev, exists := g.edges[key]; exists && prev.Type == EdgePrerequisite && typ != EdgePrerequisite {
		return nil
	}
	g.edges[key] = Edge{Source: source, Target: target, Type: typ, Weight: weight}
	src.Neighbors[target] = weight
	if typ == EdgePrerequisite {
		dst.IncomingEdges[source] = weight
	}
	if g.reverse[target] == nil {
		g.reverse[target] = map[string]float64{}
	}
	g.reverse[target][source] = weight
	return nil
}

// BuildFromConcepts adds every node, then one prerequisite edge per declared
// prerequisite and one related edge per declared relation. Bad references are
// logged and skipped. It returns the number of rejected edges.
func (g *Graph) BuildFromConcepts(concepts []learning.ConceptNode) int {
	for _, c := range concepts {
		g.AddConcept(c)
	}
	rejected := 0
	for _, raw := range concepts {
		c := raw.Normalized()
		for _, pre := range c.Prerequisites {
			if err := g.AddEdge(pre, c.ID, EdgePrerequisite, PrerequisiteWeight); err != nil {
				rejected++
				g.log.Warn("skipping prerequisite edge", "concept_id", c.ID, "prerequisite", pre, "error", err)
			}
		}
		for _, rel := range c.Related {
			if err := g.AddEdge(c.ID, rel, EdgeRelated, RelatedWeight); err != nil {
				rejected++
				g.log.Warn("skipping related edge", "concept_id", c.ID, "related", rel, "error", err)
			}
		}
	}
	g.RecomputeCentrality()
	g.IdentifyClusters()
	g.log.Debug("concept graph built", "concepts", len(g.nodes), "edges", len(g.edges), "rejected", rejected)
	return rejected
}

func (g *Graph) Len() int       { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return len(g.edges) }

func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *Graph) Concept(id string) (learning.ConceptNode, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return learning.ConceptNode{}, false
	}
	return n.Concept, true
}

// Node returns a copy of the node so callers cannot mutate the graph.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return copyNode(n), true
}

func (g *Graph) Edge(source, target string) (Edge, bool) {
	e, ok := g.edges[edgeKey{source, target}]
	return e, ok
}

func (g *Graph) Centrality(id string) float64 {
	if n, ok := g.nodes[id]; ok {
		return n.Centrality
	}
	return 0
}

// IDs returns every concept id in lexical order.
func (g *Graph) IDs() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Roots are the foundational concepts that have no prerequisites.
func (g *Graph) Roots() []string {
	out := []string{}
	for _, id := range g.IDs() {
		if len(g.nodes[id].IncomingEdges) == 0 {
			out = append(out, id)
		}
	}
	return out
}

func (g *Graph) DirectPrerequisites(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return sortedKeys(n.IncomingEdges)
}

// GetPrerequisites returns the full transitive prerequisite set of id.
func (g *Graph) GetPrerequisites(id string) []string {
	return g.closure(id, func(n *Node) []string { return sortedKeys(n.IncomingEdges) })
}

// GetDependents returns every concept that transitively requires id.
func (g *Graph) GetDependents(id string) []string {
	return g.closure(id, func(n *Node) []string {
		out := []string{}
		for _, next := range sortedKeys(n.Neighbors) {
			if e := g.edges[edgeKey{n.Concept.ID, next}]; e.Type == EdgePrerequisite {
				out = append(out, next)
			}
		}
		return out
	})
}

func (g *Graph) closure(id string, next func(*Node) []string) []string {
	start, ok := g.nodes[id]
	if !ok {
		return []string{}
	}
	seen := map[string]bool{id: true}
	queue := []*Node{start}
	out := []string{}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, nb := range next(n) {
			if seen[nb] {
				continue
			}
			seen[nb] = true
			out = append(out, nb)
			queue = append(queue, g.nodes[nb])
		}
	}
	sort.Strings(out)
	return out
}

// PrerequisiteDepth is the length of the longest prerequisite chain above id;
// foundational concepts have depth 0.
func (g *Graph) PrerequisiteDepth(id string) int {
	memo := map[string]int{}
	onStack := map[string]bool{}
	var depth func(string) int
	depth = func(cur string) int {
		if d, ok := memo[cur]; ok {
			return d
		}
		n, ok := g.nodes[cur]
		if !ok || onStack[cur] {
			return 0
		}
		onStack[cur] = true
		best := 0
		for pre := range n.IncomingEdges {
			if d := depth(pre) + 1; d > best {
				best = d
			}
		}
		onStack[cur] = false
		memo[cur] = best
		return best
	}
	return depth(id)
}

// RelatedConcept is a concept reached from a query concept and its hop distance.
type RelatedConcept struct {
	ID       string
	Distance int
}

// GetRelatedConcepts walks up to maxDepth hops. Outgoing edges are followed when
// their type passes the filter; related/similar edges are also walked backwards.
// An empty filter admits every type.
func (g *Graph) GetRelatedConcepts(id string, maxDepth int, filter ...EdgeType) []RelatedConcept {
	if _, ok := g.nodes[id]; !ok || maxDepth <= 0 {
		return []RelatedConcept{}
	}
	allow := map[EdgeType]bool{}
	for _, t := range filter {
		allow[t] = true
	}
	admits := func(t EdgeType) bool { return len(allow) == 0 || allow[t] }

	dist := map[string]int{id: 0}
	queue := []string{id}
	out := []RelatedConcept{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if dist[cur] >= maxDepth {
			continue
		}
		var next []string
		for _, nb := range sortedKeys(g.nodes[cur].Neighbors) {
			if admits(g.edges[edgeKey{cur, nb}].Type) {
				next = append(next, nb)
			}
		}
		for _, nb := range sortedKeys(g.reverse[cur]) {
			if e := g.edges[edgeKey{nb, cur}]; e.Type.symmetric() && admits(e.Type) {
				next = append(next, nb)
			}
		}
		for _, nb := range next {
			if _, seen := dist[nb]; seen {
				continue
			}
			dist[nb] = dist[cur] + 1
			out = append(out, RelatedConcept{ID: nb, Distance: dist[nb]})
			queue = append(queue, nb)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RecomputeCentrality sets each node's centrality to its distinct-neighbor degree
// (both directions) divided by the maximum degree in the graph.
func (g *Graph) RecomputeCentrality() {
	degree := make(map[string]int, len(g.nodes))
	maxDeg := 0
	for id, n := range g.nodes {
		seen := map[string]bool{}
		for nb := range n.Neighbors {
			seen[nb] = true
		}
		for nb := range g.reverse[id] {
			seen[nb] = true
		}
		degree[id] = len(seen)
		if len(seen) > maxDeg {
			maxDeg = len(seen)
		}
	}
	for id, n := range g.nodes {
		if maxDeg == 0 {
			n.Centrality = 0
			continue
		}
		n.Centrality = float64(degree[id]) / float64(maxDeg)
	}
}

// GetCentralConcepts returns the topN nodes by centrality, ties by id.
func (g *Graph) GetCentralConcepts(topN int) []Node {
	ids := g.IDs()
	sort.SliceStable(ids, func(i, j int) bool {
		return g.nodes[ids[i]].Centrality > g.nodes[ids[j]].Centrality
	})
	if topN > 0 && topN < len(ids) {
		ids = ids[:topN]
	}
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyNode(g.nodes[id]))
	}
	return out
}

// IdentifyClusters assigns a cluster id per weakly connected component, numbered in
// order of each component's smallest concept id. It mutates nodes and must run
// before the graph is shared with readers.
func (g *Graph) IdentifyClusters() map[int][]string {
	for _, n := range g.nodes {
		n.ClusterID = -1
	}
	clusters := map[int][]string{}
	next := 0
	for _, id := range g.IDs() {
		if g.nodes[id].ClusterID >= 0 {
			continue
		}
		members := []string{}
		g.nodes[id].ClusterID = next
		queue := []string{id}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			members = append(members, cur)
			for _, nb := range g.undirected(cur) {
				if g.nodes[nb].ClusterID < 0 {
					g.nodes[nb].ClusterID = next
					queue = append(queue, nb)
				}
			}
		}
		sort.Strings(members)
		clusters[next] = members
		next++
	}
	return clusters
}

func (g *Graph) ClusterID(id string) int {
	if n, ok := g.nodes[id]; ok {
		return n.ClusterID
	}
	return -1
}

func (g *Graph) undirected(id string) []string {
	seen := map[string]bool{}
	for nb := range g.nodes[id].Neighbors {
		seen[nb] = true
	}
	for nb := range g.reverse[id] {
		seen[nb] = true
	}
	return sortedKeys(seen)
}

func (g *Graph) sortedNeighbors(id string) []string {
	return sortedKeys(g.nodes[id].Neighbors)
}

func copyNode(n *Node) Node {
	out := *n
	out.Neighbors = make(map[string]float64, len(n.Neighbors))
	for k, v := range n.Neighbors {
		out.Neighbors[k] = v
	}
	out.IncomingEdges = make(map[string]float64, len(n.IncomingEdges))
	for k, v := range n.IncomingEdges {
		out.IncomingEdges[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
