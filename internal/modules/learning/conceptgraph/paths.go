package conceptgraph

import (
	"container/heap"
	"math"
	"sort"
)

type Strategy string

const (
	BFS         Strategy = "bfs"
	DFS         Strategy = "dfs"
	Dijkstra    Strategy = "dijkstra"
	AStar       Strategy = "a_star"
	Topological Strategy = "topological"
)

func (s Strategy) Valid() bool {
	switch s {
	case BFS, DFS, Dijkstra, AStar, Topological:
		return true
	}
	return false
}

// FindLearningPath returns a concept sequence from one of starts to one of targets.
// Unknown ids are ignored; the bool is false when no target was reached. The
// topological strategy returns the whole admitted learn-order, starts included.
func (g *Graph) FindLearningPath(starts, targets []string, strategy Strategy) ([]string, bool) {
	starts = g.known(starts)
	targets = g.known(targets)
	if len(starts) == 0 || len(targets) == 0 {
		return nil, false
	}
	isTarget := make(map[string]bool, len(targets))
	for _, t := range targets {
		isTarget[t] = true
	}
	switch strategy {
	case DFS:
		return g.dfsPath(starts, isTarget)
	case Dijkstra:
		return g.dijkstraPath(starts, isTarget)
	case AStar:
		return g.aStarPath(starts, targets, isTarget)
	case Topological:
		return g.topologicalPath(starts, targets)
	default:
		return g.bfsPath(starts, isTarget)
	}
}

// PathCost sums the edge weights along consecutive concepts. The bool is false when
// two consecutive concepts are not joined by an edge.
func (g *Graph) PathCost(path []string) (float64, bool) {
	cost := 0.0
	for i := 1; i < len(path); i++ {
		e, ok := g.edges[edgeKey{path[i-1], path[i]}]
		if !ok {
			return cost, false
		}
		cost += e.Weight
	}
	return cost, true
}

func (g *Graph) known(ids []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if g.Has(id) && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func reconstruct(parent map[string]string, end string) []string {
	path := []string{end}
	for {
		p, ok := parent[path[len(path)-1]]
		if !ok {
			break
		}
		path = append(path, p)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (g *Graph) bfsPath(starts []string, isTarget map[string]bool) ([]string, bool) {
	parent := map[string]string{}
	visited := map[string]bool{}
	queue := make([]string, 0, len(starts))
	for _, s := range starts {
		if isTarget[s] {
			return []string{s}, true
		}
		visited[s] = true
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range g.sortedNeighbors(cur) {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			parent[nb] = cur
			if isTarget[nb] {
				return reconstruct(parent, nb), true
			}
			queue = append(queue, nb)
		}
	}
	return nil, false
}

func (g *Graph) dfsPath(starts []string, isTarget map[string]bool) ([]string, bool) {
	visited := map[string]bool{}
	var stack []string
	var walk func(string) bool
	walk = func(cur string) bool {
		visited[cur] = true
		stack = append(stack, cur)
		if isTarget[cur] {
			return true
		}
		for _, nb := range g.sortedNeighbors(cur) {
			if !visited[nb] && walk(nb) {
				return true
			}
		}
		stack = stack[:len(stack)-1]
		return false
	}
	for _, s := range starts {
		if visited[s] {
			continue
		}
		if walk(s) {
			return append([]string(nil), stack...), true
		}
	}
	return nil, false
}

type pqItem struct {
	id       string
	priority float64
	seq      int
}

type priorityQueue []pqItem

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x any)   { *q = append(*q, x.(pqItem)) }
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// bestFirst is shared by Dijkstra (zero heuristic) and A*.
func (g *Graph) bestFirst(starts []string, isTarget map[string]bool, h func(string) float64) ([]string, bool) {
	dist := map[string]float64{}
	parent := map[string]string{}
	done := map[string]bool{}
	pq := &priorityQueue{}
	seq := 0
	for _, s := range starts {
		dist[s] = 0
		heap.Push(pq, pqItem{id: s, priority: h(s), seq: seq})
		seq++
	}
	for pq.Len() > 0 {
		it := heap.Pop(pq).(pqItem)
		if done[it.id] {
			continue
		}
		done[it.id] = true
		if isTarget[it.id] {
			return reconstruct(parent, it.id), true
		}
		for _, nb := range g.sortedNeighbors(it.id) {
			if done[nb] {
				continue
			}
			nd := dist[it.id] + g.nodes[it.id].Neighbors[nb]
			if old, ok := dist[nb]; !ok || nd < old {
				dist[nb] = nd
				parent[nb] = it.id
				heap.Push(pq, pqItem{id: nb, priority: nd + h(nb), seq: seq})
				seq++
			}
		}
	}
	return nil, false
}

func (g *Graph) dijkstraPath(starts []string, isTarget map[string]bool) ([]string, bool) {
	return g.bestFirst(starts, isTarget, func(string) float64 { return 0 })
}

// aStarPath scales the unweighted hop distance to the nearest target by the
// smallest edge weight so the heuristic never overestimates. Nodes that cannot
// reach a target fall back to the largest possible hop count.
func (g *Graph) aStarPath(starts, targets []string, isTarget map[string]bool) ([]string, bool) {
	hops := g.hopsToTargets(targets)
	minW := g.minEdgeWeight()
	fallback := float64(len(g.nodes)) * minW
	return g.bestFirst(starts, isTarget, func(id string) float64 {
		if d, ok := hops[id]; ok {
			return float64(d) * minW
		}
		return fallback
	})
}

// hopsToTargets runs a reverse BFS from every target over all edges.
func (g *Graph) hopsToTargets(targets []string) map[string]int {
	dist := map[string]int{}
	queue := []string{}
	for _, t := range targets {
		dist[t] = 0
		queue = append(queue, t)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, prev := range sortedKeys(g.reverse[cur]) {
			if _, seen := dist[prev]; seen {
				continue
			}
			dist[prev] = dist[cur] + 1
			queue = append(queue, prev)
		}
	}
	return dist
}

func (g *Graph) minEdgeWeight() float64 {
	minW := math.Inf(1)
	for _, e := range g.edges {
		if e.Weight < minW {
			minW = e.Weight
		}
	}
	if math.IsInf(minW, 1) {
		return 0
	}
	return minW
}

// topologicalPath grows the start set by admitting any concept whose full
// prerequisite set is already admitted. Growth is limited to the targets, the
// starts and their transitive prerequisites. A start is emitted only once its
// own prerequisites are in the order. When no neighbor of the admitted set is
// admissible, foundational concepts still needed are admitted next.
func (g *Graph) topologicalPath(starts, targets []string) ([]string, bool) {
	needed := map[string]bool{}
	for _, id := range append(append([]string(nil), targets...), starts...) {
		needed[id] = true
		for _, p := range g.GetPrerequisites(id) {
			needed[p] = true
		}
	}
	included := map[string]bool{}
	order := make([]string, 0, len(needed))
	admissible := func(id string) bool {
		if included[id] || !needed[id] {
			return false
		}
		for pre := range g.nodes[id].IncomingEdges {
			if !included[pre] {
				return false
			}
		}
		return true
	}
	pending := append([]string(nil), starts...)
	sort.SliceStable(pending, func(i, j int) bool {
		return g.PrerequisiteDepth(pending[i]) < g.PrerequisiteDepth(pending[j])
	})
	for progressed := true; progressed; {
		progressed = false
		rest := pending[:0]
		for _, s := range pending {
			if admissible(s) {
				included[s] = true
				order = append(order, s)
				progressed = true
			} else if !included[s] {
				rest = append(rest, s)
			}
		}
		pending = rest
	}
	allTargets := func() bool {
		for _, t := range targets {
			if !included[t] {
				return false
			}
		}
		return true
	}

	for !allTargets() {
		frontier := map[string]bool{}
		for _, id := range order {
			for nb := range g.nodes[id].Neighbors {
				if admissible(nb) {
					frontier[nb] = true
				}
			}
		}
		if len(frontier) == 0 {
			for id := range needed {
				if admissible(id) {
					frontier[id] = true
				}
			}
		}
		if len(frontier) == 0 {
			break
		}
		batch := sortedKeys(frontier)
		sort.SliceStable(batch, func(i, j int) bool {
			return g.PrerequisiteDepth(batch[i]) < g.PrerequisiteDepth(batch[j])
		})
		for _, id := range batch {
			if admissible(id) {
				included[id] = true
				order = append(order, id)
			}
		}
	}
	return order, allTargets()
}
