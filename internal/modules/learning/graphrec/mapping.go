package graphrec

import (
	"hash/fnv"
	"sort"
	"strings"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/conceptgraph"
)

// contentMapping links content ids to graph concepts and back.
type contentMapping struct {
	graph       *conceptgraph.Graph
	fingerprint uint64
	byContent   map[string][]string
	byConcept   map[string][]string
}

func fingerprint(items []learning.ContentItem) uint64 {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID+"|"+strings.Join(it.ConceptIDs, ",")+"|"+it.Topic)
	}
	sort.Strings(ids)
	h := fnv.New64a()
	for _, id := range ids {
		_, _ = h.Write([]byte(id))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// buildMapping resolves declared concept ids that exist in the graph and, when a
// content item's topic equals a concept id or name (case-insensitive), that
// concept as well.
func buildMapping(g *conceptgraph.Graph, items []learning.ContentItem) *contentMapping {
	byName := map[string]string{}
	for _, id := range g.IDs() {
		byName[strings.ToLower(id)] = id
		if c, ok := g.Concept(id); ok && c.Name != "" {
			if _, taken := byName[strings.ToLower(c.Name)]; !taken {
				byName[strings.ToLower(c.Name)] = id
			}
		}
	}
	m := &contentMapping{
		graph:       g,
		fingerprint: fingerprint(items),
		byContent:   make(map[string][]string, len(items)),
		byConcept:   map[string][]string{},
	}
	for _, it := range items {
		seen := map[string]bool{}
		var concepts []string
		for _, cid := range it.ConceptIDs {
			if g.Has(cid) && !seen[cid] {
				seen[cid] = true
				concepts = append(concepts, cid)
			}
		}
		if topic := strings.ToLower(strings.TrimSpace(it.Topic)); topic != "" {
			if cid, ok := byName[topic]; ok && !seen[cid] {
				seen[cid] = true
				concepts = append(concepts, cid)
			}
		}
		m.byContent[it.ID] = concepts
		for _, cid := range concepts {
			m.byConcept[cid] = append(m.byConcept[cid], it.ID)
		}
	}
	return m
}

func (m *contentMapping) concepts(contentID string) []string {
	return m.byContent[contentID]
}
