package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/neo4jdb"
)

// KnowledgeBase stores concept nodes as (:Concept) with REQUIRES edges to
// prerequisites and RELATED_TO edges between related concepts.
type KnowledgeBase struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewKnowledgeBase(client *neo4jdb.Client, log *logger.Logger) *KnowledgeBase {
	return &KnowledgeBase{client: client, log: log.With("store", "Neo4jKnowledgeBase")}
}

func (kb *KnowledgeBase) ready() error {
	if kb == nil || kb.client == nil || kb.client.Driver == nil {
		return fmt.Errorf("neo4j knowledge base: client not configured")
	}
	return nil
}

func (kb *KnowledgeBase) ListConcepts(ctx context.Context) ([]types.ConceptNode, error) {
	if err := kb.ready(); err != nil {
		return nil, err
	}
	session := kb.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: kb.client.Database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Concept)
OPTIONAL MATCH (c)-[:REQUIRES]->(p:Concept)
WITH c, collect(DISTINCT p.id) AS prerequisites
OPTIONAL MATCH (c)-[:RELATED_TO]-(r:Concept)
RETURN c {.id, .name, .subject, .difficulty, .estimated_minutes, .importance} AS node,
       prerequisites,
       collect(DISTINCT r.id) AS related
ORDER BY node.id
`, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		nodes := make([]types.ConceptNode, 0, len(records))
		for _, rec := range records {
			raw, _ := rec.Get("node")
			props, _ := raw.(map[string]any)
			prereqs, _ := rec.Get("prerequisites")
			related, _ := rec.Get("related")
			nodes = append(nodes, nodeFromValues(props, prereqs, related))
		}
		return nodes, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j list concepts: %w", err)
	}
	return out.([]types.ConceptNode), nil
}

// UpsertConcepts merges the nodes and replaces their outgoing edges so the
// stored declarations match the input.
func (kb *KnowledgeBase) UpsertConcepts(ctx context.Context, nodes []types.ConceptNode) error {
	if err := kb.ready(); err != nil {
		return err
	}
	params := nodeParams(nodes, time.Now().UTC())
	if len(params) == 0 {
		return nil
	}
	session := kb.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: kb.client.Database,
	})
	defer session.Close(ctx)

	if res, err := session.Run(ctx, `CREATE CONSTRAINT concept_id_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.id IS UNIQUE`, nil); err != nil {
		kb.log.Warn("neo4j schema init failed (continuing)", "error", err)
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		steps := []string{`
UNWIND $nodes AS n
MERGE (c:Concept {id: n.id})
SET c.name = n.name,
    c.subject = n.subject,
    c.difficulty = n.difficulty,
    c.estimated_minutes = n.estimated_minutes,
    c.importance = n.importance,
    c.synced_at = n.synced_at
`, `
UNWIND $nodes AS n
MATCH (c:Concept {id: n.id})-[e:REQUIRES|RELATED_TO]->()
DELETE e
`, `
UNWIND $nodes AS n
UNWIND n.prerequisites AS pid
MATCH (c:Concept {id: n.id})
MERGE (p:Concept {id: pid})
MERGE (c)-[:REQUIRES]->(p)
`, `
UNWIND $nodes AS n
UNWIND n.related AS rid
MATCH (c:Concept {id: n.id})
MERGE (r:Concept {id: rid})
MERGE (c)-[:RELATED_TO]->(r)
`}
		for _, q := range steps {
			res, err := tx.Run(ctx, q, map[string]any{"nodes": params})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j upsert concepts: %w", err)
	}
	kb.log.Info("concepts synced to neo4j", "count", len(params))
	return nil
}

func nodeParams(nodes []types.ConceptNode, now time.Time) []map[string]any {
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		n = n.Normalized()
		if n.ID == "" {
			continue
		}
		out = append(out, map[string]any{
			"id":                n.ID,
			"name":              n.Name,
			"subject":           n.Subject,
			"difficulty":        int64(n.Difficulty),
			"estimated_minutes": n.EstimatedMinutes,
			"importance":        n.Importance,
			"prerequisites":     anyStrings(n.Prerequisites),
			"related":           anyStrings(n.Related),
			"synced_at":         now.Format(time.RFC3339Nano),
		})
	}
	return out
}

func nodeFromValues(props map[string]any, prereqs, related any) types.ConceptNode {
	n := types.ConceptNode{
		ID:               str(props["id"]),
		Name:             str(props["name"]),
		Subject:          str(props["subject"]),
		Difficulty:       int(num(props["difficulty"])),
		EstimatedMinutes: num(props["estimated_minutes"]),
		Importance:       num(props["importance"]),
		Prerequisites:    strs(prereqs),
		Related:          strs(related),
	}
	if n.Name == "" {
		n.Name = n.ID
	}
	return n.Normalized()
}

func anyStrings(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func num(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case float64:
		return x
	default:
		return 0
	}
}

func strs(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, x := range list {
		if s := str(x); s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
