package app

import (
	"context"
	"testing"

	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/bandit"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/conceptgraph"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

func localEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("RANDOM_SEED", "42")
}

func TestLoadConfigDefaultsAndFallbacks(t *testing.T) {
	localEnv(t)
	t.Setenv("BANDIT_SCOPE", "planet")
	t.Setenv("BANDIT_STORE", "floppy")
	t.Setenv("KNOWLEDGE_BASE_SOURCE", "papyrus")
	t.Setenv("GRAPH_PATH_STRATEGY", "dijkstra")
	t.Setenv("BANDIT_LEARNING_RATE", "5")
	t.Setenv("BANDIT_FEEDBACK_MODE", "sideways")
	t.Setenv("BANDIT_EXPLORATION_RATE", "0")
	t.Setenv("BANDIT_MIN_EXPLORATION", "0")
	cfg := LoadConfig(logger.Nop())
	if cfg.BanditScope != bandit.ScopeGlobal || cfg.BanditStore != BanditStoreMemory || cfg.KnowledgeBaseSource != KnowledgeBasePostgres {
		t.Fatalf("unexpected fallbacks %+v", cfg)
	}
	if cfg.GraphPathStrategy != conceptgraph.Dijkstra {
		t.Fatalf("path strategy = %q", cfg.GraphPathStrategy)
	}
	if cfg.Bandit.LearningRate != 1 || cfg.RandomSeed != 42 {
		t.Fatalf("bandit=%+v seed=%d", cfg.Bandit, cfg.RandomSeed)
	}
	if cfg.Bandit.Feedback != bandit.FeedbackAll {
		t.Fatalf("feedback mode = %q", cfg.Bandit.Feedback)
	}
	if got := cfg.Bandit.Sanitized(); got.ExplorationRate != 0 || got.MinExploration != 0 {
		t.Fatalf("pure exploit config rewritten: %+v", got)
	}
}

func TestAppWiresLocalStack(t *testing.T) {
	localEnv(t)
	t.Setenv("BANDIT_SCOPE", "learner")
	ctx := context.Background()
	a, err := NewWithConfig(ctx, logger.Nop(), LoadConfig(logger.Nop()))
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer a.Close()

	err = a.Repos.Concepts.UpsertConcepts(ctx, nil, []types.ConceptNode{
		{ID: "A", Name: "A"},
		{ID: "B", Name: "B", Prerequisites: []string{"A"}},
	})
	if err != nil {
		t.Fatalf("UpsertConcepts: %v", err)
	}
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if g := a.Services.KnowledgeBase.Current(); g.Len() != 2 || g.EdgeCount() != 1 {
		t.Fatalf("graph nodes=%d edges=%d", g.Len(), g.EdgeCount())
	}
	st, err := a.Services.Recommendation.BanditState(ctx, "l1")
	if err != nil {
		t.Fatalf("BanditState: %v", err)
	}
	if len(st.Weights) != 4 {
		t.Fatalf("expected four strategies, got %v", st.Weights)
	}
}

func TestNeo4jSourceRequiresURI(t *testing.T) {
	localEnv(t)
	t.Setenv("KNOWLEDGE_BASE_SOURCE", "neo4j")
	t.Setenv("NEO4J_URI", "")
	if _, err := NewWithConfig(context.Background(), logger.Nop(), LoadConfig(logger.Nop())); err == nil {
		t.Fatalf("expected error without NEO4J_URI")
	}
}
