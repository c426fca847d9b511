package app

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-adaptive/internal/data/graph"
	"github.com/yungbote/neurobridge-adaptive/internal/data/state"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/adaptive"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/bandit"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/graphrec"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/progress"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/rules"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/weakness"
	"github.com/yungbote/neurobridge-adaptive/internal/observability"
	"github.com/yungbote/neurobridge-adaptive/internal/pkg/randx"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
	"github.com/yungbote/neurobridge-adaptive/internal/services"
)

type Services struct {
	KnowledgeBase  *services.KnowledgeBaseService
	Recommendation services.RecommendationService
	Bandit         bandit.Store
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	var source services.ConceptSource = services.RepoConceptSource(reposet.Concepts)
	if cfg.KnowledgeBaseSource == KnowledgeBaseNeo4j {
		source = graph.NewKnowledgeBase(clients.Neo4j, log)
	}
	kb := services.NewKnowledgeBaseService(log, source, metrics, cfg.KnowledgeBaseRefresh)

	store, err := wireBanditStore(log, cfg, clients)
	if err != nil {
		return Services{}, err
	}

	ruleSet, err := loadRules(log, cfg.RulesPath)
	if err != nil {
		return Services{}, err
	}
	graphEngine := graphrec.New(log, kb)
	engine, err := adaptive.New(log, store, []adaptive.Strategy{
		adaptive.NewRuleStrategy(rules.NewEngine(log, ruleSet)),
		adaptive.NewGraphStrategy(graphEngine, cfg.GraphPathStrategy),
		adaptive.NewContentStrategy(),
		adaptive.NewCollaborativeStrategy(reposet.Profiles),
	}, adaptive.Config{
		Bandit:        cfg.Bandit,
		Scope:         cfg.BanditScope,
		StateCapacity: cfg.LearnerStateCapacity,
		Rand:          randx.New(cfg.RandomSeed),
		Metrics:       metrics,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init adaptive engine: %w", err)
	}

	rec, err := services.NewRecommendationService(log, services.RecommendationDeps{
		DB:       db,
		Content:  reposet.Content,
		Profiles: reposet.Profiles,
		Events:   reposet.Events,
		Engine:   engine,
		Graph:    graphEngine,
		Detector: weakness.New(log, weakness.Config{DecayFactor: cfg.WeaknessDecayFactor}),
		Analyzer: progress.New(log, progress.Config{MaxSnapshots: cfg.ProgressMaxSnapshots}),
		Metrics:  metrics,
		Now:      time.Now,
	})
	if err != nil {
		return Services{}, err
	}
	return Services{KnowledgeBase: kb, Recommendation: rec, Bandit: store}, nil
}

func wireBanditStore(log *logger.Logger, cfg Config, clients Clients) (bandit.Store, error) {
	if cfg.BanditStore == BanditStoreRedis {
		store, err := state.NewRedisStore(log, clients.Redis, cfg.BanditKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("init redis bandit store: %w", err)
		}
		return store, nil
	}
	return state.NewMemoryStore(), nil
}

func loadRules(log *logger.Logger, path string) ([]rules.Rule, error) {
	if path == "" {
		return rules.DefaultRules(), nil
	}
	rs, err := rules.LoadRulesFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	log.Info("rules loaded", "path", path, "count", len(rs))
	return rs, nil
}
