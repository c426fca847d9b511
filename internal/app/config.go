package app

import (
	"strings"
	"time"

	"github.com/yungbote/neurobridge-adaptive/internal/data/db"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/adaptive"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/bandit"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/conceptgraph"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/progress"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/weakness"
	"github.com/yungbote/neurobridge-adaptive/internal/observability"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/envutil"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/neo4jdb"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/redisdb"
)

const (
	KnowledgeBasePostgres = "postgres"
	KnowledgeBaseNeo4j    = "neo4j"

	BanditStoreMemory = "memory"
	BanditStoreRedis  = "redis"
)

type Config struct {
	LogMode string

	Store db.Config
	Neo4j neo4jdb.Config
	Redis redisdb.Config

	KnowledgeBaseSource  string
	KnowledgeBaseRefresh time.Duration

	BanditScope     bandit.Scope
	BanditStore     string
	BanditKeyPrefix string
	Bandit          bandit.Config
	RandomSeed      uint64

	LearnerStateCapacity int
	WeaknessDecayFactor  float64
	ProgressMaxSnapshots int
	RulesPath            string
	GraphPathStrategy    conceptgraph.Strategy

	MetricsEnabled bool
	MetricsAddr    string
	Tracing        observability.TracingConfig
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode: envutil.String("LOG_MODE", "development"),
		Store:   db.ConfigFromEnv(),
		Neo4j:   neo4jdb.ConfigFromEnv(),
		Redis:   redisdb.ConfigFromEnv(),

		KnowledgeBaseSource:  strings.ToLower(envutil.String("KNOWLEDGE_BASE_SOURCE", KnowledgeBasePostgres)),
		KnowledgeBaseRefresh: envutil.Seconds("KNOWLEDGE_BASE_REFRESH_SECONDS", 5*time.Minute),

		BanditScope:     bandit.Scope(strings.ToLower(envutil.String("BANDIT_SCOPE", string(bandit.ScopeGlobal)))),
		BanditStore:     strings.ToLower(envutil.String("BANDIT_STORE", BanditStoreMemory)),
		BanditKeyPrefix: envutil.String("REDIS_KEY_PREFIX", "adaptive:bandit:"),
		Bandit: bandit.Config{
			ExplorationRate: envutil.Float("BANDIT_EXPLORATION_RATE", bandit.DefaultExplorationRate, 0, 1),
			MinExploration:  envutil.Float("BANDIT_MIN_EXPLORATION", bandit.DefaultMinExploration, 0, 1),
			Decay:           envutil.Float("BANDIT_EXPLORATION_DECAY", bandit.DefaultDecay, 0, 1),
			LearningRate:    envutil.Float("BANDIT_LEARNING_RATE", bandit.DefaultLearningRate, 0, 1),
			Feedback:        bandit.FeedbackMode(strings.ToLower(envutil.String("BANDIT_FEEDBACK_MODE", string(bandit.FeedbackAll)))),
		},
		RandomSeed: uint64(envutil.Int64("RANDOM_SEED", time.Now().UnixNano())),

		LearnerStateCapacity: envutil.IntRange("LEARNER_STATE_CAPACITY", adaptive.DefaultStateCapacity, 1, 10_000_000),
		WeaknessDecayFactor:  envutil.Float("WEAKNESS_DECAY_FACTOR", weakness.DefaultDecayFactor, 0.01, 1),
		ProgressMaxSnapshots: envutil.IntRange("PROGRESS_MAX_SNAPSHOTS", progress.DefaultMaxSnapshots, 1, 100_000),
		RulesPath:            envutil.String("RULES_PATH", ""),
		GraphPathStrategy:    conceptgraph.Strategy(strings.ToLower(envutil.String("GRAPH_PATH_STRATEGY", string(conceptgraph.Topological)))),

		MetricsEnabled: envutil.Bool("METRICS_ENABLED", false),
		MetricsAddr:    envutil.String("METRICS_ADDR", ":9090"),
		Tracing:        observability.TracingConfigFromEnv("neurobridge-adaptive"),
	}

	switch cfg.KnowledgeBaseSource {
	case KnowledgeBasePostgres, KnowledgeBaseNeo4j:
	default:
		log.Warn("unknown knowledge base source; using postgres", "value", cfg.KnowledgeBaseSource)
		cfg.KnowledgeBaseSource = KnowledgeBasePostgres
	}
	switch cfg.BanditScope {
	case bandit.ScopeGlobal, bandit.ScopeLearner:
	default:
		log.Warn("unknown bandit scope; using global", "value", cfg.BanditScope)
		cfg.BanditScope = bandit.ScopeGlobal
	}
	if !cfg.Bandit.Feedback.Valid() {
		log.Warn("unknown bandit feedback mode; using all", "value", cfg.Bandit.Feedback)
		cfg.Bandit.Feedback = bandit.FeedbackAll
	}
	if !cfg.GraphPathStrategy.Valid() {
		log.Warn("unknown graph path strategy; using topological", "value", cfg.GraphPathStrategy)
		cfg.GraphPathStrategy = conceptgraph.Topological
	}
	switch cfg.BanditStore {
	case BanditStoreMemory, BanditStoreRedis:
	default:
		log.Warn("unknown bandit store; using memory", "value", cfg.BanditStore)
		cfg.BanditStore = BanditStoreMemory
	}
	return cfg
}
