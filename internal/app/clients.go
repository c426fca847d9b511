package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/neo4jdb"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/redisdb"
)

// Clients holds the optional external connections. A nil field means the
// backing service is not configured.
type Clients struct {
	Neo4j *neo4jdb.Client
	Redis *goredis.Client
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	needNeo4j := cfg.KnowledgeBaseSource == KnowledgeBaseNeo4j || cfg.Neo4j.URI != ""
	if needNeo4j {
		client, err := neo4jdb.New(ctx, log, cfg.Neo4j)
		if err != nil {
			return Clients{}, fmt.Errorf("init neo4j: %w", err)
		}
		if client == nil && cfg.KnowledgeBaseSource == KnowledgeBaseNeo4j {
			return Clients{}, fmt.Errorf("init neo4j: NEO4J_URI required for KNOWLEDGE_BASE_SOURCE=neo4j")
		}
		c.Neo4j = client
	}

	if cfg.BanditStore == BanditStoreRedis {
		rdb, err := redisdb.New(ctx, log, cfg.Redis)
		if err != nil {
			c.Close(ctx, log)
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		if rdb == nil {
			c.Close(ctx, log)
			return Clients{}, fmt.Errorf("init redis: REDIS_ADDR required for BANDIT_STORE=redis")
		}
		c.Redis = rdb
	}
	return c, nil
}

func (c Clients) Close(ctx context.Context, log *logger.Logger) {
	if c.Neo4j != nil {
		if err := c.Neo4j.Close(ctx); err != nil {
			log.Warn("neo4j close failed", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
}
