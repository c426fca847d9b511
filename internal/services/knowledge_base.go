package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"github.com/yungbote/neurobridge-adaptive/internal/data/repos"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/conceptgraph"
	"github.com/yungbote/neurobridge-adaptive/internal/observability"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

// ConceptSource is a knowledge base the concept graph is built from.
type ConceptSource interface {
	ListConcepts(ctx context.Context) ([]types.ConceptNode, error)
}

type repoConceptSource struct {
	repo repos.ConceptRepo
	tx   *gorm.DB
}

// RepoConceptSource reads concepts from the relational store.
func RepoConceptSource(repo repos.ConceptRepo) ConceptSource {
	return repoConceptSource{repo: repo}
}

func (s repoConceptSource) ListConcepts(ctx context.Context) ([]types.ConceptNode, error) {
	return s.repo.ListConcepts(ctx, s.tx)
}

type RefreshResult struct {
	Concepts int           `json:"concepts"`
	Edges    int           `json:"edges"`
	Rejected int           `json:"rejected"`
	Duration time.Duration `json:"duration"`
	Kept     bool          `json:"kept"`
}

// KnowledgeBaseService owns the process-wide concept graph. Readers get an
// immutable snapshot; refreshes build a new graph and swap it in.
type KnowledgeBaseService struct {
	log      *logger.Logger
	source   ConceptSource
	metrics  *observability.Metrics
	interval time.Duration

	graph       atomic.Pointer[conceptgraph.Graph]
	refreshedAt atomic.Int64
	group       singleflight.Group
}

func NewKnowledgeBaseService(baseLog *logger.Logger, source ConceptSource, metrics *observability.Metrics, interval time.Duration) *KnowledgeBaseService {
	s := &KnowledgeBaseService{
		log:      baseLog.With("service", "KnowledgeBaseService"),
		source:   source,
		metrics:  metrics,
		interval: interval,
	}
	s.graph.Store(conceptgraph.New(baseLog))
	return s
}

// Current implements graphrec.GraphProvider.
func (s *KnowledgeBaseService) Current() *conceptgraph.Graph { return s.graph.Load() }

func (s *KnowledgeBaseService) RefreshedAt() time.Time {
	ns := s.refreshedAt.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// Refresh rebuilds the graph from the source. Concurrent callers share one
// rebuild. On failure, or when the source is empty while a graph is loaded,
// the current graph stays in place.
func (s *KnowledgeBaseService) Refresh(ctx context.Context) (RefreshResult, error) {
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return RefreshResult{}, err
	}
	return v.(RefreshResult), nil
}

func (s *KnowledgeBaseService) refresh(ctx context.Context) (RefreshResult, error) {
	start := time.Now()
	concepts, err := s.source.ListConcepts(ctx)
	if err != nil {
		s.metrics.ObserveGraphRefresh("error", time.Since(start))
		s.log.Error("knowledge base refresh failed", "error", err)
		return RefreshResult{}, fmt.Errorf("list concepts: %w", err)
	}
	if len(concepts) == 0 && s.Current().Len() > 0 {
		s.metrics.ObserveGraphRefresh("kept", time.Since(start))
		s.log.Warn("knowledge base returned no concepts; keeping current graph", "concepts", s.Current().Len())
		return RefreshResult{Concepts: s.Current().Len(), Edges: s.Current().EdgeCount(), Kept: true, Duration: time.Since(start)}, nil
	}

	g := conceptgraph.New(s.log)
	rejected := g.BuildFromConcepts(concepts)
	s.graph.Store(g)
	s.refreshedAt.Store(time.Now().UnixNano())

	res := RefreshResult{Concepts: g.Len(), Edges: g.EdgeCount(), Rejected: rejected, Duration: time.Since(start)}
	s.metrics.ObserveGraphRefresh("ok", res.Duration)
	s.metrics.SetGraphSize(res.Concepts, res.Edges)
	s.log.Info("knowledge base refreshed", "concepts", res.Concepts, "edges", res.Edges, "rejected", res.Rejected)
	return res, nil
}

// Run refreshes on the configured interval until ctx is done. A non-positive
// interval disables periodic refresh.
func (s *KnowledgeBaseService) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("periodic refresh failed", "error", err)
			}
		}
	}
}
