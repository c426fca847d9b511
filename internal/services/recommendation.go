package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"github.com/yungbote/neurobridge-adaptive/internal/data/repos"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/adaptive"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/bandit"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/graphrec"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/progress"
	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/weakness"
	"github.com/yungbote/neurobridge-adaptive/internal/observability"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/apierr"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

const (
	// CompletionThreshold marks content completed when feedback reports at least this much.
	CompletionThreshold = 0.9
	eventLookback       = 30 * 24 * time.Hour
)

type RecommendationService interface {
	Recommend(ctx context.Context, learnerID string, filter repos.ContentFilter, maxResults int) (adaptive.Response, error)
	RecommendFor(ctx context.Context, profile *types.LearnerProfile, candidates []types.ContentItem, maxResults int) (adaptive.Response, error)
	GenerateLearningPath(ctx context.Context, learnerID string, targets []string, filter repos.ContentFilter) (graphrec.LearningPath, error)
	ProcessFeedback(ctx context.Context, fb adaptive.Feedback) (adaptive.FeedbackResult, error)

	AnalyzeWeaknesses(ctx context.Context, learnerID string) ([]weakness.Weakness, error)
	GetActiveWeaknesses(ctx context.Context, learnerID string, minSeverity, maxSeverity float64) []weakness.Weakness
	GetRemediationPlan(ctx context.Context, learnerID string, k int) weakness.RemediationPlan
	IdentifyWeaknessPatterns(ctx context.Context, learnerID string) []weakness.Pattern
	TrackRemediationProgress(ctx context.Context, learnerID, weaknessID string, score float64) (weakness.Weakness, error)

	CaptureSnapshot(ctx context.Context, learnerID string) (progress.Snapshot, error)
	GenerateProgressReport(ctx context.Context, learnerID string, periodDays int) progress.Report
	PredictFutureMastery(ctx context.Context, learnerID string, daysAhead int) progress.Prediction

	LearningPatterns(ctx context.Context, learnerID string) adaptive.LearningPatterns
	ShouldSuggestBreak(ctx context.Context, learnerID string) (bool, string)
	BanditState(ctx context.Context, learnerID string) (bandit.State, error)
	ResetBandit(ctx context.Context, learnerID string) error
}

type recommendationService struct {
	db       *gorm.DB
	log      *logger.Logger
	content  repos.ContentRepo
	profiles repos.ProfileRepo
	events   repos.EventRepo
	engine   *adaptive.Engine
	graph    *graphrec.Engine
	detector *weakness.Detector
	analyzer *progress.Analyzer
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

type RecommendationDeps struct {
	DB       *gorm.DB
	Content  repos.ContentRepo
	Profiles repos.ProfileRepo
	Events   repos.EventRepo
	Engine   *adaptive.Engine
	Graph    *graphrec.Engine
	Detector *weakness.Detector
	Analyzer *progress.Analyzer
	Metrics  *observability.Metrics
	Now      func() time.Time
}

func NewRecommendationService(baseLog *logger.Logger, deps RecommendationDeps) (RecommendationService, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("recommendation service: db required")
	case deps.Content == nil || deps.Profiles == nil || deps.Events == nil:
		return nil, fmt.Errorf("recommendation service: repositories required")
	case deps.Engine == nil || deps.Graph == nil || deps.Detector == nil || deps.Analyzer == nil:
		return nil, fmt.Errorf("recommendation service: engines required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &recommendationService{
		db:       deps.DB,
		log:      baseLog.With("service", "RecommendationService"),
		content:  deps.Content,
		profiles: deps.Profiles,
		events:   deps.Events,
		engine:   deps.Engine,
		graph:    deps.Graph,
		detector: deps.Detector,
		analyzer: deps.Analyzer,
		metrics:  deps.Metrics,
		tracer:   otel.Tracer("services"),
		now:      now,
	}, nil
}

// profile loads a learner, treating an unknown learner as new.
func (s *recommendationService) profile(ctx context.Context, tx *gorm.DB, learnerID string) (*types.LearnerProfile, error) {
	p, err := s.profiles.GetProfile(ctx, tx, learnerID)
	if err == nil {
		return p, nil
	}
	if apierr.IsNotFound(err) {
		return types.NewLearnerProfile(learnerID), nil
	}
	return nil, fmt.Errorf("load profile %s: %w", learnerID, err)
}

func (s *recommendationService) Recommend(ctx context.Context, learnerID string, filter repos.ContentFilter, maxResults int) (adaptive.Response, error) {
	ctx, span := s.tracer.Start(ctx, "services.Recommend", trace.WithAttributes(attribute.Int("max_results", maxResults)))
	defer span.End()

	p, err := s.profile(ctx, nil, learnerID)
	if err != nil {
		span.RecordError(err)
		return adaptive.Response{}, err
	}
	candidates, err := s.content.ListContent(ctx, nil, filter)
	if err != nil {
		span.RecordError(err)
		return adaptive.Response{}, fmt.Errorf("list content: %w", err)
	}
	return s.engine.Recommend(ctx, p, candidates, maxResults)
}

func (s *recommendationService) RecommendFor(ctx context.Context, profile *types.LearnerProfile, candidates []types.ContentItem, maxResults int) (adaptive.Response, error) {
	return s.engine.Recommend(ctx, profile, candidates, maxResults)
}

func (s *recommendationService) GenerateLearningPath(ctx context.Context, learnerID string, targets []string, filter repos.ContentFilter) (graphrec.LearningPath, error) {
	ctx, span := s.tracer.Start(ctx, "services.GenerateLearningPath", trace.WithAttributes(attribute.Int("targets", len(targets))))
	defer span.End()

	p, err := s.profile(ctx, nil, learnerID)
	if err != nil {
		return graphrec.LearningPath{}, err
	}
	if len(targets) == 0 {
		targets = p.GoalConcepts()
	}
	candidates, err := s.content.ListContent(ctx, nil, filter)
	if err != nil {
		return graphrec.LearningPath{}, fmt.Errorf("list content: %w", err)
	}
	return s.graph.GenerateLearningPath(p, targets, candidates), nil
}

// ProcessFeedback appends a feedback event and marks the content completed on
// the learner's profile when completion is high enough. The bandit is updated
// only after that transaction commits.
func (s *recommendationService) ProcessFeedback(ctx context.Context, fb adaptive.Feedback) (adaptive.FeedbackResult, error) {
	ctx, span := s.tracer.Start(ctx, "services.ProcessFeedback")
	defer span.End()

	res, err := s.engine.ProcessFeedbackCommit(ctx, fb, func(pre adaptive.FeedbackResult) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.recordFeedback(ctx, tx, fb, pre)
		})
	})
	if err != nil {
		span.RecordError(err)
		return adaptive.FeedbackResult{}, err
	}
	return res, nil
}

func (s *recommendationService) recordFeedback(ctx context.Context, tx *gorm.DB, fb adaptive.Feedback, pre adaptive.FeedbackResult) error {
	ev := &types.LearningEvent{
		LearnerID:  fb.LearnerID,
		Type:       types.EventFeedback,
		ContentID:  fb.ContentID,
		Score:      fb.AssessmentScore,
		Engagement: fb.Engagement,
		Metadata: map[string]any{
			"completion": fb.Completion,
			"reward":     pre.Reward,
			"strategy":   pre.Strategy,
		},
		OccurredAt: s.now(),
	}
	if err := s.events.AppendEvent(ctx, tx, ev); err != nil {
		return fmt.Errorf("append feedback event: %w", err)
	}
	if fb.Completion < CompletionThreshold || fb.ContentID == "" {
		return nil
	}
	p, err := s.profile(ctx, tx, fb.LearnerID)
	if err != nil {
		return err
	}
	if p.HasCompletedContent(fb.ContentID) {
		return nil
	}
	p.CompletedContent[fb.ContentID] = true
	p.UpdatedAt = s.now()
	return s.profiles.UpsertProfile(ctx, tx, p)
}

func (s *recommendationService) AnalyzeWeaknesses(ctx context.Context, learnerID string) ([]weakness.Weakness, error) {
	ctx, span := s.tracer.Start(ctx, "services.AnalyzeWeaknesses")
	defer span.End()

	p, err := s.profile(ctx, nil, learnerID)
	if err != nil {
		return nil, err
	}
	events, err := s.events.GetEvents(ctx, nil, learnerID, s.now().Add(-eventLookback))
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	ids := make([]string, 0, len(events))
	seen := map[string]bool{}
	for _, e := range events {
		if e.ContentID != "" && !seen[e.ContentID] {
			seen[e.ContentID] = true
			ids = append(ids, e.ContentID)
		}
	}
	var content []types.ContentItem
	if len(ids) > 0 {
		if content, err = s.content.GetByIDs(ctx, nil, ids); err != nil {
			return nil, fmt.Errorf("load content: %w", err)
		}
	}
	found := s.detector.Detect(p, events, content)
	bySource := map[weakness.Source]int{}
	for _, w := range found {
		bySource[w.Source]++
	}
	for src, n := range bySource {
		s.metrics.IncWeakness(string(src), n)
	}
	return found, nil
}

func (s *recommendationService) GetActiveWeaknesses(ctx context.Context, learnerID string, minSeverity, maxSeverity float64) []weakness.Weakness {
	return s.detector.GetActiveWeaknesses(learnerID, minSeverity, maxSeverity)
}

func (s *recommendationService) GetRemediationPlan(ctx context.Context, learnerID string, k int) weakness.RemediationPlan {
	return s.detector.GetRemediationPlan(learnerID, k)
}

func (s *recommendationService) IdentifyWeaknessPatterns(ctx context.Context, learnerID string) []weakness.Pattern {
	return s.detector.IdentifyWeaknessPatterns(learnerID)
}

func (s *recommendationService) TrackRemediationProgress(ctx context.Context, learnerID, weaknessID string, score float64) (weakness.Weakness, error) {
	return s.detector.TrackRemediationProgress(learnerID, weaknessID, score)
}

func (s *recommendationService) CaptureSnapshot(ctx context.Context, learnerID string) (progress.Snapshot, error) {
	p, err := s.profile(ctx, nil, learnerID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	events, err := s.events.GetEvents(ctx, nil, learnerID, time.Time{})
	if err != nil {
		return progress.Snapshot{}, fmt.Errorf("load events: %w", err)
	}
	return s.analyzer.CreateSnapshot(p, events), nil
}

func (s *recommendationService) GenerateProgressReport(ctx context.Context, learnerID string, periodDays int) progress.Report {
	return s.analyzer.GenerateProgressReport(learnerID, periodDays)
}

func (s *recommendationService) PredictFutureMastery(ctx context.Context, learnerID string, daysAhead int) progress.Prediction {
	return s.analyzer.PredictFutureMastery(learnerID, daysAhead)
}

func (s *recommendationService) LearningPatterns(ctx context.Context, learnerID string) adaptive.LearningPatterns {
	return s.engine.DetectLearningPatterns(learnerID)
}

func (s *recommendationService) ShouldSuggestBreak(ctx context.Context, learnerID string) (bool, string) {
	return s.engine.ShouldSuggestBreak(learnerID)
}

func (s *recommendationService) BanditState(ctx context.Context, learnerID string) (bandit.State, error) {
	return s.engine.BanditState(ctx, learnerID)
}

func (s *recommendationService) ResetBandit(ctx context.Context, learnerID string) error {
	if err := s.engine.ResetBandit(ctx, learnerID); err != nil {
		return err
	}
	s.log.Info("bandit state reset", "learner_id", learnerID)
	return nil
}
