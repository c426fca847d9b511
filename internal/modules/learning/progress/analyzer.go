package progress

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

const (
	DefaultMaxSnapshots     = 365
	DefaultPlateauThreshold = 0.05
	DefaultPredictionDays   = 7

	minTrendPoints    = 3
	minVelocityPoints = 2
	minPlateauPoints  = 5
	stableSlope       = 0.01
	maxConfidence     = 0.95
	recentWindow      = 7 * 24 * time.Hour
	highEngagement    = 0.7
	mediumEngagement  = 0.4
	streakSaturation  = 7.0
	confidencePerData = 0.1
)

type Config struct {
	MaxSnapshots int
	Now          func() time.Time
}

type Analyzer struct {
	log          *logger.Logger
	now          func() time.Time
	maxSnapshots int

	mu      sync.RWMutex
	history map[string][]Snapshot
}

func New(log *logger.Logger, cfg Config) *Analyzer {
	a := &Analyzer{
		log:          log.With("module", "ProgressAnalyzer"),
		now:          cfg.Now,
		maxSnapshots: cfg.MaxSnapshots,
		history:      map[string][]Snapshot{},
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.maxSnapshots <= 0 {
		a.maxSnapshots = DefaultMaxSnapshots
	}
	return a
}

// CreateSnapshot records the learner's current state. Accuracy is averaged over
// assessments from the last seven days, falling back to the profile average.
func (a *Analyzer) CreateSnapshot(p *learning.LearnerProfile, events []learning.LearningEvent) Snapshot {
	now := a.now()
	p = p.Clone().Ensure()
	if p == nil {
		p = learning.NewLearnerProfile("")
	}

	var recentScores, recentEngagement []float64
	totalSeconds := 0.0
	for _, e := range events {
		totalSeconds += math.Max(0, e.DurationSeconds)
		if now.Sub(e.OccurredAt) > recentWindow {
			continue
		}
		if e.Scored() {
			recentScores = append(recentScores, learning.Clamp01(e.Score))
		}
		if e.Engagement > 0 {
			recentEngagement = append(recentEngagement, learning.Clamp01(e.Engagement))
		}
	}
	accuracy := learning.Clamp01(p.AverageScore)
	if len(recentScores) > 0 {
		accuracy = stat.Mean(recentScores, nil)
	}
	engagement := 0.0
	if len(recentEngagement) > 0 {
		engagement = stat.Mean(recentEngagement, nil)
	}
	score := 0.5*engagement + 0.5*math.Min(float64(p.LearningStreak)/streakSaturation, 1)

	mastery := make(map[string]float64, len(p.MasteryStates))
	for k, v := range p.MasteryStates {
		mastery[k] = learning.Clamp01(v)
	}
	snap := Snapshot{
		ID:               uuid.NewString(),
		LearnerID:        p.ID,
		Timestamp:        now,
		OverallMastery:   p.OverallMastery(),
		ConceptMastery:   mastery,
		ContentCompleted: len(p.CompletedContent),
		TimeSpentMinutes: totalSeconds / 60,
		AverageAccuracy:  accuracy,
		Streak:           p.LearningStreak,
		EngagementScore:  score,
		Engagement:       engagementLevel(score),
	}
	a.Record(snap)
	return snap
}

func engagementLevel(score float64) EngagementLevel {
	switch {
	case score >= highEngagement:
		return EngagementHigh
	case score >= mediumEngagement:
		return EngagementMedium
	default:
		return EngagementLow
	}
}

// Record appends an externally built snapshot, keeping the newest MaxSnapshots.
func (a *Analyzer) Record(s Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := append(a.history[s.LearnerID], s)
	if len(h) > a.maxSnapshots {
		h = append([]Snapshot(nil), h[len(h)-a.maxSnapshots:]...)
	}
	a.history[s.LearnerID] = h
}

// Snapshots returns the learner's snapshots within the last days (all when days <= 0).
func (a *Analyzer) Snapshots(learnerID string, days int) []Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	h := a.history[learnerID]
	if days <= 0 {
		return append([]Snapshot(nil), h...)
	}
	cutoff := a.now().Add(-time.Duration(days) * 24 * time.Hour)
	out := []Snapshot{}
	for _, s := range h {
		if !s.Timestamp.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// AnalyzeTrends regresses metric on snapshot index over the last days.
func (a *Analyzer) AnalyzeTrends(learnerID string, metric Metric, days int) Trend {
	snaps := a.Snapshots(learnerID, days)
	t := Trend{Metric: metric, DataPoints: len(snaps)}
	if len(snaps) < minTrendPoints {
		t.Reason = t.Err().Error()
		return t
	}
	xs := make([]float64, len(snaps))
	ys := make([]float64, len(snaps))
	for i, s := range snaps {
		xs[i] = float64(i)
		ys[i] = s.value(metric)
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	t.Sufficient = true
	t.Slope, t.Intercept, t.RSquared = beta, alpha, r2
	switch {
	case math.Abs(beta) < stableSlope:
		t.Direction = Stable
		t.Confidence = 0.5
	case beta > 0:
		t.Direction = Improving
		t.Confidence = math.Min(maxConfidence, math.Abs(beta)*10)
	default:
		t.Direction = Declining
		t.Confidence = math.Min(maxConfidence, math.Abs(beta)*10)
	}
	return t
}

// CalculateLearningVelocity is the first-to-last delta per elapsed day. Elapsed
// time is floored at one day.
func (a *Analyzer) CalculateLearningVelocity(learnerID string, days int) Velocity {
	snaps := a.Snapshots(learnerID, days)
	v := Velocity{DataPoints: len(snaps)}
	if len(snaps) < minVelocityPoints {
		v.Reason = v.Err().Error()
		return v
	}
	first, last := snaps[0], snaps[len(snaps)-1]
	elapsed := math.Max(1, last.Timestamp.Sub(first.Timestamp).Hours()/24)
	v.Sufficient = true
	v.Days = elapsed
	v.MasteryPerDay = (last.OverallMastery - first.OverallMastery) / elapsed
	v.ContentPerDay = float64(last.ContentCompleted-first.ContentCompleted) / elapsed
	v.MinutesPerDay = (last.TimeSpentMinutes - first.TimeSpentMinutes) / elapsed
	return v
}

// DetectPlateau flags mastery change below threshold across at least five snapshots.
func (a *Analyzer) DetectPlateau(learnerID string, days int, threshold float64) Plateau {
	if threshold <= 0 {
		threshold = DefaultPlateauThreshold
	}
	snaps := a.Snapshots(learnerID, days)
	p := Plateau{DataPoints: len(snaps)}
	if len(snaps) < minPlateauPoints {
		p.Reason = p.Err().Error()
		return p
	}
	vals := make([]float64, len(snaps))
	for i, s := range snaps {
		vals[i] = s.OverallMastery
	}
	p.Sufficient = true
	p.MasteryChange = vals[len(vals)-1] - vals[0]
	p.Variance = stat.PopVariance(vals, nil)
	p.Detected = math.Abs(p.MasteryChange) < threshold
	return p
}

// PredictFutureMastery extrapolates the latest mastery linearly by the
// all-history velocity.
func (a *Analyzer) PredictFutureMastery(learnerID string, daysAhead int) Prediction {
	v := a.CalculateLearningVelocity(learnerID, 0)
	pred := Prediction{DaysAhead: daysAhead, DataPoints: v.DataPoints}
	if !v.Sufficient {
		pred.Reason = pred.Err().Error()
		return pred
	}
	snaps := a.Snapshots(learnerID, 0)
	current := snaps[len(snaps)-1].OverallMastery
	pred.Sufficient = true
	pred.Current = current
	pred.VelocityPerDay = v.MasteryPerDay
	pred.Predicted = learning.Clamp01(current + v.MasteryPerDay*float64(daysAhead))
	pred.Confidence = math.Min(maxConfidence, float64(v.DataPoints)*confidencePerData)
	pred.DaysTo80 = daysToReach(current, 0.8, v.MasteryPerDay)
	pred.DaysTo90 = daysToReach(current, 0.9, v.MasteryPerDay)
	return pred
}

func daysToReach(current, target, velocity float64) *float64 {
	if current >= target {
		d := 0.0
		return &d
	}
	if velocity <= 0 {
		return nil
	}
	d := (target - current) / velocity
	return &d
}

// GenerateProgressReport bundles the latest snapshot with trends for every
// metric, velocity, plateau and a seven-day prediction over periodDays.
func (a *Analyzer) GenerateProgressReport(learnerID string, periodDays int) Report {
	r := Report{
		LearnerID:   learnerID,
		PeriodDays:  periodDays,
		GeneratedAt: a.now(),
		Trends:      make(map[Metric]Trend, len(AllMetrics)),
		Insights:    []string{},
	}
	snaps := a.Snapshots(learnerID, periodDays)
	if len(snaps) > 0 {
		cur := snaps[len(snaps)-1]
		r.Current = &cur
	}
	for _, m := range AllMetrics {
		r.Trends[m] = a.AnalyzeTrends(learnerID, m, periodDays)
	}
	r.Velocity = a.CalculateLearningVelocity(learnerID, periodDays)
	r.Plateau = a.DetectPlateau(learnerID, periodDays, DefaultPlateauThreshold)
	r.Prediction = a.PredictFutureMastery(learnerID, DefaultPredictionDays)
	r.Insights = insights(r)
	return r
}

func insights(r Report) []string {
	out := []string{}
	if r.Current == nil {
		return append(out, "No progress has been recorded yet.")
	}
	if mt := r.Trends[MetricMastery]; !mt.Sufficient {
		out = append(out, "More sessions are needed before trends can be measured.")
	} else {
		switch mt.Direction {
		case Improving:
			out = append(out, "Mastery is improving steadily.")
		case Declining:
			out = append(out, "Mastery is declining; reviewing earlier material may help.")
		default:
			out = append(out, "Mastery is holding steady.")
		}
	}
	if at := r.Trends[MetricAccuracy]; at.Sufficient && at.Direction == Declining {
		out = append(out, "Assessment accuracy is dropping.")
	}
	if r.Plateau.Detected {
		out = append(out, "Progress has plateaued; try new content types or harder material.")
	}
	if d := r.Prediction.DaysTo80; d != nil && *d > 0 {
		out = append(out, fmt.Sprintf("At the current pace 80%% mastery is about %.0f days away.", math.Ceil(*d)))
	}
	switch r.Current.Engagement {
	case EngagementHigh:
		out = append(out, "Engagement is high.")
	case EngagementLow:
		out = append(out, "Engagement is low; shorter sessions may help.")
	}
	return out
}
