package progress

import (
	"time"

	"github.com/yungbote/neurobridge-adaptive/internal/platform/apierr"
)

type EngagementLevel string

const (
	EngagementHigh   EngagementLevel = "high"
	EngagementMedium EngagementLevel = "medium"
	EngagementLow    EngagementLevel = "low"
)

type Metric string

const (
	MetricMastery          Metric = "overall_mastery"
	MetricContentCompleted Metric = "content_completed"
	MetricTimeSpent        Metric = "time_spent"
	MetricAccuracy         Metric = "average_accuracy"
	MetricStreak           Metric = "streak"
)

var AllMetrics = []Metric{MetricMastery, MetricContentCompleted, MetricTimeSpent, MetricAccuracy, MetricStreak}

func (m Metric) Valid() bool {
	for _, x := range AllMetrics {
		if x == m {
			return true
		}
	}
	return false
}

type Snapshot struct {
	ID               string             `json:"id"`
	LearnerID        string             `json:"learner_id"`
	Timestamp        time.Time          `json:"timestamp"`
	OverallMastery   float64            `json:"overall_mastery"`
	ConceptMastery   map[string]float64 `json:"concept_mastery"`
	ContentCompleted int                `json:"content_completed"`
	TimeSpentMinutes float64            `json:"time_spent_minutes"`
	AverageAccuracy  float64            `json:"average_accuracy"`
	Streak           int                `json:"streak"`
	EngagementScore  float64            `json:"engagement_score"`
	Engagement       EngagementLevel    `json:"engagement"`
}

func (s Snapshot) value(m Metric) float64 {
	switch m {
	case MetricContentCompleted:
		return float64(s.ContentCompleted)
	case MetricTimeSpent:
		return s.TimeSpentMinutes
	case MetricAccuracy:
		return s.AverageAccuracy
	case MetricStreak:
		return float64(s.Streak)
	default:
		return s.OverallMastery
	}
}

type Direction string

const (
	Improving Direction = "improving"
	Declining Direction = "declining"
	Stable    Direction = "stable"
)

// Trend is an OLS fit of a metric against snapshot index. Sufficient is false
// when fewer than three snapshots were available; the other fields are then
// zero and Reason carries the insufficient data error text.
type Trend struct {
	Metric     Metric    `json:"metric"`
	Direction  Direction `json:"direction,omitempty"`
	Slope      float64   `json:"slope"`
	Intercept  float64   `json:"intercept"`
	RSquared   float64   `json:"r_squared"`
	Confidence float64   `json:"confidence"`
	DataPoints int       `json:"data_points"`
	Sufficient bool      `json:"sufficient"`
	Reason     string    `json:"reason,omitempty"`
}

func (t Trend) Err() error {
	if t.Sufficient {
		return nil
	}
	return apierr.InsufficientData("trend "+string(t.Metric), t.DataPoints, minTrendPoints)
}

type Velocity struct {
	MasteryPerDay float64 `json:"mastery_per_day"`
	ContentPerDay float64 `json:"content_per_day"`
	MinutesPerDay float64 `json:"minutes_per_day"`
	Days          float64 `json:"days"`
	DataPoints    int     `json:"data_points"`
	Sufficient    bool    `json:"sufficient"`
	Reason        string  `json:"reason,omitempty"`
}

func (v Velocity) Err() error {
	if v.Sufficient {
		return nil
	}
	return apierr.InsufficientData("velocity", v.DataPoints, minVelocityPoints)
}

type Plateau struct {
	Detected      bool    `json:"detected"`
	MasteryChange float64 `json:"mastery_change"`
	Variance      float64 `json:"variance"`
	DataPoints    int     `json:"data_points"`
	Sufficient    bool    `json:"sufficient"`
	Reason        string  `json:"reason,omitempty"`
}

func (p Plateau) Err() error {
	if p.Sufficient {
		return nil
	}
	return apierr.InsufficientData("plateau", p.DataPoints, minPlateauPoints)
}

type Prediction struct {
	Current        float64  `json:"current"`
	Predicted      float64  `json:"predicted"`
	DaysAhead      int      `json:"days_ahead"`
	VelocityPerDay float64  `json:"velocity_per_day"`
	Confidence     float64  `json:"confidence"`
	DaysTo80       *float64 `json:"days_to_80,omitempty"`
	DaysTo90       *float64 `json:"days_to_90,omitempty"`
	DataPoints     int      `json:"data_points"`
	Sufficient     bool     `json:"sufficient"`
	Reason         string   `json:"reason,omitempty"`
}

func (p Prediction) Err() error {
	if p.Sufficient {
		return nil
	}
	return apierr.InsufficientData("prediction", p.DataPoints, minVelocityPoints)
}

type Report struct {
	LearnerID   string           `json:"learner_id"`
	PeriodDays  int              `json:"period_days"`
	GeneratedAt time.Time        `json:"generated_at"`
	Current     *Snapshot        `json:"current,omitempty"`
	Trends      map[Metric]Trend `json:"trends"`
	Velocity    Velocity         `json:"velocity"`
	Plateau     Plateau          `json:"plateau"`
	Prediction  Prediction       `json:"prediction"`
	Insights    []string         `json:"insights"`
}
