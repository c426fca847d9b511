package adaptive

import (
	"time"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
)

type Mood string

const (
	MoodFrustrated Mood = "frustrated"
	MoodConfused   Mood = "confused"
	MoodBored      Mood = "bored"
	MoodEngaged    Mood = "engaged"
	MoodNeutral    Mood = "neutral"
)

type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

func timeOfDay(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 22:
		return Evening
	default:
		return Night
	}
}

const (
	performanceWindow = 10
	sessionGap        = 30 * time.Minute
	longSession       = 45 * time.Minute
	breakSession      = 90 * time.Minute
	successScore      = 0.7
	failureScore      = 0.5
	lowAverage        = 0.5
	highAverage       = 0.75
	lowEngagement     = 0.5
	maxAttributions   = 500
)

// FeedbackEvent is one processed feedback signal kept in the learner history.
type FeedbackEvent struct {
	ContentID       string    `json:"content_id"`
	Strategy        string    `json:"strategy"`
	Engagement      float64   `json:"engagement"`
	Completion      float64   `json:"completion"`
	AssessmentScore float64   `json:"assessment_score"`
	Reward          float64   `json:"reward"`
	At              time.Time `json:"at"`
}

// LearnerContext is per-learner session state derived from recent behavior.
type LearnerContext struct {
	LearnerID            string          `json:"learner_id"`
	RecentScores         []float64       `json:"recent_scores"`
	RecentEngagement     []float64       `json:"recent_engagement"`
	ConsecutiveSuccesses int             `json:"consecutive_successes"`
	ConsecutiveFailures  int             `json:"consecutive_failures"`
	SessionStart         time.Time       `json:"session_start"`
	LastActivity         time.Time       `json:"last_activity"`
	Mood                 Mood            `json:"mood"`
	TimeOfDay            TimeOfDay       `json:"time_of_day"`
	Weekend              bool            `json:"weekend"`
	LastStrategy         string          `json:"last_strategy,omitempty"`
	History              []FeedbackEvent `json:"history,omitempty"`

	attribution map[string]string
}

func newLearnerContext(id string, now time.Time) *LearnerContext {
	return &LearnerContext{
		LearnerID:    id,
		SessionStart: now,
		LastActivity: now,
		Mood:         MoodNeutral,
		attribution:  map[string]string{},
	}
}

// touch starts a new session after a long gap and refreshes the calendar fields.
func (c *LearnerContext) touch(now time.Time) {
	if now.Sub(c.LastActivity) > sessionGap {
		c.SessionStart = now
	}
	c.LastActivity = now
	c.TimeOfDay = timeOfDay(now)
	wd := now.Weekday()
	c.Weekend = wd == time.Saturday || wd == time.Sunday
}

func (c *LearnerContext) SessionDuration() time.Duration {
	return c.LastActivity.Sub(c.SessionStart)
}

func (c *LearnerContext) recordScore(score float64) {
	score = learning.Clamp01(score)
	c.RecentScores = appendWindow(c.RecentScores, score, performanceWindow)
	switch {
	case score >= successScore:
		c.ConsecutiveSuccesses++
		c.ConsecutiveFailures = 0
	case score < failureScore:
		c.ConsecutiveFailures++
		c.ConsecutiveSuccesses = 0
	default:
		c.ConsecutiveSuccesses = 0
		c.ConsecutiveFailures = 0
	}
}

func (c *LearnerContext) recordEngagement(e float64) {
	c.RecentEngagement = appendWindow(c.RecentEngagement, learning.Clamp01(e), performanceWindow)
}

func appendWindow(w []float64, v float64, n int) []float64 {
	w = append(w, v)
	if len(w) > n {
		w = append([]float64(nil), w[len(w)-n:]...)
	}
	return w
}

func average(v []float64) (float64, bool) {
	if len(v) == 0 {
		return 0, false
	}
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v)), true
}

// classify derives the mood, checked in order: frustrated, confused, bored,
// engaged, neutral.
func (c *LearnerContext) classify() Mood {
	avg, haveScores := average(c.RecentScores)
	eng, haveEng := average(c.RecentEngagement)
	switch {
	case haveScores && avg < lowAverage && c.ConsecutiveFailures >= 2:
		c.Mood = MoodFrustrated
	case c.ConsecutiveFailures >= 4:
		c.Mood = MoodConfused
	case haveEng && eng < lowEngagement && c.SessionDuration() > longSession:
		c.Mood = MoodBored
	case haveScores && avg > highAverage && c.ConsecutiveSuccesses >= 3:
		c.Mood = MoodEngaged
	default:
		c.Mood = MoodNeutral
	}
	return c.Mood
}

func (c *LearnerContext) attribute(contentID, strategy string) {
	if len(c.attribution) >= maxAttributions {
		c.attribution = map[string]string{}
	}
	c.attribution[contentID] = strategy
}

func (c *LearnerContext) snapshot() LearnerContext {
	out := *c
	out.RecentScores = append([]float64(nil), c.RecentScores...)
	out.RecentEngagement = append([]float64(nil), c.RecentEngagement...)
	out.History = append([]FeedbackEvent(nil), c.History...)
	out.attribution = nil
	return out
}

// Adaptation is the set of adjustments applied to a recommendation call.
type Adaptation struct {
	DifficultyDelta float64                `json:"difficulty_delta"`
	PreferredTypes  []learning.ContentType `json:"preferred_types,omitempty"`
	SuggestBreak    bool                   `json:"suggest_break"`
	VarietyBoost    bool                   `json:"variety_boost"`
	Notes           []string               `json:"notes,omitempty"`
}

func (a Adaptation) prefers(t learning.ContentType) bool {
	for _, p := range a.PreferredTypes {
		if p == t {
			return true
		}
	}
	return false
}

type adaptationRule struct {
	name    string
	applies func(*LearnerContext) bool
	apply   func(*Adaptation)
}

var adaptationRules = []adaptationRule{
	{
		name:    "frustration",
		applies: func(c *LearnerContext) bool { return c.Mood == MoodFrustrated },
		apply: func(a *Adaptation) {
			a.DifficultyDelta -= 1
			a.PreferredTypes = append(a.PreferredTypes, learning.ContentTutorial, learning.ContentPractice, learning.ContentVideo)
			a.SuggestBreak = true
			a.Notes = append(a.Notes, "Recent attempts were difficult, so easier guided material comes first.")
		},
	},
	{
		name:    "confusion",
		applies: func(c *LearnerContext) bool { return c.Mood == MoodConfused },
		apply: func(a *Adaptation) {
			a.DifficultyDelta -= 0.5
			a.PreferredTypes = append(a.PreferredTypes, learning.ContentTutorial, learning.ContentLesson)
			a.Notes = append(a.Notes, "Several misses in a row, so explanations are favored.")
		},
	},
	{
		name:    "boredom",
		applies: func(c *LearnerContext) bool { return c.Mood == MoodBored },
		apply: func(a *Adaptation) {
			a.DifficultyDelta += 1
			a.PreferredTypes = append(a.PreferredTypes, learning.ContentChallenge, learning.ContentProject)
			a.VarietyBoost = true
			a.Notes = append(a.Notes, "Engagement dipped during a long session, so harder and more varied content is mixed in.")
		},
	},
	{
		name:    "engagement",
		applies: func(c *LearnerContext) bool { return c.Mood == MoodEngaged },
		apply: func(a *Adaptation) {
			a.DifficultyDelta += 0.5
			a.Notes = append(a.Notes, "Strong recent results, so difficulty steps up.")
		},
	},
	{
		name:    "night",
		applies: func(c *LearnerContext) bool { return c.TimeOfDay == Night },
		apply:   func(a *Adaptation) { a.DifficultyDelta -= 0.25 },
	},
	{
		name:    "morning",
		applies: func(c *LearnerContext) bool { return c.TimeOfDay == Morning },
		apply:   func(a *Adaptation) { a.DifficultyDelta += 0.25 },
	},
	{
		name:    "long_session",
		applies: func(c *LearnerContext) bool { return c.SessionDuration() >= breakSession },
		apply: func(a *Adaptation) {
			a.SuggestBreak = true
			a.Notes = append(a.Notes, "You have been studying for a while; a short break may help.")
		},
	},
}

func adapt(c *LearnerContext) (Adaptation, []string) {
	var a Adaptation
	var applied []string
	for _, r := range adaptationRules {
		if r.applies(c) {
			r.apply(&a)
			applied = append(applied, r.name)
		}
	}
	return a, applied
}
