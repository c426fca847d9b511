package adaptive

import (
	"testing"
	"time"
)

func TestBoredNeedsLowEngagementOverLongSession(t *testing.T) {
	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	cases := []struct {
		name       string
		engagement float64
		session    time.Duration
		want       Mood
	}{
		{"low engagement long session", 0.45, time.Hour, MoodBored},
		{"at threshold", lowEngagement, time.Hour, MoodNeutral},
		{"low engagement short session", 0.2, 20 * time.Minute, MoodNeutral},
	}
	for _, tc := range cases {
		c := newLearnerContext("l1", start)
		c.recordScore(0.6)
		c.recordEngagement(tc.engagement)
		c.LastActivity = start.Add(tc.session)
		if got := c.classify(); got != tc.want {
			t.Fatalf("%s: mood=%s want %s", tc.name, got, tc.want)
		}
	}
}
