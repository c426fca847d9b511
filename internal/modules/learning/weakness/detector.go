package weakness

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/yungbote/neurobridge-adaptive/internal/domain/learning"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/apierr"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

const (
	DefaultDecayFactor = 0.95

	failureScore         = 0.6
	minFailures          = 2
	minPatternHits       = 3
	patternSeverity      = 0.6
	lowMastery           = 0.5
	memoryLossThreshold  = 0.2
	forgettingThreshold  = 0.3
	conceptClusterMin    = 2
	categoryClusterMin   = 3
	successCriterion     = "Score at least 80% on a follow-up assessment"
	minRemediationSev    = 0.1
	maxRemediationSev    = 1.0
	maxEvidencePerRecord = 10
)

type Config struct {
	// DecayFactor is applied once per day a weakness goes unobserved.
	DecayFactor float64
	Now         func() time.Time
}

type learnerWeaknesses struct {
	mu    sync.Mutex
	items map[string]*Weakness
}

type Detector struct {
	log   *logger.Logger
	decay float64
	now   func() time.Time

	mu       sync.Mutex
	learners map[string]*learnerWeaknesses
}

func New(log *logger.Logger, cfg Config) *Detector {
	d := &Detector{
		log:      log.With("module", "WeaknessDetector"),
		decay:    cfg.DecayFactor,
		now:      cfg.Now,
		learners: map[string]*learnerWeaknesses{},
	}
	if d.decay <= 0 || d.decay > 1 {
		d.decay = DefaultDecayFactor
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

func (d *Detector) state(learnerID string) *learnerWeaknesses {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.learners[learnerID]
	if !ok {
		s = &learnerWeaknesses{items: map[string]*Weakness{}}
		d.learners[learnerID] = s
	}
	return s
}

// Detect runs every detector over the profile and events, merges the findings
// into the learner's history and returns them decayed to now.
func (d *Detector) Detect(profile *learning.LearnerProfile, events []learning.LearningEvent, content []learning.ContentItem) []Weakness {
	if profile == nil {
		return []Weakness{}
	}
	now := d.now()
	byContent := make(map[string]learning.ContentItem, len(content))
	for _, c := range content {
		byContent[c.ID] = c
	}

	var found []Weakness
	found = append(found, detectAssessmentFailures(events, byContent)...)
	found = append(found, detectErrorPatterns(events, byContent)...)
	found = append(found, detectLowMastery(profile)...)
	found = append(found, detectForgetting(profile)...)

	s := d.state(profile.ID)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Weakness, 0, len(found))
	for _, w := range found {
		w.LearnerID = profile.ID
		w.Severity = learning.Clamp01(w.Severity)
		k := w.key()
		if cur, ok := s.items[k]; ok {
			cur.Severity = w.Severity
			cur.Category = w.Category
			if w.Frequency > cur.Frequency {
				cur.Frequency = w.Frequency
			}
			cur.Evidence = mergeEvidence(cur.Evidence, w.Evidence)
			cur.LastSeen = now
			cur.RemediationPriority = RemediationPriority(cur.Severity, cur.Frequency)
			out = append(out, *cur)
			continue
		}
		w.ID = uuid.NewString()
		w.FirstSeen, w.LastSeen = now, now
		w.RemediationPriority = RemediationPriority(w.Severity, w.Frequency)
		stored := w
		s.items[k] = &stored
		out = append(out, w)
	}
	sortBySeverity(out)
	d.log.Debug("weaknesses detected", "learner_id", profile.ID, "count", len(out))
	return out
}

func detectAssessmentFailures(events []learning.LearningEvent, byContent map[string]learning.ContentItem) []Weakness {
	type group struct {
		scores  []float64
		concept string
	}
	groups := map[string]*group{}
	for _, e := range events {
		if !e.Scored() || e.ContentID == "" || e.Score >= failureScore {
			continue
		}
		g, ok := groups[e.ContentID]
		if !ok {
			g = &group{}
			groups[e.ContentID] = g
		}
		g.scores = append(g.scores, e.Score)
		if g.concept == "" {
			g.concept = e.ConceptID
		}
	}
	var out []Weakness
	for contentID, g := range groups {
		if len(g.scores) < minFailures {
			continue
		}
		concept := g.concept
		if concept == "" {
			if c, ok := byContent[contentID]; ok && len(c.ConceptIDs) > 0 {
				concept = c.ConceptIDs[0]
			}
		}
		avg := mean(g.scores)
		out = append(out, Weakness{
			Source:    SourceAssessment,
			Category:  Conceptual,
			ConceptID: concept,
			ContentID: contentID,
			Severity:  1 - avg,
			Frequency: len(g.scores),
			Evidence:  []string{fmt.Sprintf("%d assessments on %s averaged %.0f%%", len(g.scores), contentID, avg*100)},
		})
	}
	return out
}

func detectErrorPatterns(events []learning.LearningEvent, byContent map[string]learning.ContentItem) []Weakness {
	type group struct {
		count   int
		concept string
	}
	groups := map[string]*group{}
	for _, e := range events {
		if e.ErrorPattern == "" {
			continue
		}
		g, ok := groups[e.ErrorPattern]
		if !ok {
			g = &group{}
			groups[e.ErrorPattern] = g
		}
		g.count++
		if g.concept == "" {
			g.concept = e.ConceptID
			if g.concept == "" {
				if c, ok := byContent[e.ContentID]; ok && len(c.ConceptIDs) > 0 {
					g.concept = c.ConceptIDs[0]
				}
			}
		}
	}
	var out []Weakness
	for pattern, g := range groups {
		if g.count < minPatternHits {
			continue
		}
		out = append(out, Weakness{
			Source:    SourceErrorPattern,
			Category:  categorize(pattern),
			ConceptID: g.concept,
			Pattern:   pattern,
			Severity:  patternSeverity,
			Frequency: g.count,
			Evidence:  []string{fmt.Sprintf("error pattern %q observed %d times", pattern, g.count)},
		})
	}
	return out
}

func detectLowMastery(p *learning.LearnerProfile) []Weakness {
	var out []Weakness
	for concept, m := range p.MasteryStates {
		if m >= lowMastery {
			continue
		}
		w := Weakness{
			Source:    SourceLowMastery,
			Category:  Conceptual,
			ConceptID: concept,
			Severity:  1 - m,
			Frequency: 1,
			Evidence:  []string{fmt.Sprintf("mastery of %s is %.0f%%", concept, m*100)},
		}
		if pred, ok := p.DecayPredictions[concept]; ok && m-pred > memoryLossThreshold {
			w.Category = Memory
			w.Evidence = append(w.Evidence, fmt.Sprintf("predicted to fall to %.0f%%", pred*100))
		}
		out = append(out, w)
	}
	return out
}

func detectForgetting(p *learning.LearnerProfile) []Weakness {
	var out []Weakness
	for concept, pred := range p.DecayPredictions {
		m, ok := p.MasteryStates[concept]
		if !ok || m <= 0 || m-pred <= forgettingThreshold {
			continue
		}
		out = append(out, Weakness{
			Source:    SourceForgetting,
			Category:  Memory,
			ConceptID: concept,
			Severity:  (m - pred) / m,
			Frequency: 1,
			Evidence:  []string{fmt.Sprintf("%s predicted to decay from %.0f%% to %.0f%%", concept, m*100, pred*100)},
		})
	}
	return out
}

// decayed returns w with severity decayed by the fractional days since LastSeen.
func (d *Detector) decayed(w Weakness, now time.Time) Weakness {
	days := now.Sub(w.LastSeen).Hours() / 24
	if days > 0 {
		w.Severity = learning.Clamp01(w.Severity * math.Pow(d.decay, days))
	}
	w.Evidence = append([]string(nil), w.Evidence...)
	w.RemediationPriority = RemediationPriority(w.Severity, w.Frequency)
	return w
}

// GetActiveWeaknesses returns the learner's weaknesses whose decayed severity
// falls within [minSeverity, maxSeverity], most severe first.
func (d *Detector) GetActiveWeaknesses(learnerID string, minSeverity, maxSeverity float64) []Weakness {
	now := d.now()
	s := d.state(learnerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Weakness{}
	for _, w := range s.items {
		dw := d.decayed(*w, now)
		if dw.Severity < minSeverity || dw.Severity > maxSeverity {
			continue
		}
		out = append(out, dw)
	}
	sortBySeverity(out)
	return out
}

// IdentifyWeaknessPatterns clusters active weaknesses that share a concept (two
// or more) or a category (three or more).
func (d *Detector) IdentifyWeaknessPatterns(learnerID string) []Pattern {
	active := d.GetActiveWeaknesses(learnerID, 0, 1)
	byConcept := map[string][]Weakness{}
	byCategory := map[Category][]Weakness{}
	for _, w := range active {
		if w.ConceptID != "" {
			byConcept[w.ConceptID] = append(byConcept[w.ConceptID], w)
		}
		byCategory[w.Category] = append(byCategory[w.Category], w)
	}
	out := []Pattern{}
	for concept, ws := range byConcept {
		if len(ws) >= conceptClusterMin {
			out = append(out, cluster(ConceptCluster, concept, ws))
		}
	}
	for cat, ws := range byCategory {
		if len(ws) >= categoryClusterMin {
			out = append(out, cluster(CategoryCluster, string(cat), ws))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageSeverity != out[j].AverageSeverity {
			return out[i].AverageSeverity > out[j].AverageSeverity
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func cluster(t PatternType, key string, ws []Weakness) Pattern {
	ids := make([]string, 0, len(ws))
	sev := make([]float64, 0, len(ws))
	for _, w := range ws {
		ids = append(ids, w.ID)
		sev = append(sev, w.Severity)
	}
	sort.Strings(ids)
	return Pattern{
		Type:            t,
		Key:             key,
		WeaknessIDs:     ids,
		AverageSeverity: mean(sev),
		RootCause:       rootCauses[t],
		Intervention:    clusterInterventions[t],
	}
}

// GetRemediationPlan covers the k most severe active weaknesses.
func (d *Detector) GetRemediationPlan(learnerID string, k int) RemediationPlan {
	plan := RemediationPlan{LearnerID: learnerID, Items: []RemediationItem{}, CreatedAt: d.now()}
	active := d.GetActiveWeaknesses(learnerID, 0, 1)
	if k > 0 && len(active) > k {
		active = active[:k]
	}
	for _, w := range active {
		item := RemediationItem{
			WeaknessID:       w.ID,
			ConceptID:        w.ConceptID,
			Category:         w.Category,
			Severity:         w.Severity,
			Steps:            append([]string(nil), interventions[w.Category]...),
			EstimatedMinutes: w.Severity*60 + 15,
			SuccessCriterion: successCriterion,
		}
		plan.Items = append(plan.Items, item)
		plan.TotalMinutes += item.EstimatedMinutes
	}
	return plan
}

// TrackRemediationProgress adjusts a weakness after a follow-up assessment.
func (d *Detector) TrackRemediationProgress(learnerID, weaknessID string, score float64) (Weakness, error) {
	now := d.now()
	s := d.state(learnerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.items {
		if w.ID != weaknessID {
			continue
		}
		sev := d.decayed(*w, now).Severity
		switch {
		case score >= 0.8:
			sev -= 0.3
		case score >= 0.6:
			sev -= 0.15
		default:
			sev += 0.1
		}
		w.Severity = learning.ClampRange(sev, minRemediationSev, maxRemediationSev)
		w.LastSeen = now
		w.Frequency++
		w.Evidence = mergeEvidence(w.Evidence, []string{fmt.Sprintf("follow-up assessment scored %.0f%%", score*100)})
		w.RemediationPriority = RemediationPriority(w.Severity, w.Frequency)
		return *w, nil
	}
	return Weakness{}, apierr.NotFound("weakness", weaknessID)
}

func mergeEvidence(cur, add []string) []string {
	seen := make(map[string]bool, len(cur))
	for _, e := range cur {
		seen[e] = true
	}
	for _, e := range add {
		if !seen[e] {
			cur = append(cur, e)
			seen[e] = true
		}
	}
	if len(cur) > maxEvidencePerRecord {
		cur = cur[len(cur)-maxEvidencePerRecord:]
	}
	return cur
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return stat.Mean(v, nil)
}

func sortBySeverity(ws []Weakness) {
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].Severity != ws[j].Severity {
			return ws[i].Severity > ws[j].Severity
		}
		return ws[i].key() < ws[j].key()
	})
}
