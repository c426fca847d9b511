package rules

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurobridge-adaptive/internal/platform/apierr"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

type Rule struct {
	ID                   string      `yaml:"id" json:"id"`
	Name                 string      `yaml:"name" json:"name"`
	Conditions           []Condition `yaml:"conditions" json:"conditions"`
	ContentTypes         []string    `yaml:"content_types" json:"content_types"`
	Priority             int         `yaml:"priority" json:"priority"`
	DifficultyAdjustment int         `yaml:"difficulty_adjustment" json:"difficulty_adjustment"`
	Subjects             []string    `yaml:"subjects,omitempty" json:"subjects,omitempty"`
	Topics               []string    `yaml:"topics,omitempty" json:"topics,omitempty"`
	MaxResults           int         `yaml:"max_results" json:"max_results"`
	Explanation          string      `yaml:"explanation" json:"explanation"`
}

// Applies is true only when every condition holds. A rule without conditions
// always applies.
func (r Rule) Applies(view ProfileView) bool {
	for _, c := range r.Conditions {
		if !c.Evaluate(view) {
			return false
		}
	}
	return true
}

func (r Rule) acceptsType(t string) bool {
	return len(r.ContentTypes) == 0 || containsFold(r.ContentTypes, t)
}

func (r Rule) acceptsSubject(subject string) bool {
	return len(r.Subjects) == 0 || containsFold(r.Subjects, subject)
}

func (r Rule) acceptsTopic(topic string) bool {
	return len(r.Topics) == 0 || containsFold(r.Topics, topic)
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

func LoadRules(r io.Reader) ([]Rule, error) {
	var f ruleFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	for i := range f.Rules {
		if f.Rules[i].DifficultyAdjustment < -2 {
			f.Rules[i].DifficultyAdjustment = -2
		}
		if f.Rules[i].DifficultyAdjustment > 2 {
			f.Rules[i].DifficultyAdjustment = 2
		}
	}
	return f.Rules, nil
}

func LoadRulesFile(path string) ([]Rule, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer fh.Close()
	return LoadRules(fh)
}

// DefaultRules returns the embedded rule set.
func DefaultRules() []Rule {
	rules, err := LoadRules(strings.NewReader(string(defaultRulesYAML)))
	if err != nil {
		panic(fmt.Sprintf("embedded default rules: %v", err))
	}
	return rules
}

// Validate reports malformed conditions. Malformed conditions still load; they
// simply never match.
func Validate(rules []Rule) []error {
	var errs []error
	seen := map[string]bool{}
	for _, r := range rules {
		if r.ID == "" {
			errs = append(errs, apierr.Configuration("rule %q has no id", r.Name))
		} else if seen[r.ID] {
			errs = append(errs, apierr.Configuration("duplicate rule id %q", r.ID))
		}
		seen[r.ID] = true
		for _, c := range r.Conditions {
			if !c.Operator.Valid() {
				errs = append(errs, apierr.Configuration("rule %q: unknown operator %q", r.ID, c.Operator))
			}
			root := strings.SplitN(strings.TrimSpace(c.Field), ".", 2)[0]
			if !knownRoots[root] {
				errs = append(errs, apierr.Configuration("rule %q: unknown field path %q", r.ID, c.Field))
			}
		}
	}
	return errs
}
