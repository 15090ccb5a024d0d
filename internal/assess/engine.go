package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/dentai/internal/interpret"
)

// ActionRule is the score and consequences of one action within a case.
type ActionRule struct {
	Score    float64        `yaml:"score" json:"score"`
	Outcome  string         `yaml:"outcome" json:"outcome"`
	Feedback string         `yaml:"feedback,omitempty" json:"feedback,omitempty"`
	Reveal   []string       `yaml:"reveal,omitempty" json:"reveal,omitempty"`
	State    map[string]any `yaml:"state,omitempty" json:"state,omitempty"`
}

// CaseRules maps action keys to rules for one case.
type CaseRules struct {
	Actions map[string]ActionRule `yaml:"actions" json:"actions"`
}

// RuleSet is the on-disk rules document.
type RuleSet struct {
	// Default applies to every case that has no rule of its own.
	Default    CaseRules            `yaml:"default" json:"default"`
	Cases      map[string]CaseRules `yaml:"cases" json:"cases"`
	Categories map[string][]string  `yaml:"categories" json:"categories"`
}

// RuleEngine is a table-driven Evaluator and RuleSource.
type RuleEngine struct {
	rules RuleSet
}

// NewRuleEngine creates an engine over an in-memory rule set.
func NewRuleEngine(rules RuleSet) *RuleEngine {
	return &RuleEngine{rules: rules}
}

// LoadRules reads a rules file. Files ending in .json are decoded as
// JSON, everything else as YAML.
func LoadRules(path string) (*RuleEngine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

// ParseRules decodes a rules document.
func ParseRules(data []byte, isJSON bool) (*RuleEngine, error) {
	var rs RuleSet
	if isJSON {
		if err := json.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("parse rules: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return nil, fmt.Errorf("parse rules: %w", err)
		}
	}
	if err := rs.validate(); err != nil {
		return nil, err
	}
	return NewRuleEngine(rs), nil
}

func (rs RuleSet) validate() error {
	check := func(scope string, cr CaseRules) error {
		for action, r := range cr.Actions {
			if !interpret.IsActionKey(action) {
				return fmt.Errorf("rules %s: unknown action %q", scope, action)
			}
			if r.Outcome == "" {
				return fmt.Errorf("rules %s/%s: missing outcome", scope, action)
			}
		}
		return nil
	}
	if err := check("default", rs.Default); err != nil {
		return err
	}
	for id, cr := range rs.Cases {
		if err := check(id, cr); err != nil {
			return err
		}
	}
	return nil
}

// EvaluateAction looks the action up for the case, falling back to the
// default table. Conversation scores nothing.
func (e *RuleEngine) EvaluateAction(_ context.Context, caseID string, in interpret.Interpretation) (Assessment, error) {
	a := Assessment{
		"case_id": caseID,
		"action":  in.InterpretedAction,
		"score":   0.0,
	}
	if in.IsChat() {
		a["rule_outcome"] = OutcomeChat
		return a, nil
	}

	rule, ok := e.lookup(caseID, in.InterpretedAction)
	if !ok {
		a["rule_outcome"] = OutcomeNoMatch
		return a, nil
	}

	a["score"] = rule.Score
	a["rule_outcome"] = rule.Outcome
	if rule.Feedback != "" {
		a["feedback"] = rule.Feedback
	}

	delta := make(map[string]any, len(rule.State)+2)
	for k, v := range rule.State {
		delta[k] = v
	}
	if rule.Score != 0 {
		delta["score_change"] = rule.Score
	}
	if len(rule.Reveal) > 0 {
		findings := make([]any, len(rule.Reveal))
		for i, f := range rule.Reveal {
			findings[i] = f
		}
		delta["revealed_findings"] = findings
	}
	if len(delta) > 0 {
		a["state_updates"] = delta
	}
	return a, nil
}

func (e *RuleEngine) lookup(caseID, action string) (ActionRule, bool) {
	if cr, ok := e.rules.Cases[caseID]; ok {
		if r, ok := cr.Actions[action]; ok {
			return r, true
		}
	}
	r, ok := e.rules.Default.Actions[action]
	return r, ok
}

// ActiveRules returns the guideline rules for a category, matched case
// insensitively, or the general rules when the category has none.
func (e *RuleEngine) ActiveRules(category string) []string {
	for name, rules := range e.rules.Categories {
		if strings.EqualFold(name, category) && len(rules) > 0 {
			return append([]string{}, rules...)
		}
	}
	for name, rules := range e.rules.Categories {
		if strings.EqualFold(name, "general") {
			return append([]string{}, rules...)
		}
	}
	return nil
}
