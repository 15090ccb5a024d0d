// Package assess scores interpreted actions against a rule table and
// reports the state delta each action earns.
package assess

import (
	"context"
	"encoding/json"

	"github.com/abhisek/dentai/internal/interpret"
)

// Evaluator scores one interpreted action for a case.
type Evaluator interface {
	EvaluateAction(ctx context.Context, caseID string, in interpret.Interpretation) (Assessment, error)
}

// RuleSource lists the guideline rules active for a pathology category.
type RuleSource interface {
	ActiveRules(category string) []string
}

// Rule outcomes produced by RuleEngine.
const (
	OutcomeChat       = "chat"
	OutcomeNoMatch    = "no_matching_rule"
	OutcomeRuleFailed = "evaluation_failed"
)

// Keys probed for a state delta, in priority order.
var deltaKeys = []string{"state_updates", "state_update", "new_state_data"}

// Assessment is the evaluator's opaque result document. It carries at
// least "score" and "rule_outcome".
type Assessment map[string]any

// Score returns the numeric score, or 0.
func (a Assessment) Score() float64 {
	switch t := a["score"].(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	}
	return 0
}

// Outcome returns the rule outcome label, or "".
func (a Assessment) Outcome() string {
	s, _ := a["rule_outcome"].(string)
	return s
}

// StateDelta returns the first non-empty mapping found under
// state_updates, state_update or new_state_data.
func (a Assessment) StateDelta() map[string]any {
	for _, k := range deltaKeys {
		if m, ok := a[k].(map[string]any); ok && len(m) > 0 {
			return m
		}
	}
	return nil
}
