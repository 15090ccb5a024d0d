package assess

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/dentai/internal/interpret"
)

func action(key string) interpret.Interpretation {
	return interpret.Normalize(interpret.Interpretation{IntentType: interpret.IntentAction, InterpretedAction: key})
}

func testEngine(t *testing.T) *RuleEngine {
	t.Helper()
	e, err := ParseRules([]byte(`
default:
  actions:
    gather_medical_history: {score: 5, outcome: appropriate}
cases:
  olp_001:
    actions:
      perform_oral_exam:
        score: 10
        outcome: correct
        reveal: [beyaz çizgiler]
        state: {stage: exam}
      gather_medical_history: {score: 1, outcome: late}
categories:
  general: [genel kural]
  Infectious: [alerji sor]
`), false)
	require.NoError(t, err)
	return e
}

func TestAssessment_StateDeltaProbeOrder(t *testing.T) {
	tests := []struct {
		name string
		a    Assessment
		want map[string]any
	}{
		{"none", Assessment{"score": 1.0}, nil},
		{"state_updates", Assessment{"state_updates": map[string]any{"a": 1.0}}, map[string]any{"a": 1.0}},
		{"state_update", Assessment{"state_update": map[string]any{"b": 1.0}}, map[string]any{"b": 1.0}},
		{"new_state_data", Assessment{"new_state_data": map[string]any{"c": 1.0}}, map[string]any{"c": 1.0}},
		{
			"first wins",
			Assessment{"state_update": map[string]any{"b": 1.0}, "new_state_data": map[string]any{"c": 1.0}},
			map[string]any{"b": 1.0},
		},
		{
			"empty first is skipped",
			Assessment{"state_updates": map[string]any{}, "state_update": map[string]any{"b": 1.0}},
			map[string]any{"b": 1.0},
		},
		{
			"non-mapping is skipped",
			Assessment{"state_updates": "oops", "new_state_data": map[string]any{"c": 1.0}},
			map[string]any{"c": 1.0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.a.StateDelta()); diff != "" {
				t.Errorf("StateDelta (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAssessment_ScoreAndOutcome(t *testing.T) {
	assert.Equal(t, 3.5, Assessment{"score": 3.5}.Score())
	assert.Equal(t, 2.0, Assessment{"score": 2}.Score())
	assert.Equal(t, 0.0, Assessment{"score": "high"}.Score())
	assert.Equal(t, "correct", Assessment{"rule_outcome": "correct"}.Outcome())
	assert.Equal(t, "", Assessment{}.Outcome())
}

func TestRuleEngine_CaseRuleWithDelta(t *testing.T) {
	a, err := testEngine(t).EvaluateAction(context.Background(), "olp_001", action("perform_oral_exam"))
	require.NoError(t, err)

	assert.Equal(t, 10.0, a.Score())
	assert.Equal(t, "correct", a.Outcome())
	want := map[string]any{
		"stage":             "exam",
		"score_change":      10.0,
		"revealed_findings": []any{"beyaz çizgiler"},
	}
	if diff := cmp.Diff(want, a.StateDelta()); diff != "" {
		t.Errorf("delta (-want +got):\n%s", diff)
	}
}

func TestRuleEngine_CaseOverridesDefault(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	a, _ := e.EvaluateAction(ctx, "olp_001", action("gather_medical_history"))
	assert.Equal(t, "late", a.Outcome())

	a, _ = e.EvaluateAction(ctx, "herpes_002", action("gather_medical_history"))
	assert.Equal(t, "appropriate", a.Outcome())
	assert.Equal(t, 5.0, a.Score())
}

func TestRuleEngine_ChatAndUnknown(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	a, err := e.EvaluateAction(ctx, "olp_001", interpret.Mock("hello"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeChat, a.Outcome())
	assert.Equal(t, 0.0, a.Score())
	assert.Nil(t, a.StateDelta())

	a, err = e.EvaluateAction(ctx, "olp_001", action("order_radiograph"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, a.Outcome())
	assert.Nil(t, a.StateDelta())
}

func TestRuleEngine_ActiveRules(t *testing.T) {
	e := testEngine(t)
	assert.Equal(t, []string{"alerji sor"}, e.ActiveRules("infectious"))
	assert.Equal(t, []string{"genel kural"}, e.ActiveRules("GENERAL"))
	assert.Equal(t, []string{"genel kural"}, e.ActiveRules("rare_conditions"))
	assert.Nil(t, NewRuleEngine(RuleSet{}).ActiveRules("infectious"))
}

func TestParseRules_Validation(t *testing.T) {
	_, err := ParseRules([]byte(`{"cases":{"x":{"actions":{"teleport":{"score":1,"outcome":"ok"}}}}}`), true)
	assert.ErrorContains(t, err, "unknown action")

	_, err = ParseRules([]byte(`{"default":{"actions":{"check_diabetes":{"score":1}}}}`), true)
	assert.ErrorContains(t, err, "missing outcome")

	_, err = ParseRules([]byte(`{`), true)
	assert.Error(t, err)
}

func TestLoadRules_BundledFile(t *testing.T) {
	e, err := LoadRules(filepath.Join("..", "..", "data", "rules.yaml"))
	require.NoError(t, err)

	a, err := e.EvaluateAction(context.Background(), "herpes_002", action("prescribe_antibiotics"))
	require.NoError(t, err)
	assert.Equal(t, "contraindicated", a.Outcome())
	assert.Less(t, a.Score(), 0.0)
	assert.NotEmpty(t, e.ActiveRules("infectious"))
}
