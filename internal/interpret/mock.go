package interpret

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var keywordsYAML []byte

type keywordRule struct {
	Match  string `yaml:"match"`
	Action string `yaml:"action"`
}

type keywordTable struct {
	Keywords      []keywordRule `yaml:"keywords"`
	ClinicalVerbs []string      `yaml:"clinical_verbs"`
}

var mockTable = mustLoadKeywords(keywordsYAML)

func mustLoadKeywords(data []byte) keywordTable {
	t, err := parseKeywords(data)
	if err != nil {
		panic(fmt.Sprintf("load keywords.yaml: %v", err))
	}
	return t
}

func parseKeywords(data []byte) (keywordTable, error) {
	var t keywordTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return keywordTable{}, err
	}
	for i, k := range t.Keywords {
		if k.Match == "" || !IsActionKey(k.Action) {
			return keywordTable{}, fmt.Errorf("keyword %d: invalid entry %q -> %q", i, k.Match, k.Action)
		}
		t.Keywords[i].Match = strings.ToLower(k.Match)
	}
	if len(t.ClinicalVerbs) == 0 {
		return keywordTable{}, fmt.Errorf("no clinical verbs")
	}
	return t, nil
}

// Mock approximates the model with keyword matching. It is deterministic
// and has no dependencies, so it serves when the model cannot.
func Mock(raw string) Interpretation {
	return mockTable.interpret(raw)
}

func (t keywordTable) interpret(raw string) Interpretation {
	text := strings.ToLower(raw)

	action := ActionUnspecified
	for _, k := range t.Keywords {
		if strings.Contains(text, k.Match) {
			action = k.Action
			break
		}
	}

	clinical := false
	for _, v := range t.ClinicalVerbs {
		if strings.Contains(text, v) {
			clinical = true
			break
		}
	}

	if !clinical {
		return chatInterpretation(ActionGeneralChat, ChatModeFeedback, SourceOffline)
	}
	return Interpretation{
		IntentType:          IntentAction,
		InterpretedAction:   action,
		ClinicalIntent:      "diagnosis_gathering",
		Priority:            PriorityMedium,
		SafetyConcerns:      []string{},
		ExplanatoryFeedback: actionFeedback(action),
		StructuredArgs:      map[string]any{},
		Source:              SourceOffline,
	}
}
