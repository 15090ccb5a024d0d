package scenario

import (
	"encoding/json"
	"fmt"
)

// Well-known state keys. Everything else lives in Extra.
const (
	KeyCaseID           = "case_id"
	KeyCaseName         = "case_name"
	KeyCategory         = "category"
	KeyCurrentScore     = "current_score"
	KeyPatient          = "patient"
	KeyRevealedFindings = "revealed_findings"
	KeyScoreChange      = "score_change"
)

// LearnerState is the per-learner session state. Its JSON form is a flat
// object: the typed fields plus whatever keys the rule evaluator added.
type LearnerState struct {
	CaseID           string
	CaseName         string
	Category         string
	CurrentScore     float64
	Patient          map[string]any
	RevealedFindings []string
	Extra            map[string]any
}

// PatientValue resolves a patient field through its aliases.
func (s LearnerState) PatientValue(keys ...string) (any, bool) {
	return firstPresent(s.Patient, keys...)
}

// Clone returns a deep copy that shares nothing with s.
func (s LearnerState) Clone() LearnerState {
	out := s
	if s.Patient != nil {
		out.Patient = cloneValue(s.Patient).(map[string]any)
	}
	if s.RevealedFindings != nil {
		out.RevealedFindings = append([]string{}, s.RevealedFindings...)
	}
	if s.Extra != nil {
		out.Extra = cloneValue(s.Extra).(map[string]any)
	}
	return out
}

// Map returns the flat open-map form of the state.
func (s LearnerState) Map() map[string]any {
	m := make(map[string]any, len(s.Extra)+6)
	for k, v := range s.Extra {
		m[k] = cloneValue(v)
	}
	m[KeyCaseID] = s.CaseID
	m[KeyCurrentScore] = s.CurrentScore
	if s.CaseName != "" {
		m[KeyCaseName] = s.CaseName
	}
	if s.Category != "" {
		m[KeyCategory] = s.Category
	}
	if s.Patient != nil {
		m[KeyPatient] = cloneValue(s.Patient)
	}
	findings := s.RevealedFindings
	if findings == nil {
		findings = []string{}
	}
	m[KeyRevealedFindings] = append([]string{}, findings...)
	return m
}

// MarshalJSON encodes the flat form.
func (s LearnerState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// UnmarshalJSON decodes the flat form.
func (s *LearnerState) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode learner state: %w", err)
	}
	*s = stateFromMap(m)
	return nil
}

func stateFromMap(m map[string]any) LearnerState {
	var s LearnerState
	for k, v := range m {
		switch k {
		case KeyCaseID:
			s.CaseID, _ = v.(string)
		case KeyCaseName:
			s.CaseName, _ = v.(string)
		case KeyCategory:
			s.Category, _ = v.(string)
		case KeyCurrentScore:
			s.CurrentScore, _ = asNumber(v)
		case KeyPatient:
			s.Patient, _ = v.(map[string]any)
		case KeyRevealedFindings:
			s.RevealedFindings = stringsOf(v)
		default:
			if s.Extra == nil {
				s.Extra = make(map[string]any)
			}
			s.Extra[k] = v
		}
	}
	return s
}

// Merge folds a state delta into s.
//
// score_change is added to the score and current_score is ignored. Every
// other key is set when absent; when present, maps are shallow-merged,
// lists are appended, and any other pair is replaced by the new value.
// The typed fields keep their type: a delta value of the wrong kind for
// one of them is dropped.
func (s *LearnerState) Merge(delta map[string]any) {
	if delta == nil {
		return
	}
	if n, ok := asNumber(delta[KeyScoreChange]); ok {
		s.CurrentScore += n
	}

	for k, v := range delta {
		switch k {
		case KeyScoreChange, KeyCurrentScore:
		case KeyCaseID:
			if id, ok := v.(string); ok {
				s.CaseID = id
			}
		case KeyCaseName:
			if name, ok := v.(string); ok {
				s.CaseName = name
			}
		case KeyCategory:
			if cat, ok := v.(string); ok {
				s.Category = cat
			}
		case KeyPatient:
			if p, ok := v.(map[string]any); ok {
				if s.Patient == nil {
					s.Patient = cloneValue(p).(map[string]any)
				} else {
					s.Patient = mergeValue(s.Patient, p).(map[string]any)
				}
			}
		case KeyRevealedFindings:
			switch t := v.(type) {
			case []any, []string:
				s.RevealedFindings = append(s.RevealedFindings, stringsOf(t)...)
			case string:
				s.RevealedFindings = []string{t}
			}
		default:
			if s.Extra == nil {
				s.Extra = make(map[string]any)
			}
			old, ok := s.Extra[k]
			if !ok {
				s.Extra[k] = cloneValue(v)
				continue
			}
			s.Extra[k] = mergeValue(old, v)
		}
	}
}

// mergeValue combines an existing value with a new one by variant.
func mergeValue(old, v any) any {
	switch o := old.(type) {
	case map[string]any:
		if n, ok := v.(map[string]any); ok {
			out := make(map[string]any, len(o)+len(n))
			for k, x := range o {
				out[k] = x
			}
			for k, x := range n {
				out[k] = cloneValue(x)
			}
			return out
		}
	case []any, []string:
		ol, _ := asList(o)
		if n, ok := asList(v); ok {
			out := make([]any, 0, len(ol)+len(n))
			out = append(out, ol...)
			for _, x := range n {
				out = append(out, cloneValue(x))
			}
			return out
		}
	}
	return cloneValue(v)
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	case []string:
		return append([]string{}, t...)
	}
	return v
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}
