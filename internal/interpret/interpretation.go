package interpret

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// IntentType separates gradable clinical actions from conversation.
type IntentType string

const (
	IntentChat   IntentType = "CHAT"
	IntentAction IntentType = "ACTION"
)

// Priority is the clinical urgency the model assigns to an action.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Action keys outside the clinical vocabulary.
const (
	ActionUnspecified = "unspecified_action"
	ActionGeneralChat = "general_chat"
	ActionError       = "error"
)

// ActionKeys is the closed vocabulary of gradable clinical actions.
var ActionKeys = []string{
	"gather_medical_history",
	"gather_personal_info",
	"check_allergies_meds",
	"order_radiograph",
	"diagnose_pulpitis",
	"prescribe_antibiotics",
	"refer_oral_surgery",
	"check_pacemaker",
	"check_bleeding_disorder",
	"check_diabetes",
	"check_oral_hygiene_habits",
	"check_vital_signs",
	"prescribe_palliative_care",
	"ask_systemic_symptoms",
	"perform_pathergy_test",
	"request_serology_tests",
	"perform_oral_exam",
	"perform_extraoral_exam",
	"perform_nikolsky_test",
	"request_biopsy_he",
	"request_dif_biopsy",
	"diagnose_herpetic_gingivostomatitis",
	"diagnose_behcet_disease",
	"diagnose_secondary_syphilis",
	"diagnose_mucous_membrane_pemphigoid",
	"diagnose_plaque_gingivitis",
}

// ClinicalIntents is the closed vocabulary of clinical_intent categories.
var ClinicalIntents = []string{
	"history_taking",
	"diagnosis_gathering",
	"treatment_planning",
	"patient_education",
	"infection_control",
	"radiography",
	"anesthesia",
	"restorative",
	"periodontics",
	"endodontics",
	"oral_surgery",
	"prosthodontics",
	"orthodontics",
	"follow_up",
	"other",
}

// Learner-facing messages.
const (
	ChatModeFeedback  = "Sohbet modu. Klinik eylemlere odaklanın."
	TechnicalError    = "Anlaşılamadı (Teknik Hata). Lütfen tekrar dener misiniz?"
	QuotaNotice       = "⚠️ API kotası doldu (Mock sistem aktif). "
	OfflineNotice     = "⚠️ Yapay zekâ servisi yapılandırılmamış (Mock sistem aktif). "
	QuotaExhausted    = "⏳ API günlük kullanım limiti doldu. Lütfen yarın tekrar deneyin."
	actionFeedbackFmt = "Eylem yorumlandı: %s"
)

// Source records which path produced an interpretation. It is not part of
// the serialized record.
type Source string

const (
	SourceModel     Source = "model"
	SourceChatReply Source = "chat_reply"
	SourceQuota     Source = "quota_mock"
	SourceOffline   Source = "offline_mock"
	SourceError     Source = "error"
)

// Interpretation is the normalized, machine-scorable reading of one turn.
type Interpretation struct {
	IntentType          IntentType     `json:"intent_type"`
	InterpretedAction   string         `json:"interpreted_action"`
	ClinicalIntent      string         `json:"clinical_intent"`
	Priority            Priority       `json:"priority"`
	SafetyConcerns      []string       `json:"safety_concerns"`
	ExplanatoryFeedback string         `json:"explanatory_feedback"`
	StructuredArgs      map[string]any `json:"structured_args"`

	Source Source `json:"-"`
}

// IsChat reports whether the turn is conversation rather than an action.
func (in Interpretation) IsChat() bool {
	return in.IntentType == IntentChat
}

// Fallback reports whether the record came from a degraded path.
func (in Interpretation) Fallback() bool {
	return in.Source != SourceModel && in.Source != SourceChatReply && in.Source != ""
}

// Map returns the record as a plain map, for callers that treat it as an
// opaque document.
func (in Interpretation) Map() map[string]any {
	concerns := make([]any, len(in.SafetyConcerns))
	for i, c := range in.SafetyConcerns {
		concerns[i] = c
	}
	args := in.StructuredArgs
	if args == nil {
		args = map[string]any{}
	}
	return map[string]any{
		"intent_type":          string(in.IntentType),
		"interpreted_action":   in.InterpretedAction,
		"clinical_intent":      in.ClinicalIntent,
		"priority":             string(in.Priority),
		"safety_concerns":      concerns,
		"explanatory_feedback": in.ExplanatoryFeedback,
		"structured_args":      args,
	}
}

// IsActionKey reports whether key is in the clinical action vocabulary.
func IsActionKey(key string) bool {
	for _, k := range ActionKeys {
		if k == key {
			return true
		}
	}
	return false
}

func isClinicalIntent(s string) bool {
	for _, c := range ClinicalIntents {
		if c == s {
			return true
		}
	}
	return false
}

// Normalize fills defaults so that every field holds a valid value.
func Normalize(in Interpretation) Interpretation {
	switch IntentType(strings.ToUpper(strings.TrimSpace(string(in.IntentType)))) {
	case IntentChat:
		in.IntentType = IntentChat
	default:
		in.IntentType = IntentAction
	}

	in.InterpretedAction = strings.TrimSpace(in.InterpretedAction)
	if in.InterpretedAction == "" {
		if in.IntentType == IntentChat {
			in.InterpretedAction = ActionGeneralChat
		} else {
			in.InterpretedAction = ActionUnspecified
		}
	}

	in.ClinicalIntent = strings.ToLower(strings.TrimSpace(in.ClinicalIntent))
	if !isClinicalIntent(in.ClinicalIntent) {
		in.ClinicalIntent = "other"
	}

	switch p := Priority(strings.ToLower(strings.TrimSpace(string(in.Priority)))); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		in.Priority = p
	default:
		in.Priority = PriorityMedium
	}

	if in.SafetyConcerns == nil {
		in.SafetyConcerns = []string{}
	}
	if in.StructuredArgs == nil {
		in.StructuredArgs = map[string]any{}
	}

	in.ExplanatoryFeedback = strings.TrimSpace(in.ExplanatoryFeedback)
	if in.ExplanatoryFeedback == "" {
		if in.IntentType == IntentChat {
			in.ExplanatoryFeedback = ChatModeFeedback
		} else {
			in.ExplanatoryFeedback = actionFeedback(in.InterpretedAction)
		}
	}
	return in
}

// fromMap builds an interpretation from a decoded model object, coercing
// loosely typed fields.
func fromMap(m map[string]any) Interpretation {
	var in Interpretation
	if s, ok := m["intent_type"].(string); ok {
		in.IntentType = IntentType(s)
	}
	in.InterpretedAction, _ = m["interpreted_action"].(string)
	in.ClinicalIntent, _ = m["clinical_intent"].(string)
	if s, ok := m["priority"].(string); ok {
		in.Priority = Priority(s)
	}
	in.ExplanatoryFeedback, _ = m["explanatory_feedback"].(string)

	switch t := m["safety_concerns"].(type) {
	case []any:
		in.SafetyConcerns = make([]string, 0, len(t))
		for _, c := range t {
			if s := strings.TrimSpace(fmt.Sprint(c)); c != nil && s != "" {
				in.SafetyConcerns = append(in.SafetyConcerns, s)
			}
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			in.SafetyConcerns = []string{s}
		}
	}
	if args, ok := m["structured_args"].(map[string]any); ok {
		in.StructuredArgs = args
	}
	return Normalize(in)
}

func chatInterpretation(action, feedback string, src Source) Interpretation {
	return Interpretation{
		IntentType:          IntentChat,
		InterpretedAction:   action,
		ClinicalIntent:      "other",
		Priority:            PriorityLow,
		SafetyConcerns:      []string{},
		ExplanatoryFeedback: feedback,
		StructuredArgs:      map[string]any{},
		Source:              src,
	}
}

// actionFeedback renders "check_vital_signs" as "Eylem yorumlandı: Check Vital Signs".
func actionFeedback(action string) string {
	return fmt.Sprintf(actionFeedbackFmt, titleWords(action))
}

func titleWords(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
