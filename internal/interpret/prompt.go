package interpret

import (
	"bytes"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/abhisek/dentai/internal/scenario"
)

var systemTemplate = template.Must(template.New("interpret-system").Parse(`You are the interpretation engine of a dental clinical-skills tutor. A dental student is working through a simulated patient encounter and types free text. Convert each message into a structured action record.

Classification:
- CHAT: greetings, small talk, questions to the tutor, anything that is not a clinical step.
- ACTION: a concrete clinical step (history taking, examination, test, diagnosis, treatment, referral).

Allowed interpreted_action values for ACTION:
{{range .Actions}}- {{.}}
{{end}}- unspecified_action (clinical but matches none of the above)
For CHAT use general_chat.

Allowed clinical_intent values:
{{range .Intents}}- {{.}}
{{end}}
priority is one of: high, medium, low.

safety_concerns lists short notes on patient-safety risks in the student's step (empty list if none).
structured_args holds any concrete parameters the student gave (drug, dose, tooth number, test name).

Language rules:
- All keys and enumerated values are in English exactly as listed.
- explanatory_feedback is written in TURKISH, one or two sentences, addressed to the student.

Return STRICT JSON ONLY with exactly these keys:
{"intent_type": "...", "interpreted_action": "...", "clinical_intent": "...", "priority": "...", "safety_concerns": [], "explanatory_feedback": "...", "structured_args": {}}
No prose, no markdown, no code fences.`))

// SystemPrompt is the fixed instruction sent with every interpretation call.
var SystemPrompt = mustRenderSystem()

func mustRenderSystem() string {
	var buf bytes.Buffer
	err := systemTemplate.Execute(&buf, struct {
		Actions []string
		Intents []string
	}{ActionKeys, ClinicalIntents})
	if err != nil {
		panic(err)
	}
	return buf.String()
}

// stateExcerpt is the slice of learner state the model gets to see.
type stateExcerpt struct {
	CaseID           string   `json:"case_id"`
	PatientAge       any      `json:"patient_age"`
	ChiefComplaint   any      `json:"chief_complaint"`
	RevealedFindings []string `json:"revealed_findings"`
}

func excerptOf(st scenario.LearnerState) stateExcerpt {
	ex := stateExcerpt{CaseID: st.CaseID, RevealedFindings: st.RevealedFindings}
	ex.PatientAge, _ = st.PatientValue("age", "yas")
	ex.ChiefComplaint, _ = st.PatientValue("chief_complaint", "sikayet")
	if ex.RevealedFindings == nil {
		ex.RevealedFindings = []string{}
	}
	return ex
}

// buildUserPrompt combines the learner text with the state excerpt.
func buildUserPrompt(raw string, st scenario.LearnerState) (string, error) {
	var ctxJSON bytes.Buffer
	enc := json.NewEncoder(&ctxJSON)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(excerptOf(st)); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Student action:\n")
	b.WriteString(raw)
	b.WriteString("\n\nScenario state (partial):\n")
	b.WriteString(strings.TrimRight(ctxJSON.String(), "\n"))
	b.WriteString("\n\nReturn STRICT JSON ONLY following the required schema.")
	return b.String(), nil
}
