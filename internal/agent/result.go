package agent

import (
	"fmt"
	"strings"

	"github.com/abhisek/dentai/internal/assess"
	"github.com/abhisek/dentai/internal/interpret"
	"github.com/abhisek/dentai/internal/scenario"
)

// Mode selects who answers the learner. The zero value is patient mode.
type Mode int

const (
	// ModePatient answers in character and scores in the background.
	ModePatient Mode = iota
	// ModeEducator answers with the interpretation's feedback.
	ModeEducator
)

func (m Mode) String() string {
	if m == ModeEducator {
		return "educator"
	}
	return "patient"
}

// MarshalText encodes the mode as its name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(b []byte) error {
	mode, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseMode parses "patient" or "educator". Empty means patient.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "patient":
		return ModePatient, nil
	case "educator":
		return ModeEducator, nil
	}
	return ModePatient, fmt.Errorf("unknown mode %q", s)
}

// TurnRequest is one learner message.
type TurnRequest struct {
	LearnerID string
	Text      string
	// CaseID switches the learner to this case before anything else
	// happens. Empty keeps the current case.
	CaseID string
	Mode   Mode
}

// TurnResult is everything produced for one turn.
type TurnResult struct {
	TurnID           string                   `json:"turn_id"`
	LearnerID        string                   `json:"learner_id"`
	CaseID           string                   `json:"case_id"`
	Interpretation   interpret.Interpretation `json:"llm_interpretation"`
	Assessment       assess.Assessment        `json:"assessment"`
	SilentEvaluation map[string]any           `json:"silent_evaluation"`
	FinalFeedback    string                   `json:"final_feedback"`
	State            scenario.LearnerState    `json:"updated_state"`
	Mode             Mode                     `json:"mode"`
}

// ActionPatientConversation marks the placeholder interpretation of a
// patient-mode turn whose background scoring produced nothing.
const ActionPatientConversation = "patient_conversation"

func placeholderInterpretation(reply string) interpret.Interpretation {
	return interpret.Normalize(interpret.Interpretation{
		IntentType:          interpret.IntentChat,
		InterpretedAction:   ActionPatientConversation,
		Priority:            interpret.PriorityLow,
		ExplanatoryFeedback: reply,
	})
}

// composeFeedback picks the learner-facing text in educator mode. Chat and
// actions alike show the interpretation's feedback; the score is never
// echoed into it.
func composeFeedback(in interpret.Interpretation) string {
	return in.ExplanatoryFeedback
}
