package evaluator

import "github.com/abhisek/dentai/internal/llm"

// VerdictSchema defines the JSON schema for clinical validation responses.
var VerdictSchema = &llm.Schema{
	Name:        "clinical-verdict",
	Description: "Independent clinical accuracy and safety check of a dental student's action",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_clinically_accurate": map[string]any{
				"type":        "boolean",
				"description": "Whether the student's action is clinically correct for this patient",
			},
			"safety_violation": map[string]any{
				"type":        "boolean",
				"description": "Whether the action breaks one of the listed safety rules",
			},
			"missing_critical_info": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Critical information the student should have gathered first",
			},
			"feedback": map[string]any{
				"type":        "string",
				"description": "One or two sentences of feedback in Turkish",
			},
		},
		"required":             []any{"is_clinically_accurate", "safety_violation", "feedback"},
		"additionalProperties": false,
	},
}
