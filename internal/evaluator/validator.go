// Package evaluator is the second, independent clinical check of a
// learner's action. Its verdict is advisory and never changes the score.
package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"go.uber.org/zap"

	"github.com/abhisek/dentai/internal/extract"
	"github.com/abhisek/dentai/internal/llm"
)

// Validator checks a learner's raw text against the active guideline rules.
type Validator interface {
	Validate(ctx context.Context, studentText string, rules []string, contextSummary string) (map[string]any, error)
}

// Config holds generation settings for the validator.
type Config struct {
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   384,
		Temperature: 0.1,
	}
}

// LLMValidator asks a model for a schema-conforming verdict.
type LLMValidator struct {
	provider llm.Provider
	cfg      Config
}

// NewLLMValidator creates a validator over provider.
func NewLLMValidator(provider llm.Provider, cfg Config) *LLMValidator {
	return &LLMValidator{provider: provider, cfg: cfg}
}

// New builds the validator from its own provider configuration. It fails
// when the provider cannot be built, including missing credentials; the
// caller then runs without a second evaluator.
func New(ctx context.Context, cfg llm.Config, events llm.EventRecorder, logger *zap.Logger) (*LLMValidator, error) {
	provider, err := llm.NewProvider(ctx, cfg, events, logger)
	if err != nil {
		return nil, fmt.Errorf("clinical validator: %w", err)
	}
	return NewLLMValidator(provider, DefaultConfig()), nil
}

type validationInput struct {
	StudentText    string
	Rules          []string
	ContextSummary string
}

// Validate returns the verdict as a plain mapping.
func (v *LLMValidator) Validate(ctx context.Context, studentText string, rules []string, contextSummary string) (map[string]any, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeValidate)

	userMsg, err := buildValidationMessage(validationInput{
		StudentText:    studentText,
		Rules:          rules,
		ContextSummary: contextSummary,
	})
	if err != nil {
		return nil, fmt.Errorf("build validation prompt: %w", err)
	}

	req := llm.UserPrompt(validationSystemPrompt, userMsg)
	req.Schema = VerdictSchema
	req.MaxTokens = v.cfg.MaxTokens
	req.Temperature = v.cfg.Temperature

	resp, err := v.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("clinical validation failed: %w", err)
	}

	raw, ok := extract.JSON(resp.Text)
	if !ok {
		return nil, &llm.ErrInvalidResponse{Content: resp.Text, Err: extract.ErrNoJSON}
	}
	if err := llm.ValidateJSON(VerdictSchema, raw); err != nil {
		return nil, err
	}

	var verdict map[string]any
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse validation response: %w", err)
	}
	return verdict, nil
}

const validationSystemPrompt = `You are a senior oral medicine clinician reviewing a dental student's step in a simulated patient encounter.

Instructions:
- Judge only the student's action against the patient context and the listed rules.
- safety_violation is true only when the action breaks a listed rule or endangers the patient.
- missing_critical_info lists what the student should have asked or checked first (may be empty).
- Write feedback in Turkish, at most two sentences.
- Return JSON only.`

var validationUserTemplate = template.Must(template.New("validation").Parse(`Patient context: {{.ContextSummary}}

Active rules:
{{range .Rules}}- {{.}}
{{else}}- (no category rules)
{{end}}
Student action: {{.StudentText}}`))

func buildValidationMessage(in validationInput) (string, error) {
	var buf bytes.Buffer
	if err := validationUserTemplate.Execute(&buf, in); err != nil {
		return "", err
	}
	return buf.String(), nil
}
