package llm

import "context"

type contextKey string

const (
	purposeKey contextKey = "llm_purpose"
	turnKey    contextKey = "llm_turn"
)

// Purpose labels used by the pipeline steps.
const (
	PurposeInterpret = "interpret"
	PurposeRoleplay  = "roleplay"
	PurposeValidate  = "validate"
)

// WithPurpose attaches a purpose label to the context for event logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithTurn tags model calls made under ctx with the turn that caused them.
func WithTurn(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, turnKey, turnID)
}

// TurnFrom returns the turn id set by WithTurn, or "".
func TurnFrom(ctx context.Context) string {
	v, _ := ctx.Value(turnKey).(string)
	return v
}
