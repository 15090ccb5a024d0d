// Package roleplay lets the model answer as the case's patient.
package roleplay

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/dentai/internal/llm"
)

// Fallback replies. The learner never sees a technical error here.
const (
	NotUnderstood = "Hocam, tam anlayamadım. Tekrar sorar mısınız?"
	Unwell        = "Üzgünüm, şu anda kendimi iyi hissetmiyorum."
)

// DefaultSampling is looser than interpretation: prose, not JSON.
func DefaultSampling() llm.Sampling {
	return llm.Sampling{
		Temperature: 0.7,
		TopP:        0.9,
		TopK:        40,
		MaxTokens:   200,
	}
}

// PersonaSource resolves the roleplay instruction for a case.
type PersonaSource interface {
	Persona(caseID string) string
}

// Responder produces patient replies.
type Responder struct {
	provider llm.Provider
	personas PersonaSource
	sampling llm.Sampling
	logger   *zap.Logger
}

// New creates a Responder. A nil provider answers every question with
// the Unwell fallback.
func New(provider llm.Provider, personas PersonaSource, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{provider: provider, personas: personas, sampling: DefaultSampling(), logger: logger}
}

// Reply answers question in character for caseID.
func (r *Responder) Reply(ctx context.Context, question, caseID string) (reply string) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("roleplay panicked", zap.Any("panic", p))
			reply = Unwell
		}
	}()

	if r.provider == nil {
		return Unwell
	}

	ctx = llm.WithPurpose(ctx, llm.PurposeRoleplay)
	req := r.sampling.Apply(llm.UserPrompt("", buildPrompt(r.personas.Persona(caseID), question)))

	resp, err := r.provider.Generate(ctx, req)
	if err != nil {
		r.logger.Warn("patient reply failed",
			zap.String("case_id", caseID),
			zap.Stringer("kind", llm.KindOf(err)),
			zap.Error(err))
		return Unwell
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return NotUnderstood
	}
	return text
}

func buildPrompt(persona, question string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nÖĞRENCİ DOKTORUN SORUSU:\n\"")
	b.WriteString(question)
	b.WriteString("\"\n\nHASTA OLARAK YANIT VER (kısa, doğal, Türkçe):")
	return b.String()
}
