// Package interpret turns a learner's free text into a normalized,
// scorable Interpretation. The model is the primary path; a keyword table
// stands in whenever the model is rate limited or not configured.
package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/abhisek/dentai/internal/extract"
	"github.com/abhisek/dentai/internal/llm"
	"github.com/abhisek/dentai/internal/scenario"
)

// ShortReplyLimit is the length below which a non-JSON model reply is
// taken as a conversational answer instead of a failure.
const ShortReplyLimit = 200

var errNullObject = errors.New("model returned null instead of an object")

// DefaultSampling is the strict configuration for interpretation calls.
func DefaultSampling() llm.Sampling {
	return llm.Sampling{
		Temperature: 0.2,
		TopP:        0.9,
		TopK:        40,
		MaxTokens:   512,
		JSON:        true,
	}
}

// Interpreter drives the model with the interpretation contract.
type Interpreter struct {
	provider llm.Provider
	sampling llm.Sampling
	logger   *zap.Logger
}

// New creates an Interpreter. A nil provider means the model is not
// configured and every turn is served by Mock.
func New(provider llm.Provider, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{provider: provider, sampling: DefaultSampling(), logger: logger}
}

// Interpret never fails: any problem degrades to a mock or a CHAT/error
// record, and the result always carries non-empty feedback.
func (i *Interpreter) Interpret(ctx context.Context, raw string, st scenario.LearnerState) (out Interpretation) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("interpretation panicked", zap.Any("panic", r))
			out = chatInterpretation(ActionError, TechnicalError, SourceError)
		}
	}()

	if i.provider == nil {
		return i.degrade(raw, llm.ErrNotConfigured)
	}

	text, err := i.generate(ctx, raw, st)
	if err != nil {
		return i.degrade(raw, err)
	}

	js, ok := extract.JSON(text)
	if !ok {
		reply := strings.TrimSpace(text)
		if reply != "" && utf8.RuneCountInString(reply) < ShortReplyLimit {
			return chatInterpretation(ActionGeneralChat, reply, SourceChatReply)
		}
		return i.degrade(raw, &llm.ErrInvalidResponse{Content: text, Err: extract.ErrNoJSON})
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(js), &m); err != nil {
		return i.degrade(raw, &llm.ErrInvalidResponse{Content: js, Err: err})
	}
	if m == nil {
		return i.degrade(raw, &llm.ErrInvalidResponse{Content: js, Err: errNullObject})
	}
	in := fromMap(m)
	in.Source = SourceModel
	return in
}

func (i *Interpreter) generate(ctx context.Context, raw string, st scenario.LearnerState) (string, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeInterpret)

	prompt, err := buildUserPrompt(raw, st)
	if err != nil {
		return "", fmt.Errorf("build interpretation prompt: %w", err)
	}
	resp, err := i.provider.Generate(ctx, i.sampling.Apply(llm.UserPrompt(SystemPrompt, prompt)))
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// degrade picks the fallback for a failed model call by error kind.
func (i *Interpreter) degrade(raw string, err error) Interpretation {
	kind := llm.KindOf(err)
	switch kind {
	case llm.KindRateLimited:
		i.logger.Warn("interpretation rate limited, using keyword fallback", zap.Error(err))
		return mockWithNotice(raw, QuotaNotice, SourceQuota)
	case llm.KindNotConfigured:
		i.logger.Debug("no model configured, using keyword fallback")
		return mockWithNotice(raw, OfflineNotice, SourceOffline)
	}
	i.logger.Warn("interpretation failed",
		zap.Stringer("kind", kind),
		zap.Error(err))
	return chatInterpretation(ActionError, TechnicalError, SourceError)
}

func mockWithNotice(raw, notice string, src Source) (out Interpretation) {
	defer func() {
		if r := recover(); r != nil {
			out = chatInterpretation(ActionError, QuotaExhausted, src)
		}
	}()
	out = Mock(raw)
	out.ExplanatoryFeedback = notice + out.ExplanatoryFeedback
	out.Source = src
	return out
}
