package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/dentai/internal/llm"
	"github.com/abhisek/dentai/internal/scenario"
)

// silentEvaluate asks the second evaluator for an advisory verdict. It
// never fails: absence, errors and panics all yield an empty mapping.
func (a *Agent) silentEvaluate(ctx context.Context, studentText, actionKey string, st scenario.LearnerState) (verdict map[string]any) {
	verdict = map[string]any{}
	if a.validator == nil || a.validatorOff.Load() {
		return verdict
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("silent evaluation panicked",
				zap.String("action", actionKey),
				zap.Any("panic", r))
			verdict = map[string]any{}
		}
	}()

	var rules []string
	if a.rules != nil {
		rules = a.rules.ActiveRules(a.store.Category(st))
	}

	out, err := a.validator.Validate(ctx, studentText, rules, contextSummary(st))
	if err != nil {
		if llm.KindOf(err) == llm.KindNotConfigured {
			a.validatorOff.Store(true)
			a.logger.Warn("second evaluator not configured, silent evaluation disabled", zap.Error(err))
			return verdict
		}
		a.logger.Warn("silent evaluation failed",
			zap.String("action", actionKey),
			zap.Error(err))
		return verdict
	}
	if out == nil {
		return verdict
	}
	return out
}

// contextSummary is the one-line patient description given to the
// second evaluator.
func contextSummary(st scenario.LearnerState) string {
	age := "Bilinmiyor"
	if v, ok := st.PatientValue("age", "yas"); ok {
		age = fmt.Sprint(v)
	}
	complaint := "Belirtilmemiş"
	if v, ok := st.PatientValue("chief_complaint", "sikayet"); ok {
		complaint = fmt.Sprint(v)
	}
	return fmt.Sprintf("Hasta: %s yaşında. Şikayet: %s. Bulgular: %s",
		age, complaint, strings.Join(st.RevealedFindings, ", "))
}
