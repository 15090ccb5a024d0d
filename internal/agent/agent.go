// Package agent runs one learner turn through interpretation, rule
// assessment, silent evaluation and state merge. It is the only entry
// point front ends call.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/dentai/internal/assess"
	"github.com/abhisek/dentai/internal/evaluator"
	"github.com/abhisek/dentai/internal/interpret"
	"github.com/abhisek/dentai/internal/llm"
	"github.com/abhisek/dentai/internal/roleplay"
	"github.com/abhisek/dentai/internal/scenario"
	"github.com/abhisek/dentai/internal/store"
)

// ErrNoLearner is returned for a turn without a learner id.
var ErrNoLearner = errors.New("learner id is required")

// TurnRecorder persists processed turns. store.EventRepo satisfies it.
type TurnRecorder interface {
	AppendTurn(ctx context.Context, data store.TurnEventData) error
}

// Config wires the agent's collaborators. Store, Interpreter, Evaluator
// and Responder are required.
type Config struct {
	Store       *scenario.Store
	Interpreter *interpret.Interpreter
	Evaluator   assess.Evaluator
	Responder   *roleplay.Responder

	// Rules supplies guideline rules to the second evaluator.
	Rules assess.RuleSource
	// Validator is the second evaluator. Nil means it is unavailable.
	Validator evaluator.Validator
	// Recorder, when set, receives every processed turn.
	Recorder TurnRecorder

	MeterProvider metric.MeterProvider
	Logger        *zap.Logger
}

// Agent orchestrates learner turns. It is safe for concurrent use.
type Agent struct {
	store       *scenario.Store
	interpreter *interpret.Interpreter
	evaluator   assess.Evaluator
	responder   *roleplay.Responder
	rules       assess.RuleSource
	validator   evaluator.Validator
	recorder    TurnRecorder
	metrics     *turnMetrics
	logger      *zap.Logger

	validatorOff atomic.Bool
}

// New creates an Agent.
func New(cfg Config) (*Agent, error) {
	if cfg.Store == nil || cfg.Interpreter == nil || cfg.Evaluator == nil || cfg.Responder == nil {
		return nil, errors.New("agent: store, interpreter, evaluator and responder are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := newTurnMetrics(cfg.MeterProvider)
	if err != nil {
		return nil, err
	}
	if cfg.Validator == nil {
		logger.Warn("second evaluator unavailable, silent evaluation disabled")
	}
	return &Agent{
		store:       cfg.Store,
		interpreter: cfg.Interpreter,
		evaluator:   cfg.Evaluator,
		responder:   cfg.Responder,
		rules:       cfg.Rules,
		validator:   cfg.Validator,
		recorder:    cfg.Recorder,
		metrics:     m,
		logger:      logger,
	}, nil
}

// Store returns the scenario store the agent works on.
func (a *Agent) Store() *scenario.Store {
	return a.store
}

// chainResult is what the scoring chain managed to produce. Fields stay
// zero when the chain stopped before reaching them.
type chainResult struct {
	interpretation *interpret.Interpretation
	assessment     assess.Assessment
	silent         map[string]any
	state          *scenario.LearnerState
	err            error
}

// ProcessTurn runs one turn. It fails only when the request is invalid or
// the learner's state cannot be loaded; every other problem degrades.
func (a *Agent) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	start := time.Now()
	if req.LearnerID == "" {
		return nil, ErrNoLearner
	}
	turnID := uuid.NewString()
	ctx = llm.WithTurn(ctx, turnID)

	var st scenario.LearnerState
	var err error
	if req.CaseID != "" {
		st, err = a.store.SetCase(ctx, req.LearnerID, req.CaseID)
	} else {
		st, err = a.store.State(ctx, req.LearnerID)
	}
	if err != nil {
		return nil, fmt.Errorf("load learner state: %w", err)
	}

	res := &TurnResult{
		TurnID:    turnID,
		LearnerID: req.LearnerID,
		CaseID:    st.CaseID,
		Mode:      req.Mode,
	}

	var chain chainResult
	if req.Mode == ModeEducator {
		chain = a.educatorTurn(ctx, req, st, res)
	} else {
		chain = a.patientTurn(ctx, req, st, res)
	}

	if chain.state != nil {
		res.State = *chain.state
	} else if latest, err := a.store.State(ctx, req.LearnerID); err == nil {
		res.State = latest
	} else {
		res.State = st
	}

	degraded := chain.err != nil || res.Interpretation.Fallback()
	if res.Interpretation.Fallback() {
		a.metrics.recordFallback(ctx, res.Interpretation.Source)
	}
	elapsed := time.Since(start)
	a.metrics.recordTurn(ctx, res, degraded, elapsed)
	a.record(ctx, req, res, elapsed)
	return res, nil
}

// patientTurn answers in character while scoring runs alongside. The
// reply never depends on the scoring chain.
func (a *Agent) patientTurn(ctx context.Context, req TurnRequest, st scenario.LearnerState, res *TurnResult) chainResult {
	var reply string
	var chain chainResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reply = a.responder.Reply(gctx, req.Text, st.CaseID)
		return nil
	})
	g.Go(func() error {
		chain = a.scoreTurn(gctx, req, st)
		return nil
	})
	_ = g.Wait()

	if chain.err != nil {
		a.logger.Warn("background scoring failed",
			zap.String("learner_id", req.LearnerID),
			zap.String("case_id", st.CaseID),
			zap.Error(chain.err))
	}

	res.FinalFeedback = reply
	if chain.interpretation != nil {
		res.Interpretation = *chain.interpretation
	} else {
		res.Interpretation = placeholderInterpretation(reply)
	}
	res.Assessment = chain.assessment
	if res.Assessment == nil {
		res.Assessment = assess.Assessment{}
	}
	res.SilentEvaluation = chain.silent
	if res.SilentEvaluation == nil {
		res.SilentEvaluation = map[string]any{}
	}
	return chain
}

// educatorTurn shows the interpretation's feedback directly.
func (a *Agent) educatorTurn(ctx context.Context, req TurnRequest, st scenario.LearnerState, res *TurnResult) chainResult {
	chain := a.scoreTurn(ctx, req, st)
	if chain.err != nil {
		a.logger.Error("turn scoring incomplete",
			zap.String("learner_id", req.LearnerID),
			zap.String("case_id", st.CaseID),
			zap.Error(chain.err))
	}

	if chain.interpretation != nil {
		res.Interpretation = *chain.interpretation
	} else {
		res.Interpretation = interpret.Normalize(interpret.Interpretation{
			IntentType:          interpret.IntentChat,
			InterpretedAction:   interpret.ActionError,
			Priority:            interpret.PriorityLow,
			ExplanatoryFeedback: interpret.TechnicalError,
			Source:              interpret.SourceError,
		})
	}
	res.Assessment = chain.assessment
	if res.Assessment == nil {
		res.Assessment = assess.Assessment{"score": 0.0, "rule_outcome": assess.OutcomeRuleFailed}
	}
	res.SilentEvaluation = chain.silent
	if res.SilentEvaluation == nil {
		res.SilentEvaluation = map[string]any{}
	}
	res.FinalFeedback = composeFeedback(res.Interpretation)
	return chain
}

// scoreTurn runs interpret, assess, silent evaluation and state merge in
// that order, stopping at the first failure. Panics become errors.
func (a *Agent) scoreTurn(ctx context.Context, req TurnRequest, st scenario.LearnerState) (out chainResult) {
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("scoring panicked: %v", r)
		}
	}()

	in := a.interpreter.Interpret(ctx, req.Text, st)
	out.interpretation = &in

	assessment, err := a.evaluator.EvaluateAction(ctx, st.CaseID, in)
	if err != nil {
		out.err = fmt.Errorf("evaluate action: %w", err)
		return out
	}
	if assessment == nil {
		assessment = assess.Assessment{}
	}
	out.assessment = assessment

	out.silent = a.silentEvaluate(ctx, req.Text, in.InterpretedAction, st)

	if delta := assessment.StateDelta(); delta != nil {
		updated, err := a.store.Update(ctx, req.LearnerID, delta)
		if err != nil {
			out.err = fmt.Errorf("merge state: %w", err)
			return out
		}
		out.state = &updated
	}
	return out
}

func (a *Agent) record(ctx context.Context, req TurnRequest, res *TurnResult, elapsed time.Duration) {
	if a.recorder == nil {
		return
	}
	silent, _ := json.Marshal(res.SilentEvaluation)
	state, _ := json.Marshal(res.State)
	err := a.recorder.AppendTurn(ctx, store.TurnEventData{
		TurnID:            res.TurnID,
		LearnerID:         res.LearnerID,
		CaseID:            res.CaseID,
		Mode:              res.Mode.String(),
		RawText:           req.Text,
		IntentType:        string(res.Interpretation.IntentType),
		InterpretedAction: res.Interpretation.InterpretedAction,
		Source:            string(res.Interpretation.Source),
		Score:             res.Assessment.Score(),
		RuleOutcome:       res.Assessment.Outcome(),
		FinalFeedback:     res.FinalFeedback,
		SilentEval:        string(silent),
		State:             string(state),
		LatencyMs:         elapsed.Milliseconds(),
	})
	if err != nil {
		a.logger.Warn("failed to record turn", zap.String("turn_id", res.TurnID), zap.Error(err))
	}
}
