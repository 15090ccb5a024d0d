package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var turnEventColumns = []string{
	"id", "sequence", "timestamp", "turn_id", "learner_id", "case_id", "mode",
	"raw_text", "intent_type", "interpreted_action", "source", "score",
	"rule_outcome", "final_feedback", "silent_eval", "state", "latency_ms",
}

func (r *eventRepo) AppendTurn(ctx context.Context, data TurnEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return err
	}

	silent := data.SilentEval
	if silent == "" {
		silent = "{}"
	}
	state := data.State
	if state == "" {
		state = "{}"
	}

	q, args := sqlite().Insert(turnEventsTable.Name).
		Columns(turnEventColumns[1:]...).
		Values(seqNum, time.Now().UnixMilli(), data.TurnID, data.LearnerID, data.CaseID,
			data.Mode, data.RawText, data.IntentType, data.InterpretedAction, data.Source,
			data.Score, data.RuleOutcome, data.FinalFeedback, silent, state, data.LatencyMs).
		Query()
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save turn event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryTurns(ctx context.Context, opts QueryOpts) ([]TurnEvent, error) {
	b := sqlite()
	sel := b.Select(turnEventColumns...).From(b.Table(turnEventsTable.Name))
	if opts.LearnerID != "" {
		sel.Where(entsql.EQ("learner_id", opts.LearnerID))
	}
	if opts.TurnID != "" {
		sel.Where(entsql.EQ("turn_id", opts.TurnID))
	}
	q, args := applyCommon(sel, opts).Query()

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []TurnEvent
	for rows.Next() {
		e, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *eventRepo) GetTurn(ctx context.Context, turnID string) (*TurnEvent, error) {
	b := sqlite()
	q, args := b.Select(turnEventColumns...).
		From(b.Table(turnEventsTable.Name)).
		Where(entsql.EQ("turn_id", turnID)).
		Query()
	e, err := scanTurn(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *eventRepo) TurnsBySource(ctx context.Context) ([]SourceCount, error) {
	b := sqlite()
	q, args := b.Select("mode", "source", entsql.As(entsql.Count("*"), "turns")).
		From(b.Table(turnEventsTable.Name)).
		GroupBy("mode", "source").
		OrderBy("mode", entsql.Desc("turns"), "source").
		Query()

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query turns by source: %w", err)
	}
	defer rows.Close()

	var out []SourceCount
	for rows.Next() {
		var c SourceCount
		if err := rows.Scan(&c.Mode, &c.Source, &c.Turns); err != nil {
			return nil, fmt.Errorf("scan source count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanTurn(s scanner) (*TurnEvent, error) {
	var e TurnEvent
	var ts int64
	err := s.Scan(&e.ID, &e.Sequence, &ts, &e.TurnID, &e.LearnerID, &e.CaseID,
		&e.Mode, &e.RawText, &e.IntentType, &e.InterpretedAction, &e.Source, &e.Score,
		&e.RuleOutcome, &e.FinalFeedback, &e.SilentEval, &e.State, &e.LatencyMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan turn: %w", err)
	}
	e.Timestamp = time.UnixMilli(ts).UTC()
	return &e, nil
}
