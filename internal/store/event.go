package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	entsql "entgo.io/ent/dialect/sql"
)

// sequenceCounter hands out one monotonic sequence shared by every event
// table, so LLM calls and turns can be ordered against each other.
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level.
type sequenceCounter struct {
	mu sync.Mutex
	db *sql.DB
}

// newSequenceCounter seeds the single counter row if it is missing.
func newSequenceCounter(ctx context.Context, db *sql.DB) (*sequenceCounter, error) {
	q, args := sqlite().Insert(globalSequenceTable.Name).
		Columns("id", "next_val").
		Values(1, 1).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()
	if _, err := db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}
	return &sequenceCounter{db: db}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var seq int64
	err := sc.db.QueryRowContext(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}

// eventRepo implements EventRepo with ent's SQL builders.
type eventRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

// applyCommon adds the filters shared by both event tables.
func applyCommon(sel *entsql.Selector, opts QueryOpts) *entsql.Selector {
	if opts.After > 0 {
		sel.Where(entsql.GT("sequence", opts.After))
	}
	if !opts.From.IsZero() {
		sel.Where(entsql.GTE("timestamp", opts.From.UnixMilli()))
	}
	sel.OrderBy(entsql.Desc("sequence"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}
	return sel
}

type scanner interface {
	Scan(dest ...any) error
}
