package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// snapshotRepo implements SnapshotRepo with one row per learner.
type snapshotRepo struct {
	db *sql.DB
}

// execQuerier is satisfied by *sql.DB and *sql.Conn.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *snapshotRepo) Save(ctx context.Context, snap *Snapshot) error {
	return saveSnapshot(ctx, r.db, snap)
}

func (r *snapshotRepo) Latest(ctx context.Context, learnerID string) (*Snapshot, error) {
	return latestSnapshot(ctx, r.db, learnerID)
}

// Update runs fn inside a BEGIN IMMEDIATE transaction. The write lock is
// taken before the read, so writers in other processes queue on
// busy_timeout instead of overwriting each other.
func (r *snapshotRepo) Update(ctx context.Context, learnerID string, fn func(cur *Snapshot) (*Snapshot, error)) (err error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin snapshot update: %w", err)
	}
	defer func() {
		if err != nil {
			conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		}
	}()

	cur, err := latestSnapshot(ctx, conn, learnerID)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	if next != nil {
		next.LearnerID = learnerID
		if err := saveSnapshot(ctx, conn, next); err != nil {
			return err
		}
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit snapshot update: %w", err)
	}
	return nil
}

func (r *snapshotRepo) Delete(ctx context.Context, learnerID string) error {
	q, args := sqlite().Delete(learnerSnapshotsTable.Name).
		Where(entsql.EQ("learner_id", learnerID)).
		Query()
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepo) Prune(ctx context.Context, before time.Time) (int64, error) {
	q, args := sqlite().Delete(learnerSnapshotsTable.Name).
		Where(entsql.LT("updated_at", before.UnixMilli())).
		Query()
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

func saveSnapshot(ctx context.Context, db execQuerier, snap *Snapshot) error {
	updated := snap.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	q, args := sqlite().Insert(learnerSnapshotsTable.Name).
		Columns("learner_id", "updated_at", "data").
		Values(snap.LearnerID, updated.UnixMilli(), string(snap.Data)).
		OnConflict(entsql.ConflictColumns("learner_id"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func latestSnapshot(ctx context.Context, db execQuerier, learnerID string) (*Snapshot, error) {
	b := sqlite()
	q, args := b.Select("updated_at", "data").
		From(b.Table(learnerSnapshotsTable.Name)).
		Where(entsql.EQ("learner_id", learnerID)).
		Query()

	var updated int64
	var data string
	if err := db.QueryRowContext(ctx, q, args...).Scan(&updated, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	return &Snapshot{
		LearnerID: learnerID,
		UpdatedAt: time.UnixMilli(updated).UTC(),
		Data:      []byte(data),
	}, nil
}
