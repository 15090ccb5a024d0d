package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is checked in TestFileDatabaseUsesWAL.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		require.NoError(t, db.QueryRow("PRAGMA "+tt.pragma).Scan(&got), tt.pragma)
		assert.Equal(t, tt.want, got, "PRAGMA %s", tt.pragma)
	}
}

func TestFileDatabaseUsesWAL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dentai.db")
	require.NoError(t, EnsureDir(path))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var mode string
	require.NoError(t, s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)

	for _, table := range []string{"llm_request_events", "turn_events", "learner_snapshots", "global_sequence"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		got, err := s.seq.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLLMEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	events := []LLMRequestEventData{
		{Provider: "gemini", Model: "gemini-2.5-flash-lite", Purpose: "interpret", TurnID: "t1", InputTokens: 100, OutputTokens: 40, LatencyMs: 300, Success: true, RequestBody: "[user]\nAteşini ölçüyorum", ResponseBody: `{"intent_type":"ACTION"}`},
		{Provider: "gemini", Model: "gemini-2.5-flash-lite", Purpose: "roleplay", InputTokens: 80, OutputTokens: 20, LatencyMs: 200, Success: true},
		{Provider: "gemini", Model: "gemini-2.5-flash-lite", Purpose: "interpret", LatencyMs: 100, Success: false, ErrorMessage: "rate limited"},
	}
	for _, e := range events {
		require.NoError(t, repo.AppendLLMRequest(ctx, e))
	}

	all, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "rate limited", all[0].ErrorMessage, "newest first")
	assert.Greater(t, all[0].Sequence, all[2].Sequence)

	interp, err := repo.QueryLLMEvents(ctx, QueryOpts{Purpose: "interpret", Limit: 1})
	require.NoError(t, err)
	require.Len(t, interp, 1)
	assert.False(t, interp[0].Success)

	byTurn, err := repo.QueryLLMEvents(ctx, QueryOpts{TurnID: "t1"})
	require.NoError(t, err)
	require.Len(t, byTurn, 1)
	assert.Equal(t, all[2].ID, byTurn[0].ID)

	got, err := repo.GetLLMEvent(ctx, all[2].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, `{"intent_type":"ACTION"}`, got.ResponseBody)
	assert.Equal(t, "t1", got.TurnID)
	assert.WithinDuration(t, time.Now(), got.Timestamp, time.Minute)

	missing, err := repo.GetLLMEvent(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byPurpose, err := repo.LLMUsageByPurpose(ctx)
	require.NoError(t, err)
	require.Len(t, byPurpose, 2)
	assert.Equal(t, PurposeUsage{Purpose: "interpret", Calls: 2, InputTokens: 100, OutputTokens: 40, AvgLatencyMs: 200, Failures: 1}, byPurpose[0])
	assert.Equal(t, PurposeUsage{Purpose: "roleplay", Calls: 1, InputTokens: 80, OutputTokens: 20, AvgLatencyMs: 200}, byPurpose[1])

	byModel, err := repo.LLMUsageByModel(ctx)
	require.NoError(t, err)
	require.Len(t, byModel, 1)
	assert.Equal(t, ModelUsage{Model: "gemini-2.5-flash-lite", Calls: 2, InputTokens: 180, OutputTokens: 60}, byModel[0])
}

func TestTurnEvents(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	require.NoError(t, repo.AppendTurn(ctx, TurnEventData{
		TurnID: "t1", LearnerID: "s1", CaseID: "olp_001", Mode: "patient",
		RawText: "Merhaba", IntentType: "CHAT", InterpretedAction: "general_chat", Source: "offline_mock",
		FinalFeedback: "Merhaba hocam.",
	}))
	require.NoError(t, repo.AppendTurn(ctx, TurnEventData{
		TurnID: "t2", LearnerID: "s2", CaseID: "olp_001", Mode: "educator",
		RawText: "Ateşini ölçüyorum", IntentType: "ACTION", InterpretedAction: "check_vital_signs", Source: "model",
		Score: 5, RuleOutcome: "correct", FinalFeedback: "Eylem yorumlandı",
		SilentEval: `{"is_clinically_accurate":true}`, State: `{"current_score":5}`,
	}))

	turns, err := repo.QueryTurns(ctx, QueryOpts{LearnerID: "s2"})
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "check_vital_signs", turns[0].InterpretedAction)
	assert.Equal(t, 5.0, turns[0].Score)
	assert.Equal(t, `{"current_score":5}`, turns[0].State)

	all, err := repo.QueryTurns(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "{}", all[1].SilentEval, "empty documents default to {}")

	after, err := repo.QueryTurns(ctx, QueryOpts{After: all[1].Sequence})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "t2", after[0].TurnID)

	err = repo.AppendTurn(ctx, TurnEventData{TurnID: "t1", LearnerID: "s1", CaseID: "x", Mode: "patient", RawText: "dup", FinalFeedback: "dup"})
	assert.Error(t, err, "turn ids are unique")

	turn, err := repo.GetTurn(ctx, "t2")
	require.NoError(t, err)
	require.NotNil(t, turn)
	assert.Equal(t, "model", turn.Source)
	assert.Equal(t, "Ateşini ölçüyorum", turn.RawText)

	missing, err := repo.GetTurn(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	sources, err := repo.TurnsBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, []SourceCount{
		{Mode: "educator", Source: "model", Turns: 1},
		{Mode: "patient", Source: "offline_mock", Turns: 1},
	}, sources)
}

func TestLLMEventsInterleaveWithTurns(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	require.NoError(t, repo.AppendLLMRequest(ctx, LLMRequestEventData{Provider: "gemini", Model: "m", Purpose: "interpret", TurnID: "t1", Success: true}))
	require.NoError(t, repo.AppendTurn(ctx, TurnEventData{TurnID: "t1", LearnerID: "s1", CaseID: "c", Mode: "educator", RawText: "x", FinalFeedback: "y"}))

	calls, err := repo.QueryLLMEvents(ctx, QueryOpts{})
	require.NoError(t, err)
	turns, err := repo.QueryTurns(ctx, QueryOpts{TurnID: "t1"})
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Less(t, calls[0].Sequence, turns[0].Sequence, "one sequence spans both tables")
}

func TestSnapshots(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	snap, err := repo.Latest(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, repo.Save(ctx, &Snapshot{LearnerID: "s1", UpdatedAt: old, Data: []byte(`{"current_score":1}`)}))
	require.NoError(t, repo.Save(ctx, &Snapshot{LearnerID: "s1", Data: []byte(`{"current_score":3}`)}))
	require.NoError(t, repo.Save(ctx, &Snapshot{LearnerID: "s2", UpdatedAt: old, Data: []byte(`{}`)}))

	snap, err = repo.Latest(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.JSONEq(t, `{"current_score":3}`, string(snap.Data), "save upserts")

	pruned, err := repo.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	require.NoError(t, repo.Delete(ctx, "s1"))
	require.NoError(t, repo.Delete(ctx, "s1"))
	snap, err = repo.Latest(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSnapshotUpdate(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, "s1", func(cur *Snapshot) (*Snapshot, error) {
		assert.Nil(t, cur)
		return &Snapshot{Data: []byte(`{"n":1}`)}, nil
	}))
	snap, err := repo.Latest(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.JSONEq(t, `{"n":1}`, string(snap.Data))

	require.NoError(t, repo.Update(ctx, "s1", func(cur *Snapshot) (*Snapshot, error) {
		return nil, nil
	}), "nil result writes nothing")

	boom := fmt.Errorf("boom")
	err = repo.Update(ctx, "s1", func(cur *Snapshot) (*Snapshot, error) {
		return &Snapshot{Data: []byte(`{"n":99}`)}, boom
	})
	assert.ErrorIs(t, err, boom)
	snap, err = repo.Latest(ctx, "s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(snap.Data), "failed update rolled back")
}

// Two Stores on one file stand in for two processes: each has its own
// connection pool, so only SQLite's locking keeps their writes apart.
func TestSnapshotUpdate_SeparateConnectionsDoNotLoseWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dentai.db")
	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(path)
	require.NoError(t, err)
	defer b.Close()

	increment := func(cur *Snapshot) (*Snapshot, error) {
		n := 0
		if cur != nil {
			n, _ = strconv.Atoi(string(cur.Data))
		}
		return &Snapshot{Data: []byte(strconv.Itoa(n + 1))}, nil
	}

	const perStore = 25
	ctx := context.Background()
	var wg sync.WaitGroup
	for _, s := range []*Store{a, b} {
		repo := s.SnapshotRepo()
		for i := 0; i < perStore; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.Update(ctx, "s1", increment))
			}()
		}
	}
	wg.Wait()

	snap, err := a.SnapshotRepo().Latest(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, strconv.Itoa(2*perStore), string(snap.Data))
}

func TestDefaultDBPath_Env(t *testing.T) {
	want := filepath.Join(t.TempDir(), "db", "custom.db")
	t.Setenv("DENTAI_DB", want)

	got, err := DefaultDBPath()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.DirExists(t, filepath.Dir(want))
}
