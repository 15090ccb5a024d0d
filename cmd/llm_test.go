package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/dentai/internal/store"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "dentai.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	repo := s.EventRepo()
	require.NoError(t, repo.AppendLLMRequest(ctx, store.LLMRequestEventData{
		Provider: "gemini", Model: "gemini-2.5-flash-lite", Purpose: "interpret", TurnID: "turn-1",
		InputTokens: 120, OutputTokens: 30, LatencyMs: 250, Success: true,
		RequestBody: "[user]\nAteşini ölçüyorum", ResponseBody: `{"intent_type":"ACTION"}`,
	}))
	require.NoError(t, repo.AppendLLMRequest(ctx, store.LLMRequestEventData{
		Provider: "gemini", Model: "gemini-2.5-flash-lite", Purpose: "validate", TurnID: "turn-1",
		LatencyMs: 90, ErrorMessage: "rate limited",
	}))
	require.NoError(t, repo.AppendLLMRequest(ctx, store.LLMRequestEventData{
		Provider: "gemini", Model: "gemini-2.5-flash-lite", Purpose: "interpret", TurnID: "turn-2",
		LatencyMs: 50, ErrorMessage: "quota",
	}))
	require.NoError(t, repo.AppendTurn(ctx, store.TurnEventData{
		TurnID: "turn-1", LearnerID: "s1", CaseID: "olp_001", Mode: "educator",
		RawText: "Ateşini ölçüyorum", IntentType: "ACTION", InterpretedAction: "check_vital_signs",
		Source: "model", Score: 5, RuleOutcome: "correct", FinalFeedback: "Vital bulgular normal.",
	}))
	require.NoError(t, repo.AppendTurn(ctx, store.TurnEventData{
		TurnID: "turn-2", LearnerID: "s1", CaseID: "olp_001", Mode: "educator",
		RawText: "Biyopsi alıyorum", IntentType: "ACTION", InterpretedAction: "perform_biopsy",
		Source: "quota_mock", FinalFeedback: "Kota doldu.",
	}))
	return s
}

func TestWriteLLMEvent_ShowsTriggeringTurn(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	events, err := s.EventRepo().QueryLLMEvents(ctx, store.QueryOpts{Purpose: "interpret", TurnID: "turn-1"})
	require.NoError(t, err)
	require.Len(t, events, 1)

	turn, err := s.EventRepo().GetTurn(ctx, events[0].TurnID)
	require.NoError(t, err)

	var out bytes.Buffer
	writeLLMEvent(&out, &events[0], turn)
	got := out.String()
	assert.Contains(t, got, "learner=s1  case=olp_001  mode=educator")
	assert.Contains(t, got, "Student:  Ateşini ölçüyorum")
	assert.Contains(t, got, "ACTION check_vital_signs (source: model)")
	assert.Contains(t, got, `{"intent_type":"ACTION"}`)
}

func TestWriteLLMEvent_OutsideTurn(t *testing.T) {
	var out bytes.Buffer
	writeLLMEvent(&out, &store.LLMEvent{ID: 7, LLMRequestEventData: store.LLMRequestEventData{Purpose: "roleplay", Success: true}}, nil)
	assert.Contains(t, out.String(), "(made outside a turn)")
	assert.Contains(t, out.String(), "(not captured)")
}

func TestWriteStepUsage_PipelineOrderAndFailures(t *testing.T) {
	s := seededStore(t)
	usage, err := s.EventRepo().LLMUsageByPurpose(context.Background())
	require.NoError(t, err)

	var out bytes.Buffer
	writeStepUsage(&out, usage)
	lines := strings.Split(out.String(), "\n")

	var steps []string
	for _, l := range lines {
		if f := strings.Fields(l); len(f) > 0 && (f[0] == "interpret" || f[0] == "validate") {
			steps = append(steps, strings.Join(f[:4], " "))
		}
	}
	assert.Equal(t, []string{"interpret 2 1 50.0%", "validate 1 1 100.0%"}, steps)
}

func TestWriteSources_CountsFallbacks(t *testing.T) {
	s := seededStore(t)
	counts, err := s.EventRepo().TurnsBySource(context.Background())
	require.NoError(t, err)

	var out bytes.Buffer
	writeSources(&out, counts)
	got := out.String()
	assert.Contains(t, got, "Fallbacks: 1 of 2 turns (50.0%)")
	assert.Regexp(t, `quota_mock\s+1\s+50\.0%\s+fallback`, got)
}

func TestWriteLLMEvents_Empty(t *testing.T) {
	var out bytes.Buffer
	writeLLMEvents(&out, nil)
	assert.Equal(t, "No LLM events found.\n", out.String())
}

func TestOrderSteps(t *testing.T) {
	got := orderSteps([]store.PurposeUsage{{Purpose: "unknown"}, {Purpose: "validate"}, {Purpose: "interpret"}})
	var names []string
	for _, u := range got {
		names = append(names, u.Purpose)
	}
	assert.Equal(t, []string{"interpret", "validate", "unknown"}, names)
}
