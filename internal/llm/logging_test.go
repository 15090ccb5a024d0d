package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhisek/dentai/internal/store"
)

type recordingEvents struct {
	mu     sync.Mutex
	events []store.LLMRequestEventData
	err    error
}

func (r *recordingEvents) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
	return r.err
}

func TestLogging_RecordsSuccess(t *testing.T) {
	events := &recordingEvents{}
	mock := NewMockProvider(MockResponse{Text: `{"intent_type":"CHAT"}`, Usage: Usage{InputTokens: 12, OutputTokens: 4}})
	p := WithLogging(mock, "gemini", events, nil)

	ctx := WithTurn(WithPurpose(context.Background(), PurposeInterpret), "turn-1")
	if _, err := p.Generate(ctx, UserPrompt("sys", "Merhaba")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.events))
	}
	e := events.events[0]
	if e.Purpose != PurposeInterpret || e.Provider != "gemini" || e.TurnID != "turn-1" || !e.Success {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.InputTokens != 12 || e.OutputTokens != 4 {
		t.Fatalf("unexpected token counts: %+v", e)
	}
	if !strings.Contains(e.RequestBody, "[user]\nMerhaba") {
		t.Fatalf("request body missing prompt: %q", e.RequestBody)
	}
	if e.ResponseBody != `{"intent_type":"CHAT"}` {
		t.Fatalf("unexpected response body: %q", e.ResponseBody)
	}
}

func TestLogging_RecordsFailureAndKeepsError(t *testing.T) {
	events := &recordingEvents{}
	mock := NewMockProvider(MockResponse{Err: &ErrRateLimit{Err: errors.New("quota")}})
	p := WithLogging(mock, "gemini", events, nil)

	_, err := p.Generate(context.Background(), Request{})
	if KindOf(err) != KindRateLimited {
		t.Fatalf("expected rate limit to pass through, got %v", err)
	}
	if events.events[0].Success || events.events[0].ErrorMessage == "" {
		t.Fatalf("expected failed event with message, got %+v", events.events[0])
	}
}

func TestLogging_StoreFailureIsOnlyWarned(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	events := &recordingEvents{err: errors.New("disk full")}
	p := WithLogging(MockText("ok"), "gemini", events, zap.New(core))

	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logs.FilterMessage("failed to record LLM request event").Len() != 1 {
		t.Fatalf("expected one warning, got %v", logs.All())
	}
}

func TestLogging_NilRecorder(t *testing.T) {
	p := WithLogging(MockText("ok"), "gemini", nil, nil)
	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
