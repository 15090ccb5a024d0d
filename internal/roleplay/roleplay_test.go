package roleplay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/abhisek/dentai/internal/llm"
	"github.com/abhisek/dentai/internal/scenario"
)

func testStore() *scenario.Store {
	return scenario.NewStore(scenario.NewCatalog(scenario.Case{
		"case_id": "olp_001",
		"patient": map[string]any{"age": 45.0, "chief_complaint": "Yanağımda beyaz çizgiler var"},
	}), nil, nil)
}

func TestReply_UsesPersonaAndLooseSampling(t *testing.T) {
	mock := llm.MockText("  Birkaç aydır yanağımda yanma var hocam.  ")
	r := New(mock, testStore(), nil)

	got := r.Reply(context.Background(), "Şikayetiniz ne zaman başladı?", "olp_001")
	if got != "Birkaç aydır yanağımda yanma var hocam." {
		t.Errorf("reply = %q", got)
	}

	req := mock.LastCall()
	if req.JSON || req.Schema != nil {
		t.Error("roleplay must not ask for JSON")
	}
	if req.Temperature != 0.7 || req.TopP != 0.9 || req.TopK != 40 || req.MaxTokens != 200 {
		t.Errorf("sampling = %+v", req)
	}
	prompt := req.Messages[0].Content
	for _, want := range []string{"Yanağımda beyaz çizgiler var", "\"Şikayetiniz ne zaman başladı?\"", "HASTA OLARAK YANIT VER"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestReply_UnknownCaseUsesGenericPersona(t *testing.T) {
	mock := llm.MockText("Merhaba.")
	New(mock, testStore(), nil).Reply(context.Background(), "Merhaba", "missing")

	if !strings.HasPrefix(mock.LastCall().Messages[0].Content, scenario.GenericPersona) {
		t.Error("generic persona not used for unknown case")
	}
}

func TestReply_Fallbacks(t *testing.T) {
	tests := []struct {
		name     string
		provider llm.Provider
		want     string
	}{
		{"empty output", llm.MockText("   "), NotUnderstood},
		{"provider error", llm.NewMockProvider(llm.MockResponse{Err: errors.New("boom")}), Unwell},
		{"rate limited", llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{}}), Unwell},
		{"no provider", nil, Unwell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.provider, testStore(), nil).Reply(context.Background(), "Ağrınız var mı?", "olp_001")
			if got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}

type panickingPersonas struct{}

func (panickingPersonas) Persona(string) string { panic("broken catalog") }

func TestReply_RecoversPanics(t *testing.T) {
	got := New(llm.MockText("x"), panickingPersonas{}, nil).Reply(context.Background(), "q", "c")
	if got != Unwell {
		t.Errorf("reply = %q, want %q", got, Unwell)
	}
}
