package evaluator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/abhisek/dentai/internal/llm"
)

var _ Validator = (*LLMValidator)(nil)

func TestValidator_ReturnsVerdict(t *testing.T) {
	mock := llm.MockText(`{"is_clinically_accurate":false,"safety_violation":true,"missing_critical_info":["alerji öyküsü"],"feedback":"Önce alerji sorgulanmalı."}`)
	v := NewLLMValidator(mock, DefaultConfig())

	verdict, err := v.Validate(context.Background(), "Amoksisilin yazıyorum",
		[]string{"Antibiyotik seçiminde alerji kontrolü ZORUNLU"},
		"Hasta: 19 yaşında. Şikayet: Ağızda yaralar. Bulgular: ")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if verdict["safety_violation"] != true {
		t.Errorf("safety_violation = %v, want true", verdict["safety_violation"])
	}
	if verdict["is_clinically_accurate"] != false {
		t.Errorf("is_clinically_accurate = %v, want false", verdict["is_clinically_accurate"])
	}
	if verdict["feedback"] != "Önce alerji sorgulanmalı." {
		t.Errorf("feedback = %v", verdict["feedback"])
	}
}

func TestValidator_RequestCarriesContext(t *testing.T) {
	mock := llm.MockText(`{"is_clinically_accurate":true,"safety_violation":false,"feedback":"Uygun."}`)
	v := NewLLMValidator(mock, DefaultConfig())

	_, err := v.Validate(context.Background(), "Ağız içi muayene yapıyorum",
		[]string{"Sistemik tutulum mutlaka sorgulanmalı"}, "Hasta: 45 yaşında.")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	req := mock.LastCall()
	if req.Schema != VerdictSchema {
		t.Error("request does not carry the verdict schema")
	}
	if req.System != validationSystemPrompt {
		t.Error("system prompt not sent")
	}
	msg := req.Messages[0].Content
	for _, want := range []string{"Hasta: 45 yaşında.", "- Sistemik tutulum mutlaka sorgulanmalı", "Ağız içi muayene yapıyorum"} {
		if !strings.Contains(msg, want) {
			t.Errorf("prompt missing %q:\n%s", want, msg)
		}
	}
}

func TestValidator_NoRulesPlaceholder(t *testing.T) {
	msg, err := buildValidationMessage(validationInput{StudentText: "x", ContextSummary: "y"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "(no category rules)") {
		t.Errorf("missing placeholder:\n%s", msg)
	}
}

func TestValidator_Errors(t *testing.T) {
	tests := []struct {
		name string
		resp llm.MockResponse
		kind llm.ErrorKind
	}{
		{"provider error", llm.MockResponse{Err: &llm.ErrProviderUnavailable{}}, llm.KindUnavailable},
		{"no JSON", llm.MockResponse{Text: "Bilmiyorum"}, llm.KindInvalidResponse},
		{"schema mismatch", llm.MockResponse{Text: `{"feedback":"eksik"}`}, llm.KindInvalidResponse},
		{"extra field", llm.MockResponse{Text: `{"is_clinically_accurate":true,"safety_violation":false,"feedback":"ok","score":3}`}, llm.KindInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewLLMValidator(llm.NewMockProvider(tt.resp), DefaultConfig())
			_, err := v.Validate(context.Background(), "x", nil, "y")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := llm.KindOf(err); got != tt.kind {
				t.Errorf("KindOf = %v, want %v (%v)", got, tt.kind, err)
			}
		})
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	cfg := llm.DefaultConfig()
	v, err := New(context.Background(), cfg, nil, nil)
	if v != nil {
		t.Error("validator built without credentials")
	}
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
