package extract

import (
	"errors"
	"testing"
)

func TestJSON(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"surrounding whitespace", "  \n{\"a\":1}\n ", `{"a":1}`, true},
		{"json fence in prose", "Here you go:\n```json {\"a\":1} ```\nThanks", `{"a":1}`, true},
		{"json fence multiline", "```json\n{\n  \"intent_type\": \"CHAT\"\n}\n```", "{\n  \"intent_type\": \"CHAT\"\n}", true},
		{"plain fence", "```\n{\"b\":2}\n```", `{"b":2}`, true},
		{"json fence preferred over plain", "```\n{\"b\":2}\n```\n```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"invalid json fence falls through to plain", "```json\n{bad}\n```", `{bad}`, true},
		{"greedy span", `The answer is {"a":{"b":1}} as requested.`, `{"a":{"b":1}}`, true},
		{"greedy span unvalidated", `prefix {not json} suffix`, `{not json}`, true},
		{"non-object JSON", `42`, `42`, true},
		{"plain prose", "Merhaba hocam, nasılsınız?", "", false},
		{"empty", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := JSON(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("JSON(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Fatalf("JSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestJSON_Idempotent(t *testing.T) {
	inputs := []string{
		`{"a":1}`,
		"noise ```json {\"a\":[1,2]} ``` noise",
		"```\n{\"b\":2}\n```",
		`x {"a":1} y {"b":2} z`,
		`prefix {not json} suffix`,
		"{ \"nested\": {\"k\": \"v\"} }",
		"```{```{}```}",
		"{ ```json {\"a\":1} ``` }",
	}
	for _, in := range inputs {
		first, ok := JSON(in)
		if !ok {
			t.Fatalf("JSON(%q) found nothing", in)
		}
		second, ok := JSON(first)
		if !ok || second != first {
			t.Fatalf("JSON not idempotent for %q: %q then %q", in, first, second)
		}
	}
}

func TestJSON_BraceSpanHoldingFence(t *testing.T) {
	got, ok := JSON("```{```{}```}")
	if !ok || got != "{}" {
		t.Fatalf("JSON = %q, %v; want %q", got, ok, "{}")
	}
}

func FuzzJSON_Idempotent(f *testing.F) {
	for _, seed := range []string{
		`{"a":1}`,
		"```{```{}```}",
		"```json\n{\"intent_type\":\"CHAT\"}\n```",
		`x {"a":1} y {"b":2} z`,
		"{ ```json {\"a\":1} ``` }",
		"Merhaba hocam",
	} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		first, ok := JSON(in)
		if !ok {
			return
		}
		second, ok := JSON(first)
		if !ok || second != first {
			t.Fatalf("JSON not idempotent for %q: %q then %q", in, first, second)
		}
	})
}

func TestDecode(t *testing.T) {
	var out struct {
		IntentType string `json:"intent_type"`
	}
	if err := Decode("```json\n{\"intent_type\":\"ACTION\"}\n```", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.IntentType != "ACTION" {
		t.Fatalf("got %q, want ACTION", out.IntentType)
	}

	if err := Decode("no braces here", &out); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
	if err := Decode("text {broken: json} text", &out); err == nil {
		t.Fatal("expected unmarshal error for unvalidated candidate")
	}
}
