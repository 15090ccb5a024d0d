// Package extract pulls a single JSON document out of free-form model output.
package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	jsonFence   = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	anyFence    = regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```")
	greedyBrace = regexp.MustCompile(`(?s)(\{.*\})`)
)

// ErrNoJSON is returned by Decode when the text holds no JSON candidate.
var ErrNoJSON = errors.New("no JSON object found")

// JSON returns the first JSON candidate found in text, trying in order:
// the whole trimmed text, a ```json fence, any ``` fence, and finally the
// widest {...} span. The last candidate is returned without validation,
// so callers still have to handle a failed decode.
//
// JSON is idempotent: JSON(out) == out for every out it returns. A brace
// span can itself contain a fence, so the search is repeated on its own
// result until it settles. Each repeat yields a strictly shorter
// substring, which bounds the loop.
func JSON(text string) (string, bool) {
	out, ok := candidate(text)
	if !ok {
		return "", false
	}
	for {
		next, ok := candidate(out)
		if !ok || next == out {
			return out, true
		}
		out = next
	}
}

func candidate(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if json.Valid([]byte(text)) {
		return text, true
	}

	for _, re := range []*regexp.Regexp{jsonFence, anyFence} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		c := strings.TrimSpace(m[1])
		if json.Valid([]byte(c)) {
			return c, true
		}
	}

	if m := greedyBrace.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// Decode extracts the JSON candidate from text and unmarshals it into v.
func Decode(text string, v any) error {
	candidate, ok := JSON(text)
	if !ok {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(candidate), v)
}
