package scenario

import (
	"fmt"
	"strings"
)

// firstPresent returns the value of the first alias key that holds a
// non-empty value. Empty strings, empty lists and empty maps count as
// absent so that a blank English key falls through to its Turkish alias.
func firstPresent(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || isEmpty(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// stringOf renders a scalar alias value as text.
func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	}
	return fmt.Sprint(v)
}

// stringsOf renders a list-or-scalar alias value as a list of lines.
func stringsOf(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringOf(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	}
	return []string{stringOf(v)}
}
