package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotConfigured is returned when no provider could be built, usually
// because credentials are missing. Callers degrade instead of failing.
var ErrNotConfigured = errors.New("LLM provider not configured")

// ErrRateLimit indicates the provider returned a rate limit or quota error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the model returned content that does not
// conform to the requested schema.
type ErrInvalidResponse struct {
	Content string
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down, unreachable or
// did not answer in time.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded indicates the response was truncated because it
// hit the MaxTokens limit.
type ErrMaxTokensExceeded struct {
	Content string
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}

// ErrorKind classifies a Generate failure so callers can branch on it.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindRateLimited
	KindUnavailable
	KindNotConfigured
	KindInvalidResponse
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	case KindNotConfigured:
		return "not_configured"
	case KindInvalidResponse:
		return "invalid_response"
	default:
		return "other"
	}
}

// KindOf maps an error returned by a Provider to its ErrorKind.
// Rate limiting wins over everything else so a wrapped 429 is never
// mistaken for a generic outage.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var rl *ErrRateLimit
	if errors.As(err, &rl) {
		return KindRateLimited
	}
	if errors.Is(err, ErrNotConfigured) {
		return KindNotConfigured
	}

	var inv *ErrInvalidResponse
	var maxTok *ErrMaxTokensExceeded
	if errors.As(err, &inv) || errors.As(err, &maxTok) {
		return KindInvalidResponse
	}

	var unavail *ErrProviderUnavailable
	if errors.As(err, &unavail) || errors.Is(err, context.DeadlineExceeded) {
		return KindUnavailable
	}
	return KindOther
}
