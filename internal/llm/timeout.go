package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutProvider bounds every Generate call. A call that runs out of time
// fails with ErrProviderUnavailable like any other outage.
type TimeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout wraps p so that each call is cancelled after d.
// A non-positive d returns p unchanged.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &TimeoutProvider{inner: p, timeout: d}
}

func (t *TimeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.inner.Generate(ctx, req)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && KindOf(err) != KindRateLimited {
		return nil, &ErrProviderUnavailable{Err: fmt.Errorf("no response within %s: %w", t.timeout, err)}
	}
	return resp, err
}

func (t *TimeoutProvider) ModelID() string {
	return t.inner.ModelID()
}
