package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/dentai/internal/store"
)

// EventRecorder is the slice of the event store the logging decorator needs.
type EventRecorder interface {
	AppendLLMRequest(ctx context.Context, data store.LLMRequestEventData) error
}

// LoggingProvider is a decorator that records every request as an event
// and emits one debug line per call.
type LoggingProvider struct {
	inner    Provider
	provider string
	events   EventRecorder
	logger   *zap.Logger
}

// WithLogging wraps a Provider with event logging. events may be nil, in
// which case calls are only written to the logger.
func WithLogging(p Provider, providerName string, events EventRecorder, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingProvider{inner: p, provider: providerName, events: events, logger: logger}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	latencyMs := time.Since(start).Milliseconds()

	data := store.LLMRequestEventData{
		Provider:    l.provider,
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		TurnID:      TurnFrom(ctx),
		LatencyMs:   latencyMs,
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Model = resp.Model
		data.ResponseBody = resp.Text
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}

	l.logger.Debug("llm call",
		zap.String("purpose", purpose),
		zap.String("turn_id", data.TurnID),
		zap.String("model", data.Model),
		zap.Int64("latency_ms", latencyMs),
		zap.Stringer("error_kind", KindOf(err)),
	)

	if l.events != nil {
		// A failed write never fails the request.
		if logErr := l.events.AppendLLMRequest(context.WithoutCancel(ctx), data); logErr != nil {
			l.logger.Warn("failed to record LLM request event", zap.Error(logErr))
		}
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		b.WriteString(fmt.Sprintf("[%s]\n", m.Role))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	if req.Schema != nil {
		schemaDef, err := json.Marshal(req.Schema.Definition)
		if err == nil {
			b.WriteString(fmt.Sprintf("[schema: %s]\n", req.Schema.Name))
			b.WriteString(string(schemaDef))
			b.WriteString("\n")
		}
	}

	return b.String()
}
