package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit     int       // max results (0 = unlimited)
	After     int64     // sequence > After
	From      time.Time // timestamp >= From
	Purpose   string    // LLM events only
	LearnerID string    // turn events only
	TurnID    string    // exact turn
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	TurnID       string // empty for calls outside a turn
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates LLM calls by purpose label.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
	Failures     int
}

// ModelUsage aggregates LLM calls by model id.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// TurnEventData captures one learner turn as processed by the agent.
// SilentEval and State are JSON documents.
type TurnEventData struct {
	TurnID            string
	LearnerID         string
	CaseID            string
	Mode              string
	RawText           string
	IntentType        string
	InterpretedAction string
	Source            string // how the interpretation was produced
	Score             float64
	RuleOutcome       string
	FinalFeedback     string
	SilentEval        string
	State             string
	LatencyMs         int64
}

// TurnEvent is a stored turn.
type TurnEvent struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	TurnEventData
}

// SourceCount counts turns per mode and interpretation source.
type SourceCount struct {
	Mode   string
	Source string
	Turns  int
}

// EventRepo provides append and query access to the event log.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns LLM events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEvent, error)

	// LLMUsageByPurpose aggregates token usage per purpose label.
	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)

	// LLMUsageByModel aggregates token usage per model.
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)

	// AppendTurn records a processed turn.
	AppendTurn(ctx context.Context, data TurnEventData) error

	// QueryTurns returns turns, newest first.
	QueryTurns(ctx context.Context, opts QueryOpts) ([]TurnEvent, error)

	// GetTurn returns one turn by its id, or nil if it does not exist.
	GetTurn(ctx context.Context, turnID string) (*TurnEvent, error)

	// TurnsBySource counts turns per mode and interpretation source.
	TurnsBySource(ctx context.Context) ([]SourceCount, error)
}

// Snapshot is the latest persisted state document of one learner.
type Snapshot struct {
	LearnerID string
	UpdatedAt time.Time
	Data      []byte
}

// SnapshotRepo keeps one state document per learner.
type SnapshotRepo interface {
	// Save upserts the learner's snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the learner's snapshot, or nil if none exists.
	Latest(ctx context.Context, learnerID string) (*Snapshot, error)

	// Update reads the learner's snapshot and writes fn's result in one
	// write transaction. cur is nil for unknown learners; a nil result
	// leaves the row untouched.
	Update(ctx context.Context, learnerID string, fn func(cur *Snapshot) (*Snapshot, error)) error

	// Delete removes the learner's snapshot. Missing rows are not an error.
	Delete(ctx context.Context, learnerID string) error

	// Prune deletes snapshots not updated since before.
	Prune(ctx context.Context, before time.Time) (int64, error)
}
