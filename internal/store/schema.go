package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table definitions mirror ent/schema. TestTablesMatchEntSchema keeps
// the two in step.

// textSize makes ent declare the column as unbounded text.
const textSize = 2147483647

var (
	llmRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeInt64},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "turn_id", Type: field.TypeString, Default: ""},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: textSize, Default: ""},
	}
	llmRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    llmRequestEventsColumns,
		PrimaryKey: []*schema.Column{llmRequestEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_sequence", Columns: []*schema.Column{llmRequestEventsColumns[1]}},
			{Name: "llmrequestevent_timestamp", Columns: []*schema.Column{llmRequestEventsColumns[2]}},
			{Name: "llmrequestevent_provider", Columns: []*schema.Column{llmRequestEventsColumns[3]}},
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{llmRequestEventsColumns[5]}},
			{Name: "llmrequestevent_success", Columns: []*schema.Column{llmRequestEventsColumns[10]}},
			{Name: "llmrequestevent_turn_id", Columns: []*schema.Column{llmRequestEventsColumns[6]}},
		},
	}

	turnEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeInt64},
		{Name: "turn_id", Type: field.TypeString, Unique: true},
		{Name: "learner_id", Type: field.TypeString},
		{Name: "case_id", Type: field.TypeString},
		{Name: "mode", Type: field.TypeString},
		{Name: "raw_text", Type: field.TypeString, Size: textSize},
		{Name: "intent_type", Type: field.TypeString, Default: ""},
		{Name: "interpreted_action", Type: field.TypeString, Default: ""},
		{Name: "source", Type: field.TypeString, Default: ""},
		{Name: "score", Type: field.TypeFloat64, Default: 0},
		{Name: "rule_outcome", Type: field.TypeString, Default: ""},
		{Name: "final_feedback", Type: field.TypeString, Size: textSize},
		{Name: "silent_eval", Type: field.TypeString, Size: textSize, Default: "{}"},
		{Name: "state", Type: field.TypeString, Size: textSize, Default: "{}"},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
	}
	turnEventsTable = &schema.Table{
		Name:       "turn_events",
		Columns:    turnEventsColumns,
		PrimaryKey: []*schema.Column{turnEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "turnevent_sequence", Columns: []*schema.Column{turnEventsColumns[1]}},
			{Name: "turnevent_timestamp", Columns: []*schema.Column{turnEventsColumns[2]}},
			{Name: "turnevent_learner_id_sequence", Columns: []*schema.Column{turnEventsColumns[4], turnEventsColumns[1]}},
			{Name: "turnevent_source", Columns: []*schema.Column{turnEventsColumns[10]}},
		},
	}

	learnerSnapshotsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "learner_id", Type: field.TypeString, Unique: true},
		{Name: "updated_at", Type: field.TypeInt64},
		{Name: "data", Type: field.TypeString, Size: textSize},
	}
	learnerSnapshotsTable = &schema.Table{
		Name:       "learner_snapshots",
		Columns:    learnerSnapshotsColumns,
		PrimaryKey: []*schema.Column{learnerSnapshotsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "snapshot_updated_at", Columns: []*schema.Column{learnerSnapshotsColumns[2]}},
		},
	}

	globalSequenceColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "next_val", Type: field.TypeInt64, Default: 1},
	}
	globalSequenceTable = &schema.Table{
		Name:       "global_sequence",
		Columns:    globalSequenceColumns,
		PrimaryKey: []*schema.Column{globalSequenceColumns[0]},
	}

	tables = []*schema.Table{
		llmRequestEventsTable,
		turnEventsTable,
		learnerSnapshotsTable,
		globalSequenceTable,
	}
)

// migrate brings the database up to the current tables with ent's
// migration engine. Existing data is kept.
func migrate(ctx context.Context, drv *entsql.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("create migration: %w", err)
	}
	if err := m.Create(ctx, tables...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
