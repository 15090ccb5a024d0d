package store

import (
	"testing"

	"entgo.io/ent"
	"entgo.io/ent/dialect/sql/schema"
	"github.com/google/go-cmp/cmp"

	entschema "github.com/abhisek/dentai/ent/schema"
)

type column struct {
	Name   string
	Type   string
	Unique bool
}

func entFields(groups ...[]ent.Field) []column {
	cols := []column{{Name: "id", Type: "int"}}
	for _, fields := range groups {
		for _, f := range fields {
			d := f.Descriptor()
			cols = append(cols, column{Name: d.Name, Type: d.Info.Type.String(), Unique: d.Unique})
		}
	}
	return cols
}

func tableColumns(t *schema.Table) []column {
	cols := make([]column, 0, len(t.Columns))
	for _, c := range t.Columns {
		cols = append(cols, column{Name: c.Name, Type: c.Type.String(), Unique: c.Unique})
	}
	return cols
}

func TestTablesMatchEntSchema(t *testing.T) {
	mixin := entschema.EventMixin{}.Fields()
	tests := []struct {
		table *schema.Table
		want  []column
	}{
		{llmRequestEventsTable, entFields(mixin, entschema.LLMRequestEvent{}.Fields())},
		{turnEventsTable, entFields(mixin, entschema.TurnEvent{}.Fields())},
		{learnerSnapshotsTable, entFields(entschema.Snapshot{}.Fields())},
		{globalSequenceTable, entFields(entschema.Sequence{}.Fields())},
	}
	for _, tt := range tests {
		t.Run(tt.table.Name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tableColumns(tt.table)); diff != "" {
				t.Errorf("columns drifted from ent schema (-ent +table):\n%s", diff)
			}
		})
	}
}

func TestTablesIndexEveryEntIndex(t *testing.T) {
	tests := []struct {
		table   *schema.Table
		indexes []ent.Index
	}{
		{llmRequestEventsTable, append(entschema.EventMixin{}.Indexes(), entschema.LLMRequestEvent{}.Indexes()...)},
		{turnEventsTable, append(entschema.EventMixin{}.Indexes(), entschema.TurnEvent{}.Indexes()...)},
		{learnerSnapshotsTable, entschema.Snapshot{}.Indexes()},
	}
	for _, tt := range tests {
		t.Run(tt.table.Name, func(t *testing.T) {
			have := make(map[string]bool)
			for _, idx := range tt.table.Indexes {
				key := ""
				for _, c := range idx.Columns {
					key += c.Name + ","
				}
				have[key] = true
			}
			for _, idx := range tt.indexes {
				key := ""
				for _, f := range idx.Descriptor().Fields {
					key += f + ","
				}
				if !have[key] {
					t.Errorf("index on %q missing from table", key)
				}
			}
		})
	}
}
