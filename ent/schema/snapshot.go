package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Snapshot holds the latest state document of one learner, so a restart
// resumes the conversation without replaying turns.
type Snapshot struct {
	ent.Schema
}

func (Snapshot) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "learner_snapshots"},
	}
}

func (Snapshot) Fields() []ent.Field {
	return []ent.Field{
		field.String("learner_id").
			Unique(),
		field.Int64("updated_at").
			DefaultFunc(func() int64 { return time.Now().UnixMilli() }).
			Comment("Unix milliseconds of the last save"),
		field.Text("data").
			Comment("Full learner state as JSON"),
	}
}

func (Snapshot) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("updated_at"),
	}
}
