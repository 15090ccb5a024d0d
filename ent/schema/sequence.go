package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
)

// Sequence is the single-row counter behind EventMixin's sequence field.
type Sequence struct {
	ent.Schema
}

func (Sequence) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "global_sequence"},
	}
}

func (Sequence) Fields() []ent.Field {
	return []ent.Field{
		field.Int64("next_val").
			Default(1),
	}
}
