package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// TurnEvent records one learner turn as processed by the agent.
type TurnEvent struct {
	ent.Schema
}

func (TurnEvent) Mixin() []ent.Mixin {
	return []ent.Mixin{EventMixin{}}
}

func (TurnEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("turn_id").
			Unique().
			Immutable(),
		field.String("learner_id"),
		field.String("case_id"),
		field.String("mode").
			Comment("educator or patient"),
		field.Text("raw_text"),
		field.String("intent_type").
			Default(""),
		field.String("interpreted_action").
			Default(""),
		field.String("source").
			Default("").
			Comment("Interpretation source: model, chat_reply, quota_mock, offline_mock, error"),
		field.Float("score").
			Default(0),
		field.String("rule_outcome").
			Default(""),
		field.Text("final_feedback"),
		field.Text("silent_eval").
			Default("{}").
			Comment("Background evaluation as JSON"),
		field.Text("state").
			Default("{}").
			Comment("Learner state after the turn as JSON"),
		field.Int64("latency_ms").
			Default(0),
	}
}

func (TurnEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("learner_id", "sequence"),
		index.Fields("source"),
	}
}
