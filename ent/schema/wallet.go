package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Wallet holds the schema definition for the Wallet entity.
type Wallet struct {
	ent.Schema
}

// Fields of the Wallet.
func (Wallet) Fields() []ent.Field {
	return []ent.Field{
		field.String("name").
			NotEmpty().
			Unique().
			Comment("Display name; operations refer to the wallet by id"),
		field.Int64("balance").
			Default(0).
			Comment("Signed sum of live operation effects, in cents"),
	}
}

// Edges of the Wallet.
func (Wallet) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("operations", Operation.Type),
		edge.To("transfers_out", Operation.Type),
		edge.To("transfers_in", Operation.Type),
	}
}
