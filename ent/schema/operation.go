package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Operation holds the schema definition for the Operation entity.
// Income and Expense set wallet_id; Transfer sets wallet_from_id and
// wallet_to_id.
type Operation struct {
	ent.Schema
}

// Fields of the Operation.
func (Operation) Fields() []ent.Field {
	return []ent.Field{
		field.String("timestamp").
			Immutable().
			Comment("Creation instant, UTC with nanoseconds, so it sorts as text"),
		field.String("username").
			NotEmpty(),
		field.String("operation_date").
			Comment("YYYY-MM-DD"),
		field.Enum("operation_type").
			Values("Income", "Expense", "Transfer"),
		field.Int64("amount").
			NonNegative().
			Comment("Magnitude in cents; the type decides the sign"),
		field.String("accounting_type").Optional().Nillable(),
		field.String("account_type").Optional().Nillable(),
		field.String("finish_date").Optional().Nillable(),
		field.String("payment_type").Optional().Nillable(),
		field.String("comment").Optional().Nillable(),
		field.Int64("wallet_id").Optional().Nillable(),
		field.Int64("wallet_from_id").Optional().Nillable(),
		field.Int64("wallet_to_id").Optional().Nillable(),
	}
}

// Edges of the Operation.
func (Operation) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("wallet", Wallet.Type).
			Ref("operations").
			Field("wallet_id").
			Unique(),
		edge.From("wallet_from", Wallet.Type).
			Ref("transfers_out").
			Field("wallet_from_id").
			Unique(),
		edge.From("wallet_to", Wallet.Type).
			Ref("transfers_in").
			Field("wallet_to_id").
			Unique(),
	}
}

// Indexes of the Operation.
func (Operation) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("username", "timestamp"),
	}
}
