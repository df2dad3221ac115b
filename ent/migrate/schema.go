// Package migrate declares the ledger tables and creates them with ent's
// schema migrator.
package migrate

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	// WalletsTableName holds the wallet rows, keyed by a stable surrogate id.
	WalletsTableName = "wallets"
	// OperationsTableName holds the operation rows.
	OperationsTableName = "operations"
	// ActivityEntriesTableName holds the per-entity event history. It is
	// not an ent entity.
	ActivityEntriesTableName = "activity_entries"
)

var (
	// WalletsColumns holds the columns for the "wallets" table.
	WalletsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "name", Type: field.TypeString, Unique: true},
		{Name: "balance", Type: field.TypeInt64, Default: 0, Comment: "cents"},
	}
	// WalletsTable holds the schema information for the "wallets" table.
	WalletsTable = &schema.Table{
		Name:       WalletsTableName,
		Columns:    WalletsColumns,
		PrimaryKey: []*schema.Column{WalletsColumns[0]},
	}
	// OperationsColumns holds the columns for the "operations" table.
	OperationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "timestamp", Type: field.TypeString},
		{Name: "username", Type: field.TypeString},
		{Name: "operation_date", Type: field.TypeString},
		{Name: "operation_type", Type: field.TypeEnum, Enums: []string{"Income", "Expense", "Transfer"}},
		{Name: "amount", Type: field.TypeInt64, Comment: "magnitude in cents"},
		{Name: "accounting_type", Type: field.TypeString, Nullable: true},
		{Name: "account_type", Type: field.TypeString, Nullable: true},
		{Name: "finish_date", Type: field.TypeString, Nullable: true},
		{Name: "payment_type", Type: field.TypeString, Nullable: true},
		{Name: "comment", Type: field.TypeString, Nullable: true},
		{Name: "wallet_id", Type: field.TypeInt64, Nullable: true},
		{Name: "wallet_from_id", Type: field.TypeInt64, Nullable: true},
		{Name: "wallet_to_id", Type: field.TypeInt64, Nullable: true},
	}
	// OperationsTable holds the schema information for the "operations" table.
	OperationsTable = &schema.Table{
		Name:       OperationsTableName,
		Columns:    OperationsColumns,
		PrimaryKey: []*schema.Column{OperationsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "operations_wallets_wallet",
				Columns:    []*schema.Column{OperationsColumns[11]},
				RefColumns: []*schema.Column{WalletsColumns[0]},
				OnDelete:   schema.Restrict,
			},
			{
				Symbol:     "operations_wallets_wallet_from",
				Columns:    []*schema.Column{OperationsColumns[12]},
				RefColumns: []*schema.Column{WalletsColumns[0]},
				OnDelete:   schema.Restrict,
			},
			{
				Symbol:     "operations_wallets_wallet_to",
				Columns:    []*schema.Column{OperationsColumns[13]},
				RefColumns: []*schema.Column{WalletsColumns[0]},
				OnDelete:   schema.Restrict,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "operation_username_timestamp",
				Unique:  false,
				Columns: []*schema.Column{OperationsColumns[2], OperationsColumns[1]},
			},
		},
	}
	// ActivityEntriesColumns holds the columns for the "activity_entries" table.
	ActivityEntriesColumns = []*schema.Column{
		{Name: "event_id", Type: field.TypeString},
		{Name: "event_type", Type: field.TypeString},
		{Name: "occurred_at", Type: field.TypeString},
		{Name: "indexed_entity_type", Type: field.TypeString},
		{Name: "indexed_entity_id", Type: field.TypeString},
		{Name: "entity_role", Type: field.TypeString},
		{Name: "source_refs", Type: field.TypeString, Default: "[]"},
		{Name: "summary", Type: field.TypeString},
		{Name: "category", Type: field.TypeString},
		{Name: "payload", Type: field.TypeString, Nullable: true},
	}
	// ActivityEntriesTable holds the schema information for the "activity_entries" table.
	ActivityEntriesTable = &schema.Table{
		Name:    ActivityEntriesTableName,
		Columns: ActivityEntriesColumns,
		PrimaryKey: []*schema.Column{
			ActivityEntriesColumns[3], ActivityEntriesColumns[4], ActivityEntriesColumns[2], ActivityEntriesColumns[0],
		},
		Indexes: []*schema.Index{
			{
				Name:    "activity_entity_category_time",
				Unique:  false,
				Columns: []*schema.Column{ActivityEntriesColumns[3], ActivityEntriesColumns[4], ActivityEntriesColumns[8], ActivityEntriesColumns[2]},
			},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		WalletsTable,
		OperationsTable,
		ActivityEntriesTable,
	}
)

func init() {
	for _, fk := range OperationsTable.ForeignKeys {
		fk.RefTable = WalletsTable
	}
}

// Create runs the schema migration on the given driver. It only adds
// missing tables, columns and indexes.
func Create(ctx context.Context, drv dialect.Driver, opts ...schema.MigrateOption) error {
	opts = append([]schema.MigrateOption{schema.WithForeignKeys(true)}, opts...)
	m, err := schema.NewMigrate(drv, opts...)
	if err != nil {
		return fmt.Errorf("ent/migrate: %w", err)
	}
	return m.Create(ctx, Tables...)
}
