// Package sqlstore implements the Ledger Store on SQLite using ent's SQL
// builder and driver. Wallet balances are changed with a single
// UPDATE ... SET balance = balance + ? statement, never read-then-write.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqlgraph"
	"github.com/matthewbaird/walletledger/ent/migrate"
	"github.com/matthewbaird/walletledger/internal/ledger"

	_ "modernc.org/sqlite"
)

// Store implements ledger.Store.
type Store struct {
	reader
	drv *entsql.Driver
}

var _ ledger.Store = (*Store)(nil)

// Open opens the SQLite database at dsn and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps the
	// foreign_keys pragma in effect.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := New(entsql.OpenDB(dialect.SQLite, db))
	if err := migrate.Create(ctx, s.drv); err != nil {
		s.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}
	return s, nil
}

// New wraps an already opened driver. The schema must exist.
func New(drv *entsql.Driver) *Store {
	return &Store{reader: reader{q: drv}, drv: drv}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.drv.Close()
}

// InTx runs fn in a database transaction, committing when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	t, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			t.Rollback()
			panic(p)
		}
	}()

	if err := fn(&tx{reader: reader{q: t}}); err != nil {
		if rerr := t.Rollback(); rerr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

// tx implements ledger.Tx on a driver transaction.
type tx struct {
	reader
}

func builder() *entsql.DialectBuilder { return entsql.Dialect(dialect.SQLite) }

func (t *tx) InsertOperation(ctx context.Context, op ledger.Operation) (int64, error) {
	query, args := builder().Insert(migrate.OperationsTableName).
		Columns(
			"timestamp", "username", "operation_date", "operation_type", "amount",
			"accounting_type", "account_type", "finish_date", "payment_type", "comment",
			"wallet_id", "wallet_from_id", "wallet_to_id",
		).
		Values(
			formatTime(op.Timestamp), op.Username, op.OperationDate, string(op.Type), op.AmountCents,
			nullText(op.AccountingType), nullText(op.AccountType), nullText(op.FinishDate),
			nullText(op.PaymentType), nullText(op.Comment),
			nullRef(op.Wallet), nullRef(op.WalletFrom), nullRef(op.WalletTo),
		).
		Query()

	var res sql.Result
	if err := t.q.Exec(ctx, query, args, &res); err != nil {
		return 0, fmt.Errorf("inserting operation: %w", walletFK(err))
	}
	return res.LastInsertId()
}

func (t *tx) UpdateOperation(ctx context.Context, op ledger.Operation) error {
	u := builder().Update(migrate.OperationsTableName).
		Set("username", op.Username).
		Set("operation_date", op.OperationDate).
		Set("operation_type", string(op.Type)).
		Set("amount", op.AmountCents)
	setText(u, "accounting_type", op.AccountingType)
	setText(u, "account_type", op.AccountType)
	setText(u, "finish_date", op.FinishDate)
	setText(u, "payment_type", op.PaymentType)
	setText(u, "comment", op.Comment)
	setRef(u, "wallet_id", op.Wallet)
	setRef(u, "wallet_from_id", op.WalletFrom)
	setRef(u, "wallet_to_id", op.WalletTo)

	query, args := u.Where(entsql.EQ("id", op.ID)).Query()
	n, err := t.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("updating operation %d: %w", op.ID, walletFK(err))
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ledger.ErrOperationNotFound, op.ID)
	}
	return nil
}

func (t *tx) DeleteOperation(ctx context.Context, id int64) error {
	query, args := builder().Delete(migrate.OperationsTableName).
		Where(entsql.EQ("id", id)).
		Query()
	n, err := t.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("deleting operation %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ledger.ErrOperationNotFound, id)
	}
	return nil
}

func (t *tx) AdjustWalletBalance(ctx context.Context, walletID, delta int64) (int64, error) {
	// The bound keeps SQLite from promoting an overflowing sum to REAL.
	bound := entsql.LTE("balance", int64(math.MaxInt64)-delta)
	if delta < 0 {
		bound = entsql.GTE("balance", int64(math.MinInt64)-delta)
	}
	query, args := builder().Update(migrate.WalletsTableName).
		Add("balance", delta).
		Where(entsql.And(entsql.EQ("id", walletID), bound)).
		Query()
	n, err := t.exec(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("adjusting wallet %d: %w", walletID, err)
	}
	if n == 0 {
		if _, err := t.GetWallet(ctx, walletID); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: balance of wallet %d out of range", ledger.ErrInvalidAmount, walletID)
	}
	w, err := t.GetWallet(ctx, walletID)
	if err != nil {
		return 0, err
	}
	return w.BalanceCents, nil
}

func (t *tx) CreateWallet(ctx context.Context, name string) (ledger.Wallet, error) {
	query, args := builder().Insert(migrate.WalletsTableName).
		Columns("name", "balance").
		Values(name, 0).
		Query()
	var res sql.Result
	if err := t.q.Exec(ctx, query, args, &res); err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return ledger.Wallet{}, fmt.Errorf("%w: %q", ledger.ErrWalletExists, name)
		}
		return ledger.Wallet{}, fmt.Errorf("creating wallet: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ledger.Wallet{}, err
	}
	return ledger.Wallet{ID: id, Name: name}, nil
}

func (t *tx) RenameWallet(ctx context.Context, id int64, name string) (ledger.Wallet, error) {
	query, args := builder().Update(migrate.WalletsTableName).
		Set("name", name).
		Where(entsql.EQ("id", id)).
		Query()
	n, err := t.exec(ctx, query, args)
	if err != nil {
		if sqlgraph.IsUniqueConstraintError(err) {
			return ledger.Wallet{}, fmt.Errorf("%w: %q", ledger.ErrWalletExists, name)
		}
		return ledger.Wallet{}, fmt.Errorf("renaming wallet %d: %w", id, err)
	}
	if n == 0 {
		return ledger.Wallet{}, fmt.Errorf("%w: id %d", ledger.ErrWalletNotFound, id)
	}
	return t.GetWallet(ctx, id)
}

func (t *tx) exec(ctx context.Context, query string, args []any) (int64, error) {
	var res sql.Result
	if err := t.q.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// walletFK maps a foreign key failure on a wallet column to ErrWalletNotFound.
func walletFK(err error) error {
	if sqlgraph.IsForeignKeyConstraintError(err) {
		return fmt.Errorf("%w: %v", ledger.ErrWalletNotFound, err)
	}
	return err
}

func setText(u *entsql.UpdateBuilder, column string, v *string) {
	if v == nil {
		u.SetNull(column)
		return
	}
	u.Set(column, *v)
}

func setRef(u *entsql.UpdateBuilder, column string, r *ledger.WalletRef) {
	if r == nil {
		u.SetNull(column)
		return
	}
	u.Set(column, r.ID)
}

func nullText(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullRef(r *ledger.WalletRef) any {
	if r == nil {
		return nil
	}
	return r.ID
}
