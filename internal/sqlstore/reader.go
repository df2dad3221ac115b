package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/matthewbaird/walletledger/ent/migrate"
	"github.com/matthewbaird/walletledger/internal/ledger"
)

// timeLayout keeps stored timestamps sortable as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

// reader implements ledger.Reader over the driver or a transaction.
type reader struct {
	q dialect.ExecQuerier
}

// operationSelect joins each wallet reference to its current name.
func operationSelect() *entsql.Selector {
	b := builder()
	o := b.Table(migrate.OperationsTableName)
	w := b.Table(migrate.WalletsTableName).As("w")
	wf := b.Table(migrate.WalletsTableName).As("wf")
	wt := b.Table(migrate.WalletsTableName).As("wt")
	return b.Select(
		o.C("id"), o.C("timestamp"), o.C("username"), o.C("operation_date"),
		o.C("operation_type"), o.C("amount"),
		o.C("accounting_type"), o.C("account_type"), o.C("finish_date"),
		o.C("payment_type"), o.C("comment"),
		o.C("wallet_id"), w.C("name"),
		o.C("wallet_from_id"), wf.C("name"),
		o.C("wallet_to_id"), wt.C("name"),
	).
		From(o).
		LeftJoin(w).On(o.C("wallet_id"), w.C("id")).
		LeftJoin(wf).On(o.C("wallet_from_id"), wf.C("id")).
		LeftJoin(wt).On(o.C("wallet_to_id"), wt.C("id"))
}

func (r reader) GetOperation(ctx context.Context, id int64) (ledger.Operation, error) {
	sel := operationSelect()
	sel.Where(entsql.EQ(sel.C("id"), id))
	ops, err := r.queryOperations(ctx, sel)
	if err != nil {
		return ledger.Operation{}, err
	}
	if len(ops) == 0 {
		return ledger.Operation{}, fmt.Errorf("%w: id %d", ledger.ErrOperationNotFound, id)
	}
	return ops[0], nil
}

func (r reader) ListOperations(ctx context.Context, filter ledger.OperationFilter) ([]ledger.Operation, error) {
	sel := operationSelect()
	if filter.Username != "" {
		sel.Where(entsql.EQ(sel.C("username"), filter.Username))
	}
	sel.OrderBy(entsql.Desc(sel.C("timestamp")), entsql.Desc(sel.C("id")))
	return r.queryOperations(ctx, sel)
}

func (r reader) queryOperations(ctx context.Context, sel *entsql.Selector) ([]ledger.Operation, error) {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.q.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("querying operations: %w", err)
	}
	defer rows.Close()

	var out []ledger.Operation
	for rows.Next() {
		var (
			op                                     ledger.Operation
			ts, opType                             string
			accounting, account, finish, pay, note sql.NullString
			walletID, fromID, toID                 sql.NullInt64
			walletName, fromName, toName           sql.NullString
		)
		if err := rows.Scan(
			&op.ID, &ts, &op.Username, &op.OperationDate, &opType, &op.AmountCents,
			&accounting, &account, &finish, &pay, &note,
			&walletID, &walletName, &fromID, &fromName, &toID, &toName,
		); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("operation %d: bad timestamp %q: %w", op.ID, ts, err)
		}
		op.Timestamp = t
		op.Type = ledger.OperationType(opType)
		op.AccountingType = nullString(accounting)
		op.AccountType = nullString(account)
		op.FinishDate = nullString(finish)
		op.PaymentType = nullString(pay)
		op.Comment = nullString(note)
		op.Wallet = walletRef(walletID, walletName)
		op.WalletFrom = walletRef(fromID, fromName)
		op.WalletTo = walletRef(toID, toName)
		out = append(out, op)
	}
	return out, rows.Err()
}

func (r reader) GetWallet(ctx context.Context, id int64) (ledger.Wallet, error) {
	sel := builder().Select("id", "name", "balance").
		From(builder().Table(migrate.WalletsTableName)).
		Where(entsql.EQ("id", id))
	ws, err := r.queryWallets(ctx, sel)
	if err != nil {
		return ledger.Wallet{}, err
	}
	if len(ws) == 0 {
		return ledger.Wallet{}, fmt.Errorf("%w: id %d", ledger.ErrWalletNotFound, id)
	}
	return ws[0], nil
}

func (r reader) GetWalletByName(ctx context.Context, name string) (ledger.Wallet, error) {
	sel := builder().Select("id", "name", "balance").
		From(builder().Table(migrate.WalletsTableName)).
		Where(entsql.EQ("name", name))
	ws, err := r.queryWallets(ctx, sel)
	if err != nil {
		return ledger.Wallet{}, err
	}
	if len(ws) == 0 {
		return ledger.Wallet{}, fmt.Errorf("%w: %q", ledger.ErrWalletNotFound, name)
	}
	return ws[0], nil
}

func (r reader) ListWallets(ctx context.Context) ([]ledger.Wallet, error) {
	sel := builder().Select("id", "name", "balance").
		From(builder().Table(migrate.WalletsTableName)).
		OrderBy("id")
	return r.queryWallets(ctx, sel)
}

func (r reader) queryWallets(ctx context.Context, sel *entsql.Selector) ([]ledger.Wallet, error) {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.q.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("querying wallets: %w", err)
	}
	defer rows.Close()

	var out []ledger.Wallet
	for rows.Next() {
		var w ledger.Wallet
		if err := rows.Scan(&w.ID, &w.Name, &w.BalanceCents); err != nil {
			return nil, fmt.Errorf("scanning wallet: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func walletRef(id sql.NullInt64, name sql.NullString) *ledger.WalletRef {
	if !id.Valid {
		return nil
	}
	return &ledger.WalletRef{ID: id.Int64, Name: name.String}
}
