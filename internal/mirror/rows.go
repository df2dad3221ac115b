// Package mirror copies committed ledger changes to an external spreadsheet.
// The mirror is write-only and best effort: the ledger never reads it back,
// and failed writes are kept in an outbox for a later resync.
package mirror

import (
	"fmt"
	"strconv"
	"time"

	"github.com/matthewbaird/walletledger/internal/ledger"
)

// Header is the first row of a rebuilt operations block.
var Header = []string{
	"Timestamp", "Action", "Operation ID", "Username", "Operation date", "Type",
	"Accounting type", "Account type", "Finish date", "Amount", "Payment type",
	"Comment", "Wallet",
}

const (
	stampLayout = "02.01.2006 15:04:05"
	dayLayout   = "02.01.2006"
)

// Formatter renders ledger changes as spreadsheet rows in a fixed time zone.
type Formatter struct {
	loc *time.Location
}

// NewFormatter returns a Formatter for loc. A nil loc means UTC.
func NewFormatter(loc *time.Location) Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return Formatter{loc: loc}
}

// OperationRows renders one row per wallet side of the changed operation.
// The amount on each row carries the sign of that side's balance effect.
func (f Formatter) OperationRows(ch ledger.Change) ([][]string, error) {
	op := ch.Operation
	effects, err := ledger.Effects(op)
	if err != nil {
		return nil, fmt.Errorf("mirror: operation %d: %w", op.ID, err)
	}
	sides := op.Sides()

	finish := ""
	if op.Type != ledger.Transfer {
		finish = f.day(deref(op.FinishDate))
	}

	rows := make([][]string, 0, len(effects))
	for i, e := range effects {
		rows = append(rows, []string{
			ch.At.In(f.loc).Format(stampLayout),
			string(ch.Action),
			strconv.FormatInt(op.ID, 10),
			op.Username,
			f.day(op.OperationDate),
			string(op.Type),
			deref(op.AccountingType),
			deref(op.AccountType),
			finish,
			ledger.FormatCents(e.Delta),
			deref(op.PaymentType),
			deref(op.Comment),
			sides[i].Name,
		})
	}
	return rows, nil
}

// SnapshotRows renders the live operations, oldest first, as a full
// operations block including the header.
func (f Formatter) SnapshotRows(ops []ledger.Operation) ([][]string, error) {
	rows := [][]string{Header}
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		r, err := f.OperationRows(ledger.Change{Action: ledger.ActionCreated, Operation: op, At: op.Timestamp})
		if err != nil {
			return nil, err
		}
		rows = append(rows, r...)
	}
	return rows, nil
}

// BalanceColumns returns the wallet names and balances as two columns.
func BalanceColumns(wallets []ledger.Wallet) (names, balances []string) {
	for _, w := range wallets {
		names = append(names, w.Name)
		balances = append(balances, ledger.FormatCents(w.BalanceCents))
	}
	return names, balances
}

// day reformats a YYYY-MM-DD date as dd.mm.yyyy. Other input is passed through.
func (f Formatter) day(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(ledger.DateLayout, s)
	if err != nil {
		return s
	}
	return t.Format(dayLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
