package mirror

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/matthewbaird/walletledger/internal/ledger"
)

// Mirror implements ledger.Mirror on top of a Sink. Rows that cannot be
// appended go to the outbox; while the outbox holds a backlog, new rows are
// queued behind it so the sheet keeps commit order.
type Mirror struct {
	sink   Sink
	outbox *Outbox
	format Formatter

	// mu orders the backlog check with the append or enqueue that follows.
	mu sync.Mutex
}

var _ ledger.Mirror = (*Mirror)(nil)

// New returns a Mirror. outbox may be nil, in which case failed rows are
// only logged.
func New(sink Sink, outbox *Outbox, format Formatter) *Mirror {
	return &Mirror{sink: sink, outbox: outbox, format: format}
}

// MirrorChange appends the change's rows and refreshes the balance block.
func (m *Mirror) MirrorChange(ctx context.Context, ch ledger.Change, wallets []ledger.Wallet) error {
	rows, err := m.format.OperationRows(ch)
	if err != nil {
		return err
	}

	err = m.appendOrQueue(ctx, ch.Operation.ID, rows)
	return errors.Join(err, m.MirrorBalances(ctx, wallets))
}

func (m *Mirror) appendOrQueue(ctx context.Context, opID int64, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backlog, err := m.backlog()
	if err != nil {
		return err
	}
	if backlog > 0 {
		if _, err := m.outbox.Enqueue(rows); err != nil {
			return fmt.Errorf("mirror: queueing rows: %w", err)
		}
		return fmt.Errorf("mirror: %d batches awaiting resync, operation %d queued", backlog, opID)
	}
	if aerr := m.sink.AppendRows(ctx, rows); aerr != nil {
		if m.outbox == nil {
			return aerr
		}
		if _, qerr := m.outbox.Enqueue(rows); qerr != nil {
			return errors.Join(aerr, fmt.Errorf("mirror: queueing rows: %w", qerr))
		}
		log.Printf("mirror: operation %d queued for resync", opID)
		return aerr
	}
	return nil
}

// MirrorBalances overwrites the balance block.
func (m *Mirror) MirrorBalances(ctx context.Context, wallets []ledger.Wallet) error {
	names, balances := BalanceColumns(wallets)
	return m.sink.WriteBalances(ctx, names, balances)
}

func (m *Mirror) backlog() (int, error) {
	if m.outbox == nil {
		return 0, nil
	}
	n, err := m.outbox.Len()
	if err != nil {
		return 0, fmt.Errorf("mirror: reading outbox: %w", err)
	}
	return n, nil
}
