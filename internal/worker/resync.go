// Package worker contains background jobs that keep derived stores in step
// with the ledger.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/matthewbaird/walletledger/internal/ledger"
	"github.com/matthewbaird/walletledger/internal/mirror"
)

// ResyncReport summarises one resync pass.
type ResyncReport struct {
	Drained   int `json:"drained"`
	Remaining int `json:"remaining"`
	Rebuilt   int `json:"rebuilt_rows"`
	Wallets   int `json:"wallets"`
}

// ResyncWorker replays queued mirror rows and refreshes the balance block.
type ResyncWorker struct {
	store  ledger.Reader
	sink   mirror.Sink
	outbox *mirror.Outbox
	format mirror.Formatter
}

// NewResyncWorker creates a resync worker. outbox may be nil.
func NewResyncWorker(store ledger.Reader, sink mirror.Sink, outbox *mirror.Outbox, format mirror.Formatter) *ResyncWorker {
	return &ResyncWorker{store: store, sink: sink, outbox: outbox, format: format}
}

// Run drains the outbox oldest first, stopping at the first failed batch.
// With rebuild set it then rewrites the operations block from the live
// operations. The balance block is always refreshed last.
func (w *ResyncWorker) Run(ctx context.Context, rebuild bool) (ResyncReport, error) {
	var rep ResyncReport

	if w.outbox != nil {
		pending, err := w.outbox.Pending()
		if err != nil {
			return rep, fmt.Errorf("resync: reading outbox: %w", err)
		}
		for i, b := range pending {
			if err := w.sink.AppendRows(ctx, b.Rows); err != nil {
				rep.Remaining = len(pending) - i
				return rep, fmt.Errorf("resync: batch %s: %w", b.ID, err)
			}
			if err := w.outbox.Ack(b.Seq); err != nil {
				rep.Remaining = len(pending) - i
				return rep, fmt.Errorf("resync: acking batch %s: %w", b.ID, err)
			}
			rep.Drained++
		}
	}

	if rebuild {
		ops, err := w.store.ListOperations(ctx, ledger.OperationFilter{})
		if err != nil {
			return rep, err
		}
		rows, err := w.format.SnapshotRows(ops)
		if err != nil {
			return rep, err
		}
		if err := w.sink.ReplaceRows(ctx, rows); err != nil {
			return rep, fmt.Errorf("resync: rebuilding operations: %w", err)
		}
		rep.Rebuilt = len(rows) - 1
	}

	wallets, err := w.store.ListWallets(ctx)
	if err != nil {
		return rep, err
	}
	names, balances := mirror.BalanceColumns(wallets)
	if err := w.sink.WriteBalances(ctx, names, balances); err != nil {
		return rep, fmt.Errorf("resync: writing balances: %w", err)
	}
	rep.Wallets = len(wallets)
	return rep, nil
}

// Start runs a drain pass every interval until ctx is cancelled.
func (w *ResyncWorker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep, err := w.Run(ctx, false)
			if err != nil {
				log.Printf("resync: %v (remaining %d)", err, rep.Remaining)
				continue
			}
			if rep.Drained > 0 {
				log.Printf("resync: drained %d batches", rep.Drained)
			}
		}
	}
}
