package sqlstore

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/matthewbaird/walletledger/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "ledger.db") + "?_pragma=foreign_keys(1)"
	s, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func str(s string) *string { return &s }

func createWallets(t *testing.T, s *Store, names ...string) map[string]ledger.Wallet {
	t.Helper()
	out := make(map[string]ledger.Wallet, len(names))
	err := s.InTx(context.Background(), func(tx ledger.Tx) error {
		for _, n := range names {
			w, err := tx.CreateWallet(context.Background(), n)
			if err != nil {
				return err
			}
			out[n] = w
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestStore_WalletLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	ws := createWallets(t, s, "Cash", "Card")

	got, err := s.GetWalletByName(ctx, "Card")
	require.NoError(t, err)
	assert.Equal(t, ws["Card"].ID, got.ID)
	assert.Zero(t, got.BalanceCents)

	err = s.InTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.CreateWallet(ctx, "Cash")
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrWalletExists)

	err = s.InTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.RenameWallet(ctx, ws["Cash"].ID, "Wallet")
		return err
	})
	require.NoError(t, err)

	all, err := s.ListWallets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Wallet", all[0].Name)
	assert.Equal(t, "Card", all[1].Name)

	_, err = s.GetWallet(ctx, 999)
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

func TestStore_AdjustWalletBalanceIsIncremental(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	ws := createWallets(t, s, "Cash")

	var bal int64
	err := s.InTx(ctx, func(tx ledger.Tx) error {
		for _, d := range []int64{10000, -4000, 250} {
			var err error
			if bal, err = tx.AdjustWalletBalance(ctx, ws["Cash"].ID, d); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6250), bal)

	err = s.InTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.AdjustWalletBalance(ctx, 404, 1)
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)
}

func TestStore_AdjustWalletBalanceOverflow(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	ws := createWallets(t, s, "Cash", "Card")
	id := ws["Cash"].ID

	near := int64(math.MaxInt64) - 50
	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.AdjustWalletBalance(ctx, id, near)
		return err
	}))

	err := s.InTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.AdjustWalletBalance(ctx, id, 100)
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	w, err := s.GetWallet(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, near, w.BalanceCents)

	// Withdrawals past the lower bound are refused the same way.
	card := ws["Card"].ID
	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.AdjustWalletBalance(ctx, card, math.MinInt64+100)
		return err
	}))
	err = s.InTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.AdjustWalletBalance(ctx, card, -101)
		return err
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	w, err = s.GetWallet(ctx, card)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64+100), w.BalanceCents)
}

func TestStore_CreateOperationOverflowIsInvalidAmount(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	ws := createWallets(t, s, "Cash")
	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.AdjustWalletBalance(ctx, ws["Cash"].ID, math.MaxInt64-10)
		return err
	}))

	svc := ledger.NewService(s)
	_, err := svc.CreateOperation(ctx, ledger.Fields{
		Username: str("alice"), OperationDate: str("2024-05-01"),
		OperationType: str("Income"), Amount: str("1"), Wallet: str("Cash"),
	})
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)

	ops, err := s.ListOperations(ctx, ledger.OperationFilter{})
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	ws := createWallets(t, s, "Cash")
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.AdjustWalletBalance(ctx, ws["Cash"].ID, 500); err != nil {
			return err
		}
		if _, err := tx.InsertOperation(ctx, ledger.Operation{
			Timestamp: time.Now(), Username: "alice", OperationDate: "2024-01-01",
			Type: ledger.Income, AmountCents: 500, Wallet: &ledger.WalletRef{ID: ws["Cash"].ID},
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	w, err := s.GetWallet(ctx, ws["Cash"].ID)
	require.NoError(t, err)
	assert.Zero(t, w.BalanceCents)
	ops, err := s.ListOperations(ctx, ledger.OperationFilter{})
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestStore_OperationRoundTripAndOrdering(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	ws := createWallets(t, s, "Cash", "Card")
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	var transferID int64
	err := s.InTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.InsertOperation(ctx, ledger.Operation{
			Timestamp: base, Username: "alice", OperationDate: "2024-03-01",
			Type: ledger.Expense, AmountCents: 4000, Wallet: &ledger.WalletRef{ID: ws["Cash"].ID},
			AccountingType: str("Food"), Comment: str(""),
		}); err != nil {
			return err
		}
		var err error
		transferID, err = tx.InsertOperation(ctx, ledger.Operation{
			Timestamp: base.Add(time.Minute), Username: "bob", OperationDate: "2024-03-02",
			Type: ledger.Transfer, AmountCents: 2500,
			WalletFrom: &ledger.WalletRef{ID: ws["Cash"].ID}, WalletTo: &ledger.WalletRef{ID: ws["Card"].ID},
		})
		return err
	})
	require.NoError(t, err)

	ops, err := s.ListOperations(ctx, ledger.OperationFilter{})
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, transferID, ops[0].ID)
	assert.Equal(t, "Cash", ops[0].WalletFrom.Name)
	assert.Equal(t, "Card", ops[0].WalletTo.Name)
	assert.Nil(t, ops[0].Wallet)
	assert.True(t, base.Add(time.Minute).Equal(ops[0].Timestamp))

	expense := ops[1]
	assert.Equal(t, "Food", *expense.AccountingType)
	require.NotNil(t, expense.Comment)
	assert.Equal(t, "", *expense.Comment)
	assert.Nil(t, expense.FinishDate)

	mine, err := s.ListOperations(ctx, ledger.OperationFilter{Username: "alice"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, ledger.Expense, mine[0].Type)
}

func TestStore_UpdateAndDeleteOperation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	ws := createWallets(t, s, "Cash", "Card")

	var id int64
	err := s.InTx(ctx, func(tx ledger.Tx) error {
		var err error
		id, err = tx.InsertOperation(ctx, ledger.Operation{
			Timestamp: time.Now(), Username: "alice", OperationDate: "2024-01-01",
			Type: ledger.Expense, AmountCents: 100, Wallet: &ledger.WalletRef{ID: ws["Cash"].ID},
			Comment: str("lunch"),
		})
		return err
	})
	require.NoError(t, err)

	op, err := s.GetOperation(ctx, id)
	require.NoError(t, err)
	op.Type = ledger.Transfer
	op.Wallet = nil
	op.WalletFrom = &ledger.WalletRef{ID: ws["Cash"].ID}
	op.WalletTo = &ledger.WalletRef{ID: ws["Card"].ID}
	op.Comment = nil
	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error { return tx.UpdateOperation(ctx, op) }))

	got, err := s.GetOperation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, ledger.Transfer, got.Type)
	assert.Nil(t, got.Wallet)
	assert.Nil(t, got.Comment)
	assert.Equal(t, "Card", got.WalletTo.Name)

	require.NoError(t, s.InTx(ctx, func(tx ledger.Tx) error { return tx.DeleteOperation(ctx, id) }))
	_, err = s.GetOperation(ctx, id)
	assert.ErrorIs(t, err, ledger.ErrOperationNotFound)

	err = s.InTx(ctx, func(tx ledger.Tx) error { return tx.DeleteOperation(ctx, id) })
	assert.ErrorIs(t, err, ledger.ErrOperationNotFound)
}

func TestStore_ServiceKeepsBalancesConsistent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	createWallets(t, s, "Cash", "Card")
	svc := ledger.NewService(s)

	res, err := svc.CreateOperation(ctx, ledger.Fields{
		Username: str("alice"), OperationDate: str("2024-01-01"),
		OperationType: str("Income"), Amount: str("100"), Wallet: str("Cash"),
	})
	require.NoError(t, err)

	_, err = svc.CreateOperation(ctx, ledger.Fields{
		Username: str("alice"), OperationDate: str("2024-01-01"),
		OperationType: str("Transfer"), Amount: str("25"), WalletFrom: str("Cash"), WalletTo: str("Missing"),
	})
	assert.ErrorIs(t, err, ledger.ErrWalletNotFound)

	_, err = svc.EditOperation(ctx, res.Operation.ID, ledger.Fields{
		OperationType: str("Transfer"), WalletFrom: str("Cash"), WalletTo: str("Card"),
	})
	require.NoError(t, err)

	cash, err := s.GetWalletByName(ctx, "Cash")
	require.NoError(t, err)
	card, err := s.GetWalletByName(ctx, "Card")
	require.NoError(t, err)
	assert.Equal(t, int64(-10000), cash.BalanceCents)
	assert.Equal(t, int64(10000), card.BalanceCents)

	_, err = svc.DeleteOperation(ctx, res.Operation.ID)
	require.NoError(t, err)
	ws, err := s.ListWallets(ctx)
	require.NoError(t, err)
	for _, w := range ws {
		assert.Zero(t, w.BalanceCents, w.Name)
	}
}
