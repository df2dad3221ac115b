package ledger

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"testing"

	"github.com/matthewbaird/walletledger/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

type fakeMirror struct {
	mu       sync.Mutex
	changes  []Change
	balances [][]Wallet
	err      error
}

func (m *fakeMirror) MirrorChange(_ context.Context, ch Change, wallets []Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.changes = append(m.changes, ch)
	m.balances = append(m.balances, wallets)
	return nil
}

func (m *fakeMirror) MirrorBalances(_ context.Context, wallets []Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.balances = append(m.balances, wallets)
	return nil
}

type fakePublisher struct {
	events []event.DomainEvent
}

func (p *fakePublisher) Publish(_ context.Context, evt event.DomainEvent) {
	p.events = append(p.events, evt)
}

type fixture struct {
	svc    *Service
	store  *MemoryStore
	mirror *fakeMirror
	bus    *fakePublisher
}

func newFixture(t *testing.T, wallets ...string) *fixture {
	t.Helper()
	f := &fixture{
		store:  NewMemoryStore(),
		mirror: &fakeMirror{},
		bus:    &fakePublisher{},
	}
	f.svc = NewService(f.store)
	f.svc.SetMirror(f.mirror)
	f.svc.SetPublisher(f.bus)
	for _, name := range wallets {
		_, err := f.svc.CreateWallet(context.Background(), name)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) balance(t *testing.T, name string) int64 {
	t.Helper()
	w, err := f.store.GetWalletByName(context.Background(), name)
	require.NoError(t, err)
	return w.BalanceCents
}

func (f *fixture) create(t *testing.T, typ, amount string, wallets ...string) Operation {
	t.Helper()
	fields := Fields{
		Username:      str("alice"),
		OperationDate: str("2024-05-01"),
		OperationType: str(typ),
		Amount:        str(amount),
		Comment:       str("test"),
	}
	if typ == string(Transfer) {
		fields.WalletFrom, fields.WalletTo = str(wallets[0]), str(wallets[1])
	} else {
		fields.Wallet = str(wallets[0])
	}
	res, err := f.svc.CreateOperation(context.Background(), fields)
	require.NoError(t, err)
	require.False(t, res.Degraded())
	return res.Operation
}

func TestService_IncomeCreditsWallet(t *testing.T) {
	f := newFixture(t, "W")
	f.create(t, "Income", "100", "W")
	assert.Equal(t, int64(10000), f.balance(t, "W"))
}

func TestService_ExpenseDebitsWallet(t *testing.T) {
	f := newFixture(t, "W")
	f.create(t, "Income", "100", "W")
	f.create(t, "Expense", "40", "W")
	assert.Equal(t, int64(6000), f.balance(t, "W"))
}

func TestService_TransferAndEditAmount(t *testing.T) {
	f := newFixture(t, "A", "B")
	f.create(t, "Income", "60", "A")

	tr := f.create(t, "Transfer", "25", "A", "B")
	assert.Equal(t, int64(3500), f.balance(t, "A"))
	assert.Equal(t, int64(2500), f.balance(t, "B"))

	res, err := f.svc.EditOperation(context.Background(), tr.ID, Fields{Amount: str("10")})
	require.NoError(t, err)
	assert.Equal(t, []string{"amount"}, res.UpdatedFields)
	assert.Equal(t, int64(5000), f.balance(t, "A"))
	assert.Equal(t, int64(1000), f.balance(t, "B"))
}

func TestService_DeleteExpenseRestoresBalance(t *testing.T) {
	f := newFixture(t, "W")
	f.create(t, "Income", "100", "W")
	exp := f.create(t, "Expense", "40", "W")
	require.Equal(t, int64(6000), f.balance(t, "W"))

	res, err := f.svc.DeleteOperation(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Equal(t, exp.ID, res.Operation.ID)
	assert.Equal(t, int64(10000), f.balance(t, "W"))

	_, err = f.svc.GetOperation(context.Background(), exp.ID)
	assert.ErrorIs(t, err, ErrOperationNotFound)
}

func TestService_UnknownWalletLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A", "B")
	f.create(t, "Income", "10", "A")

	_, err := f.svc.CreateOperation(ctx, Fields{
		Username:      str("alice"),
		OperationDate: str("2024-05-01"),
		OperationType: str("Transfer"),
		Amount:        str("5"),
		WalletFrom:    str("A"),
		WalletTo:      str("Nowhere"),
	})
	require.ErrorIs(t, err, ErrWalletNotFound)

	assert.Equal(t, int64(1000), f.balance(t, "A"))
	assert.Equal(t, int64(0), f.balance(t, "B"))
	ops, err := f.svc.ListOperations(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestService_EditExpenseToTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "W", "A", "B", "C")
	f.create(t, "Income", "100", "W")
	f.create(t, "Income", "100", "A")
	exp := f.create(t, "Expense", "40", "W")

	res, err := f.svc.EditOperation(ctx, exp.ID, Fields{
		OperationType: str("Transfer"),
		WalletFrom:    str("A"),
		WalletTo:      str("B"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"operation_type", "wallet", "wallet_from", "wallet_to"}, res.UpdatedFields)
	assert.Nil(t, res.Operation.Wallet)
	assert.Equal(t, int64(10000), f.balance(t, "W"))
	assert.Equal(t, int64(6000), f.balance(t, "A"))
	assert.Equal(t, int64(4000), f.balance(t, "B"))
	assert.Equal(t, int64(0), f.balance(t, "C"))
}

func TestService_EditWithUnknownWalletRetainsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "W", "A")
	f.create(t, "Income", "100", "W")
	exp := f.create(t, "Expense", "40", "W")

	_, err := f.svc.EditOperation(ctx, exp.ID, Fields{
		OperationType: str("Transfer"),
		WalletFrom:    str("A"),
		WalletTo:      str("Ghost"),
	})
	require.ErrorIs(t, err, ErrWalletNotFound)

	assert.Equal(t, int64(6000), f.balance(t, "W"))
	assert.Equal(t, int64(0), f.balance(t, "A"))
	got, err := f.svc.GetOperation(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, Expense, got.Type)
}

func TestService_EditTypeWithoutWalletsIsInvalid(t *testing.T) {
	f := newFixture(t, "W")
	exp := f.create(t, "Expense", "40", "W")

	_, err := f.svc.EditOperation(context.Background(), exp.ID, Fields{OperationType: str("Transfer")})
	require.ErrorIs(t, err, ErrInvalidOperation)
	assert.Equal(t, int64(-4000), f.balance(t, "W"))
}

func TestService_PartialEditKeepsOmittedFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "W")
	op := f.create(t, "Income", "100", "W")

	res, err := f.svc.EditOperation(ctx, op.ID, Fields{Comment: str("")})
	require.NoError(t, err)
	assert.Equal(t, []string{"comment"}, res.UpdatedFields)
	require.NotNil(t, res.Operation.Comment)
	assert.Equal(t, "", *res.Operation.Comment)
	assert.Nil(t, res.Operation.PaymentType)
	assert.Equal(t, int64(10000), res.Operation.AmountCents)
	assert.Equal(t, int64(10000), f.balance(t, "W"))

	res, err = f.svc.EditOperation(ctx, op.ID, Fields{})
	require.NoError(t, err)
	assert.Empty(t, res.UpdatedFields)
	assert.Equal(t, int64(10000), f.balance(t, "W"))
}

func TestService_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "W", "A")

	_, err := f.svc.EditOperation(ctx, 404, Fields{Amount: str("1")})
	assert.ErrorIs(t, err, ErrOperationNotFound)

	_, err = f.svc.DeleteOperation(ctx, 404)
	assert.ErrorIs(t, err, ErrOperationNotFound)

	_, err = f.svc.CreateOperation(ctx, Fields{
		Username: str("alice"), OperationDate: str("2024-05-01"),
		OperationType: str("Income"), Amount: str("ten"), Wallet: str("W"),
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.CreateOperation(ctx, Fields{
		Username: str("alice"), OperationDate: str("2024-05-01"),
		OperationType: str("Transfer"), Amount: str("1"), WalletFrom: str("A"), WalletTo: str("A"),
	})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = f.svc.CreateOperation(ctx, Fields{
		Username: str("alice"), OperationDate: str("01.05.2024"),
		OperationType: str("Income"), Amount: str("1"), Wallet: str("W"),
	})
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = f.svc.CreateWallet(ctx, "W")
	assert.ErrorIs(t, err, ErrWalletExists)

	assert.Equal(t, int64(0), f.balance(t, "W"))
	assert.Equal(t, int64(0), f.balance(t, "A"))
}

func TestService_BalanceOverflowIsInvalidAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "W")
	w, err := f.store.GetWalletByName(ctx, "W")
	require.NoError(t, err)
	near := int64(math.MaxInt64) - 50
	require.NoError(t, f.store.InTx(ctx, func(tx Tx) error {
		_, err := tx.AdjustWalletBalance(ctx, w.ID, near)
		return err
	}))

	_, err = f.svc.CreateOperation(ctx, Fields{
		Username: str("alice"), OperationDate: str("2024-05-01"),
		OperationType: str("Income"), Amount: str("1"), Wallet: str("W"),
	})
	require.ErrorIs(t, err, ErrInvalidAmount)

	assert.Equal(t, near, f.balance(t, "W"))
	ops, err := f.svc.ListOperations(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestService_MirrorFailureIsDegradedSuccess(t *testing.T) {
	f := newFixture(t, "W")
	f.mirror.err = errors.New("sheets down")

	res, err := f.svc.CreateOperation(context.Background(), Fields{
		Username: str("alice"), OperationDate: str("2024-05-01"),
		OperationType: str("Income"), Amount: str("100"), Wallet: str("W"),
	})
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.ErrorIs(t, res.MirrorErr, ErrSinkUnavailable)
	assert.Equal(t, int64(10000), f.balance(t, "W"))
}

func TestService_MirrorAndEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A", "B")
	tr := f.create(t, "Transfer", "25", "A", "B")
	_, err := f.svc.DeleteOperation(ctx, tr.ID)
	require.NoError(t, err)

	require.Len(t, f.mirror.changes, 2)
	assert.Equal(t, ActionCreated, f.mirror.changes[0].Action)
	assert.Equal(t, ActionDeleted, f.mirror.changes[1].Action)
	assert.Equal(t, "A", f.mirror.changes[0].Operation.WalletFrom.Name)

	var types []string
	for _, e := range f.bus.events {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{"wallet_created", "wallet_created", "operation_created", "operation_deleted"}, types)
}

func TestService_CancelledRequestSkipsMirror(t *testing.T) {
	f := newFixture(t, "W")
	s := &cancelAfterCommit{MemoryStore: f.store}
	f.svc.store = s

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	res, err := f.svc.CreateOperation(ctx, Fields{
		Username: str("alice"), OperationDate: str("2024-05-01"),
		OperationType: str("Income"), Amount: str("1"), Wallet: str("W"),
	})
	require.NoError(t, err)
	assert.False(t, res.Degraded())
	assert.Empty(t, f.mirror.changes)
	assert.Equal(t, int64(100), f.balance(t, "W"))
}

// cancelAfterCommit cancels the request context once a transaction commits.
type cancelAfterCommit struct {
	*MemoryStore
	cancel context.CancelFunc
}

func (s *cancelAfterCommit) InTx(ctx context.Context, fn func(tx Tx) error) error {
	err := s.MemoryStore.InTx(ctx, fn)
	s.cancel()
	return err
}

func TestService_RenameWalletKeepsReferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "Cash")
	op := f.create(t, "Income", "5", "Cash")

	w, err := f.svc.RenameWallet(ctx, op.Wallet.ID, "Petty cash")
	require.NoError(t, err)
	assert.Equal(t, int64(500), w.BalanceCents)

	got, err := f.svc.GetOperation(ctx, op.ID)
	require.NoError(t, err)
	assert.Equal(t, "Petty cash", got.Wallet.Name)
}

func TestService_ListOperationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "W")
	first := f.create(t, "Income", "1", "W")
	second := f.create(t, "Income", "2", "W")

	ops, err := f.svc.ListOperations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, second.ID, ops[0].ID)
	assert.Equal(t, first.ID, ops[1].ID)

	ops, err = f.svc.ListOperations(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, ops)
}

// TestService_BalancesMatchLiveOperations runs random create/edit/delete
// sequences and checks every wallet balance against the signed sum of the
// operations still alive.
func TestService_BalancesMatchLiveOperations(t *testing.T) {
	ctx := context.Background()
	names := []string{"A", "B", "C", "D"}
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		f := newFixture(t, names...)
		var live []int64

		randomFields := func() Fields {
			amount := strconv.Itoa(rng.Intn(500)) + "." + strconv.Itoa(rng.Intn(10))
			switch rng.Intn(3) {
			case 0:
				return Fields{OperationType: str("Income"), Amount: str(amount), Wallet: str(names[rng.Intn(4)])}
			case 1:
				return Fields{OperationType: str("Expense"), Amount: str(amount), Wallet: str(names[rng.Intn(4)])}
			default:
				from := rng.Intn(4)
				to := (from + 1 + rng.Intn(3)) % 4
				return Fields{OperationType: str("Transfer"), Amount: str(amount),
					WalletFrom: str(names[from]), WalletTo: str(names[to])}
			}
		}

		for step := 0; step < 60; step++ {
			switch {
			case len(live) == 0 || rng.Intn(3) == 0:
				fields := randomFields()
				fields.Username = str("alice")
				fields.OperationDate = str("2024-01-01")
				res, err := f.svc.CreateOperation(ctx, fields)
				require.NoError(t, err)
				live = append(live, res.Operation.ID)
			case rng.Intn(2) == 0:
				id := live[rng.Intn(len(live))]
				fields := randomFields()
				if rng.Intn(2) == 0 {
					fields = Fields{Amount: fields.Amount}
				}
				_, err := f.svc.EditOperation(ctx, id, fields)
				require.NoError(t, err)
			default:
				i := rng.Intn(len(live))
				_, err := f.svc.DeleteOperation(ctx, live[i])
				require.NoError(t, err)
				live = append(live[:i], live[i+1:]...)
			}
		}

		ops, err := f.store.ListOperations(ctx, OperationFilter{})
		require.NoError(t, err)
		require.Len(t, ops, len(live))

		want := make(map[int64]int64)
		for _, op := range ops {
			effects, err := Effects(op)
			require.NoError(t, err)
			for _, e := range effects {
				want[e.WalletID] += e.Delta
			}
		}
		wallets, err := f.store.ListWallets(ctx)
		require.NoError(t, err)
		for _, w := range wallets {
			assert.Equal(t, want[w.ID], w.BalanceCents, "round %d wallet %s", round, w.Name)
		}
	}
}
