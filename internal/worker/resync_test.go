package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/matthewbaird/walletledger/internal/ledger"
	"github.com/matthewbaird/walletledger/internal/mirror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

type recordingSink struct {
	mu       sync.Mutex
	appended [][][]string
	replaced [][]string
	names    []string
	balances []string
	failOn   int // fail the nth append (1-based); 0 never fails
	appends  int
}

func (s *recordingSink) AppendRows(_ context.Context, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.failOn > 0 && s.appends == s.failOn {
		return errors.New("quota exceeded")
	}
	s.appended = append(s.appended, rows)
	return nil
}

func (s *recordingSink) ReplaceRows(_ context.Context, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced = rows
	return nil
}

func (s *recordingSink) WriteBalances(_ context.Context, names, balances []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names, s.balances = names, balances
	return nil
}

func seededStore(t *testing.T) *ledger.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	svc := ledger.NewService(store)
	_, err := svc.CreateWallet(ctx, "Cash")
	require.NoError(t, err)
	_, err = svc.CreateWallet(ctx, "Card")
	require.NoError(t, err)

	_, err = svc.CreateOperation(ctx, ledger.Fields{
		Username: str("anna"), OperationDate: str("2024-03-01"), OperationType: str("Income"),
		Amount: str("100.00"), Wallet: str("Cash"),
	})
	require.NoError(t, err)
	_, err = svc.CreateOperation(ctx, ledger.Fields{
		Username: str("anna"), OperationDate: str("2024-03-02"), OperationType: str("Transfer"),
		Amount: str("40.00"), WalletFrom: str("Cash"), WalletTo: str("Card"),
	})
	require.NoError(t, err)
	return store
}

func openOutbox(t *testing.T) *mirror.Outbox {
	t.Helper()
	o, err := mirror.OpenOutbox(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func TestResync_DrainsOutboxInOrder(t *testing.T) {
	outbox := openOutbox(t)
	_, err := outbox.Enqueue([][]string{{"first"}})
	require.NoError(t, err)
	_, err = outbox.Enqueue([][]string{{"second"}})
	require.NoError(t, err)

	sink := &recordingSink{}
	w := NewResyncWorker(seededStore(t), sink, outbox, mirror.NewFormatter(nil))
	rep, err := w.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Drained)
	assert.Equal(t, 0, rep.Remaining)
	require.Len(t, sink.appended, 2)
	assert.Equal(t, "first", sink.appended[0][0][0])
	assert.Equal(t, "second", sink.appended[1][0][0])

	n, err := outbox.Len()
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, []string{"Cash", "Card"}, sink.names)
	assert.Equal(t, []string{"60.00", "40.00"}, sink.balances)
	assert.Equal(t, 2, rep.Wallets)
}

func TestResync_StopsAtFirstFailure(t *testing.T) {
	outbox := openOutbox(t)
	for _, v := range []string{"a", "b", "c"} {
		_, err := outbox.Enqueue([][]string{{v}})
		require.NoError(t, err)
	}

	sink := &recordingSink{failOn: 2}
	w := NewResyncWorker(seededStore(t), sink, outbox, mirror.NewFormatter(nil))
	rep, err := w.Run(context.Background(), false)
	require.Error(t, err)

	assert.Equal(t, 1, rep.Drained)
	assert.Equal(t, 2, rep.Remaining)
	pending, err := outbox.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].Rows[0][0])
	assert.Nil(t, sink.names, "balances are not written after a failed drain")
}

func TestResync_RebuildReplacesOperations(t *testing.T) {
	sink := &recordingSink{}
	w := NewResyncWorker(seededStore(t), sink, nil, mirror.NewFormatter(nil))
	rep, err := w.Run(context.Background(), true)
	require.NoError(t, err)

	// One income row plus two transfer rows.
	assert.Equal(t, 3, rep.Rebuilt)
	require.Len(t, sink.replaced, 4)
	assert.Equal(t, mirror.Header, sink.replaced[0])
	assert.Equal(t, "Income", sink.replaced[1][5])
	assert.Equal(t, "-40.00", sink.replaced[2][9])
	assert.Equal(t, "40.00", sink.replaced[3][9])
	assert.Empty(t, sink.appended)
}
