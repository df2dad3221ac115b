package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore implements Store with in-memory maps.
// Intended for demos and testing; no database required.
type MemoryStore struct {
	mu    sync.RWMutex
	state memState
}

type memState struct {
	operations map[int64]Operation
	wallets    map[int64]Wallet
	nextOpID   int64
	nextWallet int64
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memState{
		operations: make(map[int64]Operation),
		wallets:    make(map[int64]Wallet),
	}}
}

func (s memState) clone() memState {
	c := memState{
		operations: make(map[int64]Operation, len(s.operations)),
		wallets:    make(map[int64]Wallet, len(s.wallets)),
		nextOpID:   s.nextOpID,
		nextWallet: s.nextWallet,
	}
	for k, v := range s.operations {
		c.operations[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	return c
}

// InTx runs fn against a private copy of the state and swaps it in on success.
// Transactions are serialised.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

func (s *MemoryStore) GetOperation(ctx context.Context, id int64) (Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getOperation(id)
}

func (s *MemoryStore) ListOperations(ctx context.Context, filter OperationFilter) ([]Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listOperations(filter), nil
}

func (s *MemoryStore) GetWallet(ctx context.Context, id int64) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getWallet(id)
}

func (s *MemoryStore) GetWalletByName(ctx context.Context, name string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.getWalletByName(name)
}

func (s *MemoryStore) ListWallets(ctx context.Context) ([]Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.listWallets(), nil
}

func (s memState) getOperation(id int64) (Operation, error) {
	op, ok := s.operations[id]
	if !ok {
		return Operation{}, fmt.Errorf("%w: id %d", ErrOperationNotFound, id)
	}
	return s.withNames(op), nil
}

// withNames refreshes wallet names so renames show through.
func (s memState) withNames(op Operation) Operation {
	name := func(r *WalletRef) *WalletRef {
		if r == nil {
			return nil
		}
		return &WalletRef{ID: r.ID, Name: s.wallets[r.ID].Name}
	}
	op.Wallet = name(op.Wallet)
	op.WalletFrom = name(op.WalletFrom)
	op.WalletTo = name(op.WalletTo)
	return op
}

func (s memState) listOperations(filter OperationFilter) []Operation {
	var out []Operation
	for _, op := range s.operations {
		if filter.Username != "" && op.Username != filter.Username {
			continue
		}
		out = append(out, s.withNames(op))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func (s memState) getWallet(id int64) (Wallet, error) {
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, fmt.Errorf("%w: id %d", ErrWalletNotFound, id)
	}
	return w, nil
}

func (s memState) getWalletByName(name string) (Wallet, error) {
	for _, w := range s.wallets {
		if w.Name == name {
			return w, nil
		}
	}
	return Wallet{}, fmt.Errorf("%w: %q", ErrWalletNotFound, name)
}

func (s memState) listWallets() []Wallet {
	out := make([]Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memTx struct {
	state memState
}

func (t *memTx) GetOperation(_ context.Context, id int64) (Operation, error) {
	return t.state.getOperation(id)
}

func (t *memTx) ListOperations(_ context.Context, filter OperationFilter) ([]Operation, error) {
	return t.state.listOperations(filter), nil
}

func (t *memTx) GetWallet(_ context.Context, id int64) (Wallet, error) {
	return t.state.getWallet(id)
}

func (t *memTx) GetWalletByName(_ context.Context, name string) (Wallet, error) {
	return t.state.getWalletByName(name)
}

func (t *memTx) ListWallets(_ context.Context) ([]Wallet, error) {
	return t.state.listWallets(), nil
}

func (t *memTx) InsertOperation(_ context.Context, op Operation) (int64, error) {
	t.state.nextOpID++
	op.ID = t.state.nextOpID
	t.state.operations[op.ID] = op
	return op.ID, nil
}

func (t *memTx) UpdateOperation(_ context.Context, op Operation) error {
	if _, ok := t.state.operations[op.ID]; !ok {
		return fmt.Errorf("%w: id %d", ErrOperationNotFound, op.ID)
	}
	t.state.operations[op.ID] = op
	return nil
}

func (t *memTx) DeleteOperation(_ context.Context, id int64) error {
	if _, ok := t.state.operations[id]; !ok {
		return fmt.Errorf("%w: id %d", ErrOperationNotFound, id)
	}
	delete(t.state.operations, id)
	return nil
}

func (t *memTx) AdjustWalletBalance(_ context.Context, walletID, delta int64) (int64, error) {
	w, ok := t.state.wallets[walletID]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrWalletNotFound, walletID)
	}
	bal, err := AddBalance(w.BalanceCents, delta)
	if err != nil {
		return 0, fmt.Errorf("wallet %d: %w", walletID, err)
	}
	w.BalanceCents = bal
	t.state.wallets[walletID] = w
	return w.BalanceCents, nil
}

func (t *memTx) CreateWallet(_ context.Context, name string) (Wallet, error) {
	if _, err := t.state.getWalletByName(name); err == nil {
		return Wallet{}, fmt.Errorf("%w: %q", ErrWalletExists, name)
	}
	t.state.nextWallet++
	w := Wallet{ID: t.state.nextWallet, Name: name}
	t.state.wallets[w.ID] = w
	return w, nil
}

func (t *memTx) RenameWallet(_ context.Context, id int64, name string) (Wallet, error) {
	w, ok := t.state.wallets[id]
	if !ok {
		return Wallet{}, fmt.Errorf("%w: id %d", ErrWalletNotFound, id)
	}
	if other, err := t.state.getWalletByName(name); err == nil && other.ID != id {
		return Wallet{}, fmt.Errorf("%w: %q", ErrWalletExists, name)
	}
	w.Name = name
	t.state.wallets[id] = w
	return w, nil
}
