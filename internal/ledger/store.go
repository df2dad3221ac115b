package ledger

import "context"

// Reader is the read side of the Ledger Store.
type Reader interface {
	GetOperation(ctx context.Context, id int64) (Operation, error)
	// ListOperations returns operations newest first by timestamp.
	ListOperations(ctx context.Context, filter OperationFilter) ([]Operation, error)
	GetWallet(ctx context.Context, id int64) (Wallet, error)
	GetWalletByName(ctx context.Context, name string) (Wallet, error)
	ListWallets(ctx context.Context) ([]Wallet, error)
}

// Tx is a unit of work on the Ledger Store. Implementations return
// ErrOperationNotFound and ErrWalletNotFound for missing rows.
type Tx interface {
	Reader

	InsertOperation(ctx context.Context, op Operation) (int64, error)
	UpdateOperation(ctx context.Context, op Operation) error
	DeleteOperation(ctx context.Context, id int64) error

	// AdjustWalletBalance adds delta to the balance in a single atomic
	// statement and returns the new balance.
	AdjustWalletBalance(ctx context.Context, walletID, delta int64) (int64, error)

	CreateWallet(ctx context.Context, name string) (Wallet, error)
	RenameWallet(ctx context.Context, id int64, name string) (Wallet, error)
}

// Store is the Ledger Store. InTx commits when fn returns nil and rolls
// back otherwise.
type Store interface {
	Reader
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
