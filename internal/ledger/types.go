// Package ledger records income, expense and transfer operations against
// named wallets and keeps every wallet balance equal to the signed sum of the
// live operations that reference it.
package ledger

import (
	"fmt"
	"time"
)

// OperationType is the kind of a ledger operation. It alone decides the sign
// of the amount when balances are computed.
type OperationType string

const (
	Income   OperationType = "Income"
	Expense  OperationType = "Expense"
	Transfer OperationType = "Transfer"
)

// ParseOperationType validates a submitted operation type.
func ParseOperationType(s string) (OperationType, error) {
	switch t := OperationType(s); t {
	case Income, Expense, Transfer:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown operation type %q", ErrInvalidOperation, s)
}

// SingleWallet reports whether operations of this type reference exactly one wallet.
func (t OperationType) SingleWallet() bool { return t == Income || t == Expense }

// DateLayout is the wire and storage layout of operation and finish dates.
const DateLayout = "2006-01-02"

// Wallet is a balance-holding account. ID is stable; Name may be renamed.
type Wallet struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	BalanceCents int64  `json:"balance_cents"`
}

// WalletRef points at a wallet from an operation.
type WalletRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Operation is one ledger entry. AmountCents is always a magnitude.
type Operation struct {
	ID             int64         `json:"id"`
	Timestamp      time.Time     `json:"timestamp"`
	Username       string        `json:"username"`
	OperationDate  string        `json:"operation_date"`
	Type           OperationType `json:"operation_type"`
	AmountCents    int64         `json:"amount_cents"`
	Wallet         *WalletRef    `json:"wallet,omitempty"`
	WalletFrom     *WalletRef    `json:"wallet_from,omitempty"`
	WalletTo       *WalletRef    `json:"wallet_to,omitempty"`
	AccountingType *string       `json:"accounting_type,omitempty"`
	AccountType    *string       `json:"account_type,omitempty"`
	FinishDate     *string       `json:"finish_date,omitempty"`
	PaymentType    *string       `json:"payment_type,omitempty"`
	Comment        *string       `json:"comment,omitempty"`
}

// Sides returns the wallets the operation touches, source first.
func (o Operation) Sides() []WalletRef {
	var out []WalletRef
	for _, r := range []*WalletRef{o.Wallet, o.WalletFrom, o.WalletTo} {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// Fields carries submitted operation fields. A nil pointer means the field
// was not supplied; a pointer to "" is an explicit empty value. On create the
// username, date, type and amount are required. On edit only supplied fields
// change, and an empty wallet name clears that reference.
type Fields struct {
	Username       *string
	OperationDate  *string
	OperationType  *string
	Amount         *string
	Wallet         *string
	WalletFrom     *string
	WalletTo       *string
	AccountingType *string
	AccountType    *string
	FinishDate     *string
	PaymentType    *string
	Comment        *string
}

// OperationFilter narrows ListOperations. An empty Username lists all users.
type OperationFilter struct {
	Username string
}

// Action names a committed mutation for mirrors and events.
type Action string

const (
	ActionCreated Action = "created"
	ActionEdited  Action = "edited"
	ActionDeleted Action = "deleted"
)

// Change describes a committed mutation: the operation as it now stands
// (or as it stood, for a delete) and when the change was made.
type Change struct {
	Action    Action
	Operation Operation
	At        time.Time
}
