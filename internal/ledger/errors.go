package ledger

import "errors"

var (
	// ErrWalletNotFound is returned when a referenced wallet has no row.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrOperationNotFound is returned when an edit or delete targets a missing id.
	ErrOperationNotFound = errors.New("operation not found")

	// ErrInvalidAmount is returned for non-numeric, negative or over-precise amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidOperation is returned when the wallet references do not match
	// the operation type, or a required field is missing or malformed.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrWalletExists is returned when a wallet name is already taken.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrUnknownReference is returned when a payment type, category or
	// article is not in the reference catalog.
	ErrUnknownReference = errors.New("unknown reference")

	// ErrSinkUnavailable marks a mirror failure after the store committed.
	ErrSinkUnavailable = errors.New("mirror sink unavailable")
)
