package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// parsedFields holds the typed values of Fields that need parsing. Parsing
// happens before the store is touched.
type parsedFields struct {
	opType *OperationType
	amount *int64
}

func parseFields(f Fields) (parsedFields, error) {
	var p parsedFields
	if f.Amount != nil {
		cents, err := ParseAmount(*f.Amount)
		if err != nil {
			return p, err
		}
		p.amount = &cents
	}
	if f.OperationType != nil {
		t, err := ParseOperationType(strings.TrimSpace(*f.OperationType))
		if err != nil {
			return p, err
		}
		p.opType = &t
	}
	if f.Username != nil && strings.TrimSpace(*f.Username) == "" {
		return p, fmt.Errorf("%w: username cannot be empty", ErrInvalidOperation)
	}
	if f.OperationDate != nil {
		if _, err := time.Parse(DateLayout, *f.OperationDate); err != nil {
			return p, fmt.Errorf("%w: operation_date %q is not YYYY-MM-DD", ErrInvalidOperation, *f.OperationDate)
		}
	}
	if f.FinishDate != nil && *f.FinishDate != "" {
		if _, err := time.Parse(DateLayout, *f.FinishDate); err != nil {
			return p, fmt.Errorf("%w: finish_date %q is not YYYY-MM-DD", ErrInvalidOperation, *f.FinishDate)
		}
	}
	return p, nil
}

// mergeFields writes the supplied fields over op, resolving wallet names
// through r. Wallet references that the resulting type cannot carry are
// dropped unless they were supplied explicitly, in which case the shape
// check rejects the operation.
func mergeFields(ctx context.Context, r Reader, op *Operation, f Fields, p parsedFields) error {
	if f.Username != nil {
		op.Username = strings.TrimSpace(*f.Username)
	}
	if f.OperationDate != nil {
		op.OperationDate = *f.OperationDate
	}
	if p.opType != nil {
		op.Type = *p.opType
	}
	if p.amount != nil {
		op.AmountCents = *p.amount
	}
	if f.AccountingType != nil {
		op.AccountingType = text(*f.AccountingType)
	}
	if f.AccountType != nil {
		op.AccountType = text(*f.AccountType)
	}
	if f.PaymentType != nil {
		op.PaymentType = text(*f.PaymentType)
	}
	if f.Comment != nil {
		op.Comment = text(*f.Comment)
	}
	if f.FinishDate != nil {
		op.FinishDate = nil
		if *f.FinishDate != "" {
			op.FinishDate = text(*f.FinishDate)
		}
	}

	refs := []struct {
		name *string
		dst  **WalletRef
	}{
		{f.Wallet, &op.Wallet},
		{f.WalletFrom, &op.WalletFrom},
		{f.WalletTo, &op.WalletTo},
	}
	for _, ref := range refs {
		if ref.name == nil {
			continue
		}
		name := strings.TrimSpace(*ref.name)
		if name == "" {
			*ref.dst = nil
			continue
		}
		w, err := r.GetWalletByName(ctx, name)
		if err != nil {
			return err
		}
		*ref.dst = &WalletRef{ID: w.ID, Name: w.Name}
	}

	if op.Type == Transfer && f.Wallet == nil {
		op.Wallet = nil
	}
	if op.Type.SingleWallet() {
		if f.WalletFrom == nil {
			op.WalletFrom = nil
		}
		if f.WalletTo == nil {
			op.WalletTo = nil
		}
	}
	return nil
}

func text(s string) *string { return &s }

// ChangedFields lists the wire names of fields whose values differ.
func ChangedFields(old, updated Operation) []string {
	var out []string
	add := func(changed bool, name string) {
		if changed {
			out = append(out, name)
		}
	}
	add(old.Username != updated.Username, "username")
	add(old.OperationDate != updated.OperationDate, "operation_date")
	add(old.Type != updated.Type, "operation_type")
	add(old.AmountCents != updated.AmountCents, "amount")
	add(!sameRef(old.Wallet, updated.Wallet), "wallet")
	add(!sameRef(old.WalletFrom, updated.WalletFrom), "wallet_from")
	add(!sameRef(old.WalletTo, updated.WalletTo), "wallet_to")
	add(!sameText(old.AccountingType, updated.AccountingType), "accounting_type")
	add(!sameText(old.AccountType, updated.AccountType), "account_type")
	add(!sameText(old.FinishDate, updated.FinishDate), "finish_date")
	add(!sameText(old.PaymentType, updated.PaymentType), "payment_type")
	add(!sameText(old.Comment, updated.Comment), "comment")
	return out
}

func sameRef(a, b *WalletRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
