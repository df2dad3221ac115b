package ledger

import "fmt"

// Effect is the signed change an operation makes to one wallet balance.
type Effect struct {
	WalletID int64
	Delta    int64
}

// Effects derives the signed effects of an operation from its type and
// amount magnitude. It is the only place in the module that decides signs:
//
//	Income   +a on wallet
//	Expense  -a on wallet
//	Transfer -a on wallet_from, +a on wallet_to
func Effects(op Operation) ([]Effect, error) {
	a := op.AmountCents
	if a < 0 {
		return nil, fmt.Errorf("%w: stored amount %d is negative", ErrInvalidAmount, a)
	}
	if err := checkShape(op); err != nil {
		return nil, err
	}
	switch op.Type {
	case Income:
		return []Effect{{WalletID: op.Wallet.ID, Delta: a}}, nil
	case Expense:
		return []Effect{{WalletID: op.Wallet.ID, Delta: -a}}, nil
	default:
		return []Effect{
			{WalletID: op.WalletFrom.ID, Delta: -a},
			{WalletID: op.WalletTo.ID, Delta: a},
		}, nil
	}
}

// checkShape enforces that single-wallet types carry only wallet and
// transfers carry only wallet_from and wallet_to.
func checkShape(op Operation) error {
	switch op.Type {
	case Income, Expense:
		if op.Wallet == nil {
			return fmt.Errorf("%w: %s requires a wallet", ErrInvalidOperation, op.Type)
		}
		if op.WalletFrom != nil || op.WalletTo != nil {
			return fmt.Errorf("%w: %s cannot reference wallet_from or wallet_to", ErrInvalidOperation, op.Type)
		}
	case Transfer:
		if op.WalletFrom == nil || op.WalletTo == nil {
			return fmt.Errorf("%w: Transfer requires wallet_from and wallet_to", ErrInvalidOperation)
		}
		if op.Wallet != nil {
			return fmt.Errorf("%w: Transfer cannot reference wallet", ErrInvalidOperation)
		}
	default:
		return fmt.Errorf("%w: unknown operation type %q", ErrInvalidOperation, op.Type)
	}
	return nil
}

func invert(effects []Effect) []Effect {
	out := make([]Effect, len(effects))
	for i, e := range effects {
		out[i] = Effect{WalletID: e.WalletID, Delta: -e.Delta}
	}
	return out
}

// Plan is the ordered list of balance adjustments for one lifecycle event.
// Undo reverts the previously applied effect; Apply installs the new one.
type Plan struct {
	Undo  []Effect
	Apply []Effect
}

// PlanCreate applies the new operation's effect.
func PlanCreate(op Operation) (Plan, error) {
	eff, err := Effects(op)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Apply: eff}, nil
}

// PlanEdit fully undoes the old effect and applies the new one, even when
// only one side of a transfer changed.
func PlanEdit(old, updated Operation) (Plan, error) {
	prev, err := Effects(old)
	if err != nil {
		return Plan{}, fmt.Errorf("stored operation %d: %w", old.ID, err)
	}
	next, err := Effects(updated)
	if err != nil {
		return Plan{}, err
	}
	return Plan{Undo: invert(prev), Apply: next}, nil
}

// PlanDelete undoes the operation's effect. There is no apply phase.
func PlanDelete(old Operation) (Plan, error) {
	prev, err := Effects(old)
	if err != nil {
		return Plan{}, fmt.Errorf("stored operation %d: %w", old.ID, err)
	}
	return Plan{Undo: invert(prev)}, nil
}

// Steps returns undo steps followed by apply steps.
func (p Plan) Steps() []Effect {
	out := make([]Effect, 0, len(p.Undo)+len(p.Apply))
	out = append(out, p.Undo...)
	return append(out, p.Apply...)
}

// Wallets returns the distinct wallet ids the plan touches, in step order.
func (p Plan) Wallets() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, e := range p.Steps() {
		if !seen[e.WalletID] {
			seen[e.WalletID] = true
			ids = append(ids, e.WalletID)
		}
	}
	return ids
}

// Net sums the plan's deltas per wallet.
func (p Plan) Net() map[int64]int64 {
	net := make(map[int64]int64)
	for _, e := range p.Steps() {
		net[e.WalletID] += e.Delta
	}
	return net
}
