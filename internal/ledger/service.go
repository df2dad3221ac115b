package ledger

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/matthewbaird/walletledger/internal/event"
)

// Mirror receives audit copies of committed changes. It is best effort:
// failures are reported to the caller but never undo the store commit.
type Mirror interface {
	MirrorChange(ctx context.Context, change Change, wallets []Wallet) error
	MirrorBalances(ctx context.Context, wallets []Wallet) error
}

// Validator checks descriptive fields (payment type, categories) that the
// balance math ignores.
type Validator interface {
	ValidateOperation(op Operation) error
}

// Result is the outcome of a committed mutation. MirrorErr is set, wrapping
// ErrSinkUnavailable, when the store committed but the mirror failed.
type Result struct {
	Operation     Operation
	UpdatedFields []string
	MirrorErr     error
}

// Degraded reports a committed mutation whose mirror write failed.
func (r Result) Degraded() bool { return r.MirrorErr != nil }

// Service runs create, edit and delete through the reconciler, commits the
// row and balance changes together, then notifies the mirror and the bus.
type Service struct {
	store     Store
	mirror    Mirror
	events    event.Publisher
	validator Validator
	now       func() time.Time
}

// NewService creates a Service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// SetMirror attaches the mirror sink.
func (s *Service) SetMirror(m Mirror) { s.mirror = m }

// SetPublisher attaches an event bus. Events are published after commit.
func (s *Service) SetPublisher(p event.Publisher) { s.events = p }

// SetValidator attaches a reference-data validator.
func (s *Service) SetValidator(v Validator) { s.validator = v }

// Store returns the underlying Ledger Store.
func (s *Service) Store() Store { return s.store }

// ── Operations ───────────────────────────────────────────────────────────────

// CreateOperation validates the fields, applies the operation's effect and
// inserts the row in one transaction.
func (s *Service) CreateOperation(ctx context.Context, f Fields) (Result, error) {
	switch {
	case f.Amount == nil:
		return Result{}, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	case f.Username == nil, f.OperationDate == nil, f.OperationType == nil:
		return Result{}, fmt.Errorf("%w: username, operation_date and operation_type are required", ErrInvalidOperation)
	}
	p, err := parseFields(f)
	if err != nil {
		return Result{}, err
	}

	now := s.now()
	op := Operation{Timestamp: now.UTC()}
	err = s.store.InTx(ctx, func(tx Tx) error {
		if err := mergeFields(ctx, tx, &op, f, p); err != nil {
			return err
		}
		if err := s.validate(op); err != nil {
			return err
		}
		plan, err := PlanCreate(op)
		if err != nil {
			return err
		}
		return commitPlan(ctx, tx, plan, func() error {
			id, err := tx.InsertOperation(ctx, op)
			op.ID = id
			return err
		})
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Operation: op}
	res.MirrorErr = s.mirrorChange(ctx, Change{Action: ActionCreated, Operation: op, At: now})
	s.publish(ctx, event.NewOperationCreated(operationPayload(op, nil, res.Degraded())))
	return res, nil
}

// EditOperation undoes the stored operation's effect, merges the supplied
// fields over it and applies the new effect, all in one transaction. It
// returns the names of the fields whose values changed.
func (s *Service) EditOperation(ctx context.Context, id int64, f Fields) (Result, error) {
	p, err := parseFields(f)
	if err != nil {
		return Result{}, err
	}

	var old, updated Operation
	err = s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if old, err = tx.GetOperation(ctx, id); err != nil {
			return err
		}
		updated = old
		if err := mergeFields(ctx, tx, &updated, f, p); err != nil {
			return err
		}
		if err := s.validate(updated); err != nil {
			return err
		}
		plan, err := PlanEdit(old, updated)
		if err != nil {
			return err
		}
		return commitPlan(ctx, tx, plan, func() error {
			return tx.UpdateOperation(ctx, updated)
		})
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Operation: updated, UpdatedFields: ChangedFields(old, updated)}
	res.MirrorErr = s.mirrorChange(ctx, Change{Action: ActionEdited, Operation: updated, At: s.now()})
	s.publish(ctx, event.NewOperationEdited(operationPayload(updated, res.UpdatedFields, res.Degraded())))
	return res, nil
}

// DeleteOperation undoes the stored operation's effect and removes the row.
func (s *Service) DeleteOperation(ctx context.Context, id int64) (Result, error) {
	var old Operation
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if old, err = tx.GetOperation(ctx, id); err != nil {
			return err
		}
		plan, err := PlanDelete(old)
		if err != nil {
			return err
		}
		return commitPlan(ctx, tx, plan, func() error {
			return tx.DeleteOperation(ctx, id)
		})
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Operation: old}
	res.MirrorErr = s.mirrorChange(ctx, Change{Action: ActionDeleted, Operation: old, At: s.now()})
	s.publish(ctx, event.NewOperationDeleted(operationPayload(old, nil, res.Degraded())))
	return res, nil
}

// GetOperation returns one operation.
func (s *Service) GetOperation(ctx context.Context, id int64) (Operation, error) {
	return s.store.GetOperation(ctx, id)
}

// ListOperations returns the user's operations, newest first.
func (s *Service) ListOperations(ctx context.Context, username string) ([]Operation, error) {
	return s.store.ListOperations(ctx, OperationFilter{Username: username})
}

// ── Wallets ──────────────────────────────────────────────────────────────────

// CreateWallet adds a wallet with a zero balance.
func (s *Service) CreateWallet(ctx context.Context, name string) (Wallet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Wallet{}, fmt.Errorf("%w: wallet name is required", ErrInvalidOperation)
	}
	var w Wallet
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		w, err = tx.CreateWallet(ctx, name)
		return err
	})
	if err != nil {
		return Wallet{}, err
	}
	s.mirrorBalances(ctx)
	s.publish(ctx, event.NewWalletCreated(event.WalletPayload{WalletID: w.ID, Name: w.Name}))
	return w, nil
}

// RenameWallet changes a wallet's display name. Operations keep pointing at
// the wallet through its id.
func (s *Service) RenameWallet(ctx context.Context, id int64, name string) (Wallet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Wallet{}, fmt.Errorf("%w: wallet name is required", ErrInvalidOperation)
	}
	var prev, w Wallet
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if prev, err = tx.GetWallet(ctx, id); err != nil {
			return err
		}
		w, err = tx.RenameWallet(ctx, id, name)
		return err
	})
	if err != nil {
		return Wallet{}, err
	}
	s.mirrorBalances(ctx)
	s.publish(ctx, event.NewWalletRenamed(event.WalletPayload{WalletID: w.ID, Name: w.Name, PreviousName: prev.Name}))
	return w, nil
}

// GetWallet returns one wallet.
func (s *Service) GetWallet(ctx context.Context, id int64) (Wallet, error) {
	return s.store.GetWallet(ctx, id)
}

// ListWallets returns all wallets ordered by id.
func (s *Service) ListWallets(ctx context.Context) ([]Wallet, error) {
	return s.store.ListWallets(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────────────

// commitPlan checks that every wallet in the plan exists, applies the balance
// steps and then the row mutation. On failure the steps already applied are
// reverted before the error is returned, so a store without transactional
// rollback is still left consistent.
func commitPlan(ctx context.Context, tx Tx, plan Plan, mutate func() error) error {
	for _, id := range plan.Wallets() {
		if _, err := tx.GetWallet(ctx, id); err != nil {
			return err
		}
	}

	var applied []Effect
	revert := func(cause error) error {
		for i := len(applied) - 1; i >= 0; i-- {
			e := applied[i]
			if _, err := tx.AdjustWalletBalance(ctx, e.WalletID, -e.Delta); err != nil {
				return fmt.Errorf("%w (reverting wallet %d: %v)", cause, e.WalletID, err)
			}
		}
		return cause
	}
	for _, e := range plan.Steps() {
		if _, err := tx.AdjustWalletBalance(ctx, e.WalletID, e.Delta); err != nil {
			return revert(err)
		}
		applied = append(applied, e)
	}
	if err := mutate(); err != nil {
		return revert(err)
	}
	return nil
}

func (s *Service) validate(op Operation) error {
	if err := checkShape(op); err != nil {
		return err
	}
	if op.Type == Transfer && op.WalletFrom.ID == op.WalletTo.ID {
		return fmt.Errorf("%w: transfer source and target are the same wallet", ErrInvalidOperation)
	}
	if s.validator != nil {
		return s.validator.ValidateOperation(op)
	}
	return nil
}

func (s *Service) mirrorChange(ctx context.Context, ch Change) error {
	if s.mirror == nil {
		return nil
	}
	if ctx.Err() != nil {
		log.Printf("ledger: request gone, skipping mirror of operation %d (%s)", ch.Operation.ID, ch.Action)
		return nil
	}
	wallets, err := s.store.ListWallets(ctx)
	if err != nil {
		log.Printf("ledger: listing wallets for mirror: %v", err)
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}
	if err := s.mirror.MirrorChange(ctx, ch, wallets); err != nil {
		log.Printf("ledger: mirror of operation %d (%s) failed: %v", ch.Operation.ID, ch.Action, err)
		return fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}
	return nil
}

func (s *Service) mirrorBalances(ctx context.Context) {
	if s.mirror == nil || ctx.Err() != nil {
		return
	}
	wallets, err := s.store.ListWallets(ctx)
	if err == nil {
		err = s.mirror.MirrorBalances(ctx, wallets)
	}
	if err != nil {
		log.Printf("ledger: mirror of wallet balances failed: %v", err)
	}
}

func (s *Service) publish(ctx context.Context, evt event.DomainEvent) {
	if s.events != nil {
		s.events.Publish(ctx, evt)
	}
}

func operationPayload(op Operation, updated []string, degraded bool) event.OperationPayload {
	p := event.OperationPayload{
		OperationID:    op.ID,
		Username:       op.Username,
		OperationType:  string(op.Type),
		AmountCents:    op.AmountCents,
		UpdatedFields:  updated,
		MirrorDegraded: degraded,
	}
	effects, err := Effects(op)
	if err != nil {
		return p
	}
	// Effects lists wallet sides in the same order as Sides.
	sides := op.Sides()
	for i, e := range effects {
		role := "subject"
		if op.Type == Transfer {
			role = "source"
			if i == 1 {
				role = "target"
			}
		}
		p.Sides = append(p.Sides, event.WalletSide{
			WalletID:   e.WalletID,
			WalletName: sides[i].Name,
			Role:       role,
			DeltaCents: e.Delta,
		})
	}
	return p
}
