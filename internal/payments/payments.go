// Package payments records completed transfers between registered accounts.
// Value movement itself is delegated to an external token capability.
package payments

import (
	"github.com/medrex/care-ledger/internal/registry"
	"github.com/medrex/care-ledger/pkg/repository"
	"github.com/medrex/care-ledger/pkg/types"
)

// Capability moves value between two accounts outside the ledger
type Capability interface {
	// ID identifies the capability so it can be matched against the
	// configured payment capability
	ID() string
	Transfer(amount uint64, sender, receiver, memo string) error
}

// Ledger is the payment ledger bound to one ledger transaction
type Ledger struct {
	store         *repository.Store
	registry      *registry.Registry
	maxMemoLength int
}

// New creates a payment ledger
func New(store *repository.Store, reg *registry.Registry, maxMemoLength int) *Ledger {
	return &Ledger{store: store, registry: reg, maxMemoLength: maxMemoLength}
}

// Pay transfers amount from payer to receiver through capability and appends
// a transaction once the transfer succeeded.
func (l *Ledger) Pay(payer string, amount uint64, receiver, memo string, capability Capability, now uint64) (*types.Transaction, error) {
	if amount == 0 {
		return nil, types.NewError(types.KindInvalidParameter, "amount must be greater than zero")
	}
	if len(memo) > l.maxMemoLength {
		return nil, types.NewError(types.KindInvalidParameter, "memo exceeds %d bytes", l.maxMemoLength)
	}

	exists, err := l.registry.Exists(receiver)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, types.NewError(types.KindNotFound, "receiver %s is not registered", receiver)
	}

	cfg, err := l.store.AdminConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil || cfg.PaymentCapability == "" {
		return nil, types.NewError(types.KindUnauthorized, "no payment capability is configured")
	}
	if capability == nil || capability.ID() != cfg.PaymentCapability {
		return nil, types.NewError(types.KindUnauthorized, "payment capability is not trusted")
	}

	if err := capability.Transfer(amount, payer, receiver, memo); err != nil {
		if types.KindOf(err) != types.KindInternal {
			return nil, err
		}
		return nil, (&types.LedgerError{
			Kind:    types.KindTaskFailed,
			Code:    types.ErrCodeTaskFailed,
			Message: "transfer failed",
			Cause:   err,
		}).WithDetail("capability", capability.ID())
	}

	id, err := l.store.Sequence(repository.SeqTransaction).Next()
	if err != nil {
		return nil, err
	}
	tx := &types.Transaction{
		ID:        id,
		Sender:    payer,
		Receiver:  receiver,
		Amount:    amount,
		Memo:      memo,
		CreatedAt: now,
	}
	if err := l.store.PutTransaction(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// Transaction returns the transaction with id or NotFound
func (l *Ledger) Transaction(id uint64) (*types.Transaction, error) {
	tx, err := l.store.Transaction(id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, types.NewError(types.KindNotFound, "transaction %d not found", id)
	}
	return tx, nil
}
