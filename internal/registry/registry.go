// Package registry maps identities to their role and public encryption key.
package registry

import (
	"github.com/medrex/care-ledger/pkg/repository"
	"github.com/medrex/care-ledger/pkg/types"
)

// Registry is the account registry bound to one ledger transaction
type Registry struct {
	store     *repository.Store
	keyLength int
}

// New creates a registry over store requiring keys of keyLength characters
func New(store *repository.Store, keyLength int) *Registry {
	return &Registry{store: store, keyLength: keyLength}
}

// Register creates the account for identity. An identity registers once;
// its role never changes afterwards.
func (r *Registry) Register(identity string, role types.Role, encryptionKey string, now uint64) (*types.Account, error) {
	existing, err := r.store.Account(identity)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, types.NewError(types.KindDuplicate, "identity %s is already registered", identity)
	}

	if !role.Valid() {
		return nil, types.NewError(types.KindInvalidRole, "invalid role: %s", role)
	}

	if len(encryptionKey) != r.keyLength {
		return nil, types.NewError(types.KindInvalidParameter, "encryption key must be %d characters, got %d", r.keyLength, len(encryptionKey))
	}

	acc := &types.Account{
		ID:            identity,
		Role:          role,
		EncryptionKey: encryptionKey,
		RegisteredAt:  now,
	}
	if err := r.store.PutAccount(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// Account returns the account for identity or NotFound
func (r *Registry) Account(identity string) (*types.Account, error) {
	acc, err := r.store.Account(identity)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, types.NewError(types.KindNotFound, "identity %s is not registered", identity)
	}
	return acc, nil
}

// RoleOf returns the role of identity or NotFound
func (r *Registry) RoleOf(identity string) (types.Role, error) {
	acc, err := r.Account(identity)
	if err != nil {
		return 0, err
	}
	return acc.Role, nil
}

// Exists reports whether identity is registered
func (r *Registry) Exists(identity string) (bool, error) {
	acc, err := r.store.Account(identity)
	if err != nil {
		return false, err
	}
	return acc != nil, nil
}

// RequireRole fails with the role-specific error when identity does not
// hold expected. Unregistered identities hold no role.
func (r *Registry) RequireRole(identity string, expected types.Role) error {
	acc, err := r.store.Account(identity)
	if err != nil {
		return err
	}
	if acc != nil && acc.Role == expected {
		return nil
	}
	return roleError(identity, expected)
}

func roleError(identity string, expected types.Role) error {
	switch expected {
	case types.RolePatient:
		return types.NewError(types.KindInvalidPatient, "%s is not a registered patient", identity)
	case types.RolePhysician:
		return types.NewError(types.KindInvalidPhysician, "%s is not a registered physician", identity)
	case types.RoleDispenser:
		return types.NewError(types.KindInvalidDispenser, "%s is not a registered dispenser", identity)
	default:
		return types.NewError(types.KindInvalidRole, "invalid role: %s", expected)
	}
}
