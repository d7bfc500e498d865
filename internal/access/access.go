// Package access holds the per-patient set of viewers approved to read the
// patient's health record reference.
package access

import (
	"github.com/medrex/care-ledger/internal/registry"
	"github.com/medrex/care-ledger/pkg/repository"
	"github.com/medrex/care-ledger/pkg/types"
)

// Ledger is the access grant ledger bound to one ledger transaction
type Ledger struct {
	store    *repository.Store
	registry *registry.Registry
}

// New creates an access grant ledger
func New(store *repository.Store, reg *registry.Registry) *Ledger {
	return &Ledger{store: store, registry: reg}
}

// Grant approves viewer to read the caller's record. The caller is the
// patient. Any existing record for the pair, approved or not, is a duplicate.
func (l *Ledger) Grant(patient, viewer string, now uint64) (*types.AccessGrant, error) {
	if err := l.registry.RequireRole(patient, types.RolePatient); err != nil {
		return nil, err
	}

	exists, err := l.registry.Exists(viewer)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, types.NewError(types.KindNotFound, "viewer %s is not registered", viewer)
	}

	existing, err := l.store.Grant(patient, viewer)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, types.NewError(types.KindDuplicate, "grant for %s already exists", viewer)
	}

	g := &types.AccessGrant{Patient: patient, Viewer: viewer, Approved: true, GrantedAt: now}
	if err := l.store.PutGrant(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Revoke deletes the caller's grant for viewer
func (l *Ledger) Revoke(patient, viewer string) error {
	if err := l.registry.RequireRole(patient, types.RolePatient); err != nil {
		return err
	}

	existing, err := l.store.Grant(patient, viewer)
	if err != nil {
		return err
	}
	if existing == nil {
		return types.NewError(types.KindNotFound, "no grant for %s", viewer)
	}
	return l.store.DeleteGrant(patient, viewer)
}

// Upsert creates or overwrites an approved grant without ownership checks.
// The visit scheduler calls it when a visit is booked; the caller has
// already authorized the booking.
func (l *Ledger) Upsert(patient, viewer string, now uint64) error {
	return l.store.PutGrant(&types.AccessGrant{Patient: patient, Viewer: viewer, Approved: true, GrantedAt: now})
}

// HasAccess reports whether viewer may read patient's record
func (l *Ledger) HasAccess(patient, viewer string) (bool, error) {
	if viewer == patient {
		return true, nil
	}
	g, err := l.store.Grant(patient, viewer)
	if err != nil {
		return false, err
	}
	return g != nil && g.Approved, nil
}

// Get returns the grant record for the pair or NotFound
func (l *Ledger) Get(patient, viewer string) (*types.AccessGrant, error) {
	g, err := l.store.Grant(patient, viewer)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, types.NewError(types.KindNotFound, "no grant for %s", viewer)
	}
	return g, nil
}
