// Package records keeps one current health record reference per patient.
package records

import (
	"github.com/medrex/care-ledger/internal/access"
	"github.com/medrex/care-ledger/internal/registry"
	"github.com/medrex/care-ledger/pkg/repository"
	"github.com/medrex/care-ledger/pkg/types"
)

// Store is the health record store bound to one ledger transaction
type Store struct {
	store         *repository.Store
	registry      *registry.Registry
	grants        *access.Ledger
	minHashLength int
}

// New creates a health record store
func New(store *repository.Store, reg *registry.Registry, grants *access.Ledger, minHashLength int) *Store {
	return &Store{store: store, registry: reg, grants: grants, minHashLength: minHashLength}
}

// Update overwrites the caller's record hash and stamps the current tick
func (s *Store) Update(patient, recordHash string, now uint64) (*types.HealthRecord, error) {
	if err := s.registry.RequireRole(patient, types.RolePatient); err != nil {
		return nil, err
	}
	if err := types.CheckHash(recordHash, s.minHashLength); err != nil {
		return nil, err
	}

	rec := &types.HealthRecord{Patient: patient, RecordHash: recordHash, UpdatedAt: now}
	if err := s.store.PutRecord(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Read returns patient's record to requester, or AccessDenied without
// disclosing anything about the record
func (s *Store) Read(patient, requester string) (*types.HealthRecord, error) {
	ok, err := s.grants.HasAccess(patient, requester)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.NewError(types.KindAccessDenied, "%s may not read the record of %s", requester, patient)
	}

	rec, err := s.store.Record(patient)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, types.NewError(types.KindNotFound, "no record for %s", patient)
	}
	return rec, nil
}
