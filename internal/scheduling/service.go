// Package scheduling books clinical visits between patients and physicians
// and records visit summaries.
package scheduling

import (
	"github.com/medrex/care-ledger/internal/access"
	"github.com/medrex/care-ledger/internal/registry"
	"github.com/medrex/care-ledger/pkg/config"
	"github.com/medrex/care-ledger/pkg/repository"
	"github.com/medrex/care-ledger/pkg/types"
)

// Scheduler is the visit scheduler bound to one ledger transaction
type Scheduler struct {
	store         *repository.Store
	registry      *registry.Registry
	grants        *access.Ledger
	limiter       *RateLimiter
	minHashLength int
}

// New creates a visit scheduler
func New(store *repository.Store, reg *registry.Registry, grants *access.Ledger, cfg config.LedgerConfig) *Scheduler {
	return &Scheduler{
		store:         store,
		registry:      reg,
		grants:        grants,
		limiter:       NewRateLimiter(store, cfg.MaxVisitsPerWindow, cfg.FrequencyWindow),
		minHashLength: cfg.MinHashLength,
	}
}

// Book creates a visit between patient and physician. The physician's
// frequency window is checked before anything is written. A booked visit
// always grants the physician read access to the patient's record, even
// after an earlier revocation.
func (s *Scheduler) Book(patient, physician string, now uint64) (*types.Visit, error) {
	if err := s.registry.RequireRole(patient, types.RolePatient); err != nil {
		return nil, err
	}
	if err := s.registry.RequireRole(physician, types.RolePhysician); err != nil {
		return nil, err
	}
	if patient == physician {
		return nil, types.NewError(types.KindInvalidParameter, "patient and physician must differ")
	}

	if _, err := s.limiter.Allow(physician, now); err != nil {
		return nil, err
	}

	id, err := s.store.Sequence(repository.SeqVisit).Next()
	if err != nil {
		return nil, err
	}

	visit := &types.Visit{
		ID:        id,
		Patient:   patient,
		Physician: physician,
		CreatedAt: now,
	}
	if err := s.store.PutVisit(visit); err != nil {
		return nil, err
	}

	if err := s.grants.Upsert(patient, physician, now); err != nil {
		return nil, err
	}
	return visit, nil
}

// RecordSummary attaches a summary hash to a visit. Only the visit's
// physician may set it; later calls overwrite earlier summaries.
func (s *Scheduler) RecordSummary(physician string, visitID uint64, summaryHash string) (*types.Visit, error) {
	last, err := s.store.Sequence(repository.SeqVisit).Current()
	if err != nil {
		return nil, err
	}
	if visitID > last {
		return nil, types.NewError(types.KindInvalidParameter, "visit %d has not been allocated", visitID)
	}
	if err := types.CheckHash(summaryHash, s.minHashLength); err != nil {
		return nil, err
	}

	visit, err := s.store.Visit(visitID)
	if err != nil {
		return nil, err
	}
	if visit == nil {
		return nil, types.NewError(types.KindNotFound, "visit %d not found", visitID)
	}
	if visit.Physician != physician {
		return nil, types.NewError(types.KindUnauthorized, "%s is not the physician of visit %d", physician, visitID)
	}

	visit.SummaryHash = summaryHash
	if err := s.store.PutVisit(visit); err != nil {
		return nil, err
	}
	return visit, nil
}

// Visit returns the visit with id or NotFound
func (s *Scheduler) Visit(id uint64) (*types.Visit, error) {
	visit, err := s.store.Visit(id)
	if err != nil {
		return nil, err
	}
	if visit == nil {
		return nil, types.NewError(types.KindNotFound, "visit %d not found", id)
	}
	return visit, nil
}

// Frequency returns the physician's current frequency counter
func (s *Scheduler) Frequency(physician string) (*types.FrequencyCounter, error) {
	return s.limiter.Counter(physician)
}
