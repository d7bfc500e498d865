package repository

import (
	"encoding/json"

	"github.com/medrex/care-ledger/pkg/types"
)

// Store provides typed access to the entities kept in a world state. Lookups
// of absent entities return nil without an error.
type Store struct {
	state State
}

// NewStore creates a store over state
func NewStore(state State) *Store {
	return &Store{state: state}
}

// Sequence returns the id generator for the named entity kind
func (s *Store) Sequence(name string) *Sequence {
	return &Sequence{state: s.state, key: makeKey(kindSequence, name)}
}

func (s *Store) getJSON(key string, v interface{}) (bool, error) {
	raw, err := s.state.GetState(key)
	if err != nil {
		return false, types.NewInternalError("failed to read from world state", err)
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, types.NewInternalError("failed to decode "+key, err)
	}
	return true, nil
}

func (s *Store) putJSON(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return types.NewInternalError("failed to encode "+key, err)
	}
	if err := s.state.PutState(key, raw); err != nil {
		return types.NewInternalError("failed to put to world state", err)
	}
	return nil
}

// Account returns the account registered for id
func (s *Store) Account(id string) (*types.Account, error) {
	var acc types.Account
	ok, err := s.getJSON(makeKey(kindAccount, id), &acc)
	if err != nil || !ok {
		return nil, err
	}
	return &acc, nil
}

// PutAccount stores an account
func (s *Store) PutAccount(acc *types.Account) error {
	return s.putJSON(makeKey(kindAccount, acc.ID), acc)
}

// Grant returns the grant record for the pair
func (s *Store) Grant(patient, viewer string) (*types.AccessGrant, error) {
	var g types.AccessGrant
	ok, err := s.getJSON(makeKey(kindGrant, patient, viewer), &g)
	if err != nil || !ok {
		return nil, err
	}
	return &g, nil
}

// PutGrant stores a grant, replacing any existing record for the pair
func (s *Store) PutGrant(g *types.AccessGrant) error {
	return s.putJSON(makeKey(kindGrant, g.Patient, g.Viewer), g)
}

// DeleteGrant removes the grant record for the pair
func (s *Store) DeleteGrant(patient, viewer string) error {
	if err := s.state.DelState(makeKey(kindGrant, patient, viewer)); err != nil {
		return types.NewInternalError("failed to delete grant", err)
	}
	return nil
}

// Record returns the health record of a patient
func (s *Store) Record(patient string) (*types.HealthRecord, error) {
	var r types.HealthRecord
	ok, err := s.getJSON(makeKey(kindRecord, patient), &r)
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

// PutRecord overwrites the health record of a patient
func (s *Store) PutRecord(r *types.HealthRecord) error {
	return s.putJSON(makeKey(kindRecord, r.Patient), r)
}

// Visit returns the visit with id
func (s *Store) Visit(id uint64) (*types.Visit, error) {
	var v types.Visit
	ok, err := s.getJSON(makeKey(kindVisit, idPart(id)), &v)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// PutVisit stores a visit
func (s *Store) PutVisit(v *types.Visit) error {
	return s.putJSON(makeKey(kindVisit, idPart(v.ID)), v)
}

// Frequency returns the physician's counter, defaulting to an empty window at tick 0
func (s *Store) Frequency(physician string) (*types.FrequencyCounter, error) {
	fc := types.FrequencyCounter{Physician: physician}
	if _, err := s.getJSON(makeKey(kindFrequency, physician), &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// PutFrequency stores a physician's counter
func (s *Store) PutFrequency(fc *types.FrequencyCounter) error {
	return s.putJSON(makeKey(kindFrequency, fc.Physician), fc)
}

// Order returns the medication order with id
func (s *Store) Order(id uint64) (*types.MedicationOrder, error) {
	var o types.MedicationOrder
	ok, err := s.getJSON(makeKey(kindOrder, idPart(id)), &o)
	if err != nil || !ok {
		return nil, err
	}
	return &o, nil
}

// PutOrder stores a medication order
func (s *Store) PutOrder(o *types.MedicationOrder) error {
	return s.putJSON(makeKey(kindOrder, idPart(o.ID)), o)
}

// Transaction returns the payment transaction with id
func (s *Store) Transaction(id uint64) (*types.Transaction, error) {
	var t types.Transaction
	ok, err := s.getJSON(makeKey(kindTransaction, idPart(id)), &t)
	if err != nil || !ok {
		return nil, err
	}
	return &t, nil
}

// PutTransaction appends a payment transaction
func (s *Store) PutTransaction(t *types.Transaction) error {
	return s.putJSON(makeKey(kindTransaction, idPart(t.ID)), t)
}

// AdminConfig returns the administrative settings, or nil before initialization
func (s *Store) AdminConfig() (*types.AdminConfig, error) {
	var c types.AdminConfig
	ok, err := s.getJSON(makeKey(kindAdmin), &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// PutAdminConfig stores the administrative settings
func (s *Store) PutAdminConfig(c *types.AdminConfig) error {
	return s.putJSON(makeKey(kindAdmin), c)
}
