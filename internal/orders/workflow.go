// Package orders runs the medication order lifecycle: a physician creates an
// order, the patient chooses a dispenser, the dispenser fulfills it.
package orders

import (
	"strings"

	"github.com/medrex/care-ledger/internal/registry"
	"github.com/medrex/care-ledger/pkg/config"
	"github.com/medrex/care-ledger/pkg/repository"
	"github.com/medrex/care-ledger/pkg/types"
)

// Workflow is the medication order workflow bound to one ledger transaction
type Workflow struct {
	store     *repository.Store
	registry  *registry.Registry
	minDosage uint64
	maxDosage uint64
	validity  uint64
}

// New creates a medication order workflow
func New(store *repository.Store, reg *registry.Registry, cfg config.LedgerConfig) *Workflow {
	return &Workflow{
		store:     store,
		registry:  reg,
		minDosage: cfg.MinDosage,
		maxDosage: cfg.MaxDosage,
		validity:  cfg.OrderValidity,
	}
}

// Create issues a new order in the Created state
func (w *Workflow) Create(physician, patient, medication string, dosage, now uint64) (*types.MedicationOrder, error) {
	if err := w.registry.RequireRole(physician, types.RolePhysician); err != nil {
		return nil, err
	}
	if err := w.registry.RequireRole(patient, types.RolePatient); err != nil {
		return nil, err
	}
	if strings.TrimSpace(medication) == "" {
		return nil, types.NewError(types.KindInvalidParameter, "medication name is required")
	}
	if dosage < w.minDosage || dosage > w.maxDosage {
		return nil, types.NewError(types.KindInvalidParameter, "dosage %d outside [%d, %d]", dosage, w.minDosage, w.maxDosage)
	}

	id, err := w.store.Sequence(repository.SeqOrder).Next()
	if err != nil {
		return nil, err
	}

	order := &types.MedicationOrder{
		ID:         id,
		Patient:    patient,
		Physician:  physician,
		Medication: medication,
		Dosage:     dosage,
		CreatedAt:  now,
	}
	if err := w.store.PutOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// ChooseDispenser assigns the dispenser that will fill the order. A
// dispenser is chosen once, and only while the order is inside its
// validity window.
func (w *Workflow) ChooseDispenser(patient string, orderID uint64, dispenser string, now uint64) (*types.MedicationOrder, error) {
	if err := w.registry.RequireRole(patient, types.RolePatient); err != nil {
		return nil, err
	}
	if err := w.checkAllocated(orderID); err != nil {
		return nil, err
	}

	exists, err := w.registry.Exists(dispenser)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, types.NewError(types.KindNotFound, "dispenser %s is not registered", dispenser)
	}
	if err := w.registry.RequireRole(dispenser, types.RoleDispenser); err != nil {
		return nil, err
	}

	order, err := w.load(orderID)
	if err != nil {
		return nil, err
	}
	if order.Patient != patient {
		return nil, types.NewError(types.KindUnauthorized, "%s is not the patient of order %d", patient, orderID)
	}
	if order.Dispenser != nil {
		return nil, types.NewError(types.KindTaskFailed, "order %d already has a dispenser", orderID)
	}
	if order.Expired(now, w.validity) {
		return nil, types.NewError(types.KindTimeout, "order %d expired at tick %d", orderID, order.CreatedAt+w.validity)
	}

	order.Dispenser = &dispenser
	if err := w.store.PutOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// Fulfill marks the order fulfilled by its assigned dispenser. Expiry does
// not apply once a dispenser is chosen.
func (w *Workflow) Fulfill(dispenser string, orderID uint64, now uint64) (*types.MedicationOrder, *types.FulfillmentEvent, error) {
	if err := w.checkAllocated(orderID); err != nil {
		return nil, nil, err
	}

	order, err := w.load(orderID)
	if err != nil {
		return nil, nil, err
	}
	if !order.AssignedTo(dispenser) {
		return nil, nil, types.NewError(types.KindUnauthorized, "%s is not the dispenser of order %d", dispenser, orderID)
	}
	if order.Fulfilled {
		return nil, nil, types.NewError(types.KindTaskFailed, "order %d is already fulfilled", orderID)
	}

	order.Fulfilled = true
	if err := w.store.PutOrder(order); err != nil {
		return nil, nil, err
	}

	event := &types.FulfillmentEvent{
		OrderID:   order.ID,
		Dispenser: dispenser,
		Patient:   order.Patient,
		Tick:      now,
	}
	return order, event, nil
}

// Order returns the order with id or NotFound
func (w *Workflow) Order(id uint64) (*types.MedicationOrder, error) {
	return w.load(id)
}

// IsActive reports whether a dispenser can still be chosen for the order at tick now
func (w *Workflow) IsActive(id uint64, now uint64) (bool, error) {
	order, err := w.load(id)
	if err != nil {
		return false, err
	}
	return order.State() == types.OrderCreated && !order.Expired(now, w.validity), nil
}

func (w *Workflow) checkAllocated(orderID uint64) error {
	last, err := w.store.Sequence(repository.SeqOrder).Current()
	if err != nil {
		return err
	}
	if orderID > last {
		return types.NewError(types.KindInvalidParameter, "order %d has not been allocated", orderID)
	}
	return nil
}

func (w *Workflow) load(id uint64) (*types.MedicationOrder, error) {
	order, err := w.store.Order(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, types.NewError(types.KindNotFound, "order %d not found", id)
	}
	return order, nil
}
