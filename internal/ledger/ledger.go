// Package ledger is the entry point of the care ledger. Every call runs
// inside one buffered transaction over the world state: it commits when the
// call succeeds and is discarded otherwise, so a failed call leaves every
// store and sequence untouched.
package ledger

import (
	"context"
	"strings"
	"sync"

	"github.com/medrex/care-ledger/internal/access"
	"github.com/medrex/care-ledger/internal/orders"
	"github.com/medrex/care-ledger/internal/payments"
	"github.com/medrex/care-ledger/internal/records"
	"github.com/medrex/care-ledger/internal/registry"
	"github.com/medrex/care-ledger/internal/scheduling"
	"github.com/medrex/care-ledger/pkg/config"
	"github.com/medrex/care-ledger/pkg/logger"
	"github.com/medrex/care-ledger/pkg/monitoring"
	"github.com/medrex/care-ledger/pkg/repository"
	"github.com/medrex/care-ledger/pkg/types"
	"github.com/sirupsen/logrus"
)

// Ledger runs healthcare workflow operations against a world state
type Ledger struct {
	mu      sync.Mutex
	state   repository.State
	cfg     config.LedgerConfig
	clock   Clock
	sink    EventSink
	log     *logger.Logger
	monitor *monitoring.MonitoringMiddleware
}

// Option configures a Ledger
type Option func(*Ledger)

// WithEventSink sets the sink that receives emitted events
func WithEventSink(sink EventSink) Option {
	return func(l *Ledger) { l.sink = sink }
}

// WithLogger sets the audit logger
func WithLogger(log *logger.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithMonitoring wraps every operation in the given metrics and tracing
func WithMonitoring(mm *monitoring.MonitoringMiddleware) Option {
	return func(l *Ledger) { l.monitor = mm }
}

// New creates a ledger over state
func New(state repository.State, cfg config.LedgerConfig, clock Clock, opts ...Option) *Ledger {
	l := &Ledger{
		state: state,
		cfg:   cfg,
		clock: clock,
		sink:  discardSink{},
		log:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// components are the ledger parts bound to one transaction
type components struct {
	store     *repository.Store
	registry  *registry.Registry
	grants    *access.Ledger
	records   *records.Store
	scheduler *scheduling.Scheduler
	orders    *orders.Workflow
	payments  *payments.Ledger

	now    uint64
	events []Event
}

func (l *Ledger) bind(state repository.State, now uint64) *components {
	store := repository.NewStore(state)
	reg := registry.New(store, l.cfg.EncryptionKeyLength)
	grants := access.New(store, reg)
	return &components{
		store:     store,
		registry:  reg,
		grants:    grants,
		records:   records.New(store, reg, grants, l.cfg.MinHashLength),
		scheduler: scheduling.New(store, reg, grants, l.cfg),
		orders:    orders.New(store, reg, l.cfg),
		payments:  payments.New(store, reg, l.cfg.MaxMemoLength),
		now:       now,
	}
}

func (c *components) emit(name string, payload interface{}) {
	c.events = append(c.events, Event{Name: name, Payload: payload})
}

// apply runs fn inside one transaction. Writes are committed only when fn
// succeeds. Events go to a staged sink before the commit, so a failed emit
// discards the write set. Any other sink receives them after the commit; if
// that emit fails the writes stay and the call reports Internal.
func (l *Ledger) apply(ctx context.Context, operation, caller string, fn func(c *components) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.monitor.OperationMiddleware(ctx, operation, caller, func(ctx context.Context) error {
		now, err := l.clock.Tick()
		if err != nil {
			return types.NewInternalError("failed to read clock", err)
		}

		tx := repository.NewTx(l.state)
		c := l.bind(tx, now)
		if err := fn(c); err != nil {
			tx.Discard()
			l.audit(operation, caller, now, err)
			return err
		}

		staged := isStaged(l.sink)
		if staged {
			if err := l.emit(c.events); err != nil {
				tx.Discard()
				l.audit(operation, caller, now, err)
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			err = types.NewInternalError("failed to commit transaction", err)
			l.audit(operation, caller, now, err)
			return err
		}
		if !staged {
			if err := l.emit(c.events); err != nil {
				l.audit(operation, caller, now, err)
				return err
			}
		}
		l.audit(operation, caller, now, nil)
		return nil
	})
}

func (l *Ledger) emit(events []Event) error {
	for _, ev := range events {
		if err := l.sink.Emit(ev.Name, ev.Payload); err != nil {
			return types.NewInternalError("failed to emit "+ev.Name, err)
		}
	}
	return nil
}

// view runs a read-only fn. Anything fn writes is discarded.
func (l *Ledger) view(ctx context.Context, operation string, fn func(c *components) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.monitor.OperationMiddleware(ctx, operation, "", func(ctx context.Context) error {
		now, err := l.clock.Tick()
		if err != nil {
			return types.NewInternalError("failed to read clock", err)
		}
		tx := repository.NewTx(l.state)
		defer tx.Discard()
		return fn(l.bind(tx, now))
	})
}

func (l *Ledger) audit(operation, caller string, now uint64, err error) {
	details := map[string]interface{}{"tick": now}
	if err != nil {
		details["error"] = types.CodeOf(err)
		details["reason"] = err.Error()
	}
	l.log.Audit(caller, operation, "ledger", err == nil, details)
}

// Init bootstraps the administrative configuration with its owner. It
// succeeds once.
func (l *Ledger) Init(ctx context.Context, owner string) error {
	return l.apply(ctx, "Init", owner, func(c *components) error {
		if strings.TrimSpace(owner) == "" {
			return types.NewError(types.KindInvalidParameter, "owner is required")
		}
		existing, err := c.store.AdminConfig()
		if err != nil {
			return err
		}
		if existing != nil {
			return types.NewError(types.KindDuplicate, "ledger is already initialized")
		}
		return c.store.PutAdminConfig(&types.AdminConfig{Owner: owner})
	})
}

// SetPaymentCapability pins the trusted payment capability. Only the owner
// may change it.
func (l *Ledger) SetPaymentCapability(ctx context.Context, caller, capabilityID string) error {
	return l.apply(ctx, "SetPaymentCapability", caller, func(c *components) error {
		cfg, err := c.store.AdminConfig()
		if err != nil {
			return err
		}
		if cfg == nil {
			return types.NewError(types.KindNotFound, "ledger is not initialized")
		}
		if caller != cfg.Owner {
			return types.NewError(types.KindUnauthorized, "%s is not the ledger owner", caller)
		}
		if strings.TrimSpace(capabilityID) == "" {
			return types.NewError(types.KindInvalidParameter, "payment capability id is required")
		}
		cfg.PaymentCapability = capabilityID
		return c.store.PutAdminConfig(cfg)
	})
}

// AdminConfig returns the administrative configuration
func (l *Ledger) AdminConfig(ctx context.Context) (*types.AdminConfig, error) {
	var out *types.AdminConfig
	err := l.view(ctx, "AdminConfig", func(c *components) error {
		cfg, err := c.store.AdminConfig()
		if err != nil {
			return err
		}
		if cfg == nil {
			return types.NewError(types.KindNotFound, "ledger is not initialized")
		}
		out = cfg
		return nil
	})
	return out, err
}

// Register creates the caller's account
func (l *Ledger) Register(ctx context.Context, caller string, role types.Role, encryptionKey string) (*types.Account, error) {
	var out *types.Account
	err := l.apply(ctx, "Register", caller, func(c *components) (err error) {
		out, err = c.registry.Register(caller, role, encryptionKey, c.now)
		return err
	})
	return out, err
}

// RoleOf returns the role of identity
func (l *Ledger) RoleOf(ctx context.Context, identity string) (types.Role, error) {
	var out types.Role
	err := l.view(ctx, "RoleOf", func(c *components) (err error) {
		out, err = c.registry.RoleOf(identity)
		return err
	})
	return out, err
}

// Account returns the account of identity
func (l *Ledger) Account(ctx context.Context, identity string) (*types.Account, error) {
	var out *types.Account
	err := l.view(ctx, "Account", func(c *components) (err error) {
		out, err = c.registry.Account(identity)
		return err
	})
	return out, err
}

// GrantAccess lets viewer read the caller's health record
func (l *Ledger) GrantAccess(ctx context.Context, caller, viewer string) (*types.AccessGrant, error) {
	var out *types.AccessGrant
	err := l.apply(ctx, "GrantAccess", caller, func(c *components) (err error) {
		out, err = c.grants.Grant(caller, viewer, c.now)
		return err
	})
	return out, err
}

// RevokeAccess removes the caller's grant for viewer
func (l *Ledger) RevokeAccess(ctx context.Context, caller, viewer string) error {
	return l.apply(ctx, "RevokeAccess", caller, func(c *components) error {
		return c.grants.Revoke(caller, viewer)
	})
}

// HasAccess reports whether viewer may read patient's record
func (l *Ledger) HasAccess(ctx context.Context, patient, viewer string) (bool, error) {
	var out bool
	err := l.view(ctx, "HasAccess", func(c *components) (err error) {
		out, err = c.grants.HasAccess(patient, viewer)
		return err
	})
	return out, err
}

// Grant returns the grant record for the pair
func (l *Ledger) Grant(ctx context.Context, patient, viewer string) (*types.AccessGrant, error) {
	var out *types.AccessGrant
	err := l.view(ctx, "Grant", func(c *components) (err error) {
		out, err = c.grants.Get(patient, viewer)
		return err
	})
	return out, err
}

// UpdateRecord replaces the caller's health record hash
func (l *Ledger) UpdateRecord(ctx context.Context, caller, recordHash string) (*types.HealthRecord, error) {
	var out *types.HealthRecord
	err := l.apply(ctx, "UpdateRecord", caller, func(c *components) (err error) {
		out, err = c.records.Update(caller, recordHash, c.now)
		return err
	})
	return out, err
}

// ReadRecord returns patient's health record to the caller
func (l *Ledger) ReadRecord(ctx context.Context, caller, patient string) (*types.HealthRecord, error) {
	var out *types.HealthRecord
	err := l.view(ctx, "ReadRecord", func(c *components) (err error) {
		out, err = c.records.Read(patient, caller)
		return err
	})
	if types.KindOf(err) == types.KindAccessDenied {
		l.log.Security("record_read_denied", caller, map[string]interface{}{"patient": patient})
	}
	return out, err
}

// BookVisit books a visit between the calling patient and physician
func (l *Ledger) BookVisit(ctx context.Context, caller, physician string) (*types.Visit, error) {
	var out *types.Visit
	err := l.apply(ctx, "BookVisit", caller, func(c *components) (err error) {
		out, err = c.scheduler.Book(caller, physician, c.now)
		return err
	})
	return out, err
}

// RecordSummary attaches the summary hash to a visit of the calling physician
func (l *Ledger) RecordSummary(ctx context.Context, caller string, visitID uint64, summaryHash string) (*types.Visit, error) {
	var out *types.Visit
	err := l.apply(ctx, "RecordSummary", caller, func(c *components) (err error) {
		out, err = c.scheduler.RecordSummary(caller, visitID, summaryHash)
		return err
	})
	return out, err
}

// Visit returns the visit with id
func (l *Ledger) Visit(ctx context.Context, id uint64) (*types.Visit, error) {
	var out *types.Visit
	err := l.view(ctx, "Visit", func(c *components) (err error) {
		out, err = c.scheduler.Visit(id)
		return err
	})
	return out, err
}

// Frequency returns the physician's booking counter
func (l *Ledger) Frequency(ctx context.Context, physician string) (*types.FrequencyCounter, error) {
	var out *types.FrequencyCounter
	err := l.view(ctx, "Frequency", func(c *components) (err error) {
		out, err = c.scheduler.Frequency(physician)
		return err
	})
	return out, err
}

// CreateOrder issues a medication order from the calling physician
func (l *Ledger) CreateOrder(ctx context.Context, caller, patient, medication string, dosage uint64) (*types.MedicationOrder, error) {
	var out *types.MedicationOrder
	err := l.apply(ctx, "CreateOrder", caller, func(c *components) (err error) {
		out, err = c.orders.Create(caller, patient, medication, dosage, c.now)
		return err
	})
	return out, err
}

// ChooseDispenser assigns a dispenser to the calling patient's order
func (l *Ledger) ChooseDispenser(ctx context.Context, caller string, orderID uint64, dispenser string) (*types.MedicationOrder, error) {
	var out *types.MedicationOrder
	err := l.apply(ctx, "ChooseDispenser", caller, func(c *components) (err error) {
		out, err = c.orders.ChooseDispenser(caller, orderID, dispenser, c.now)
		return err
	})
	return out, err
}

// FulfillOrder marks the order fulfilled by the calling dispenser and emits
// an OrderFulfilled event.
func (l *Ledger) FulfillOrder(ctx context.Context, caller string, orderID uint64) (*types.MedicationOrder, error) {
	var out *types.MedicationOrder
	err := l.apply(ctx, "FulfillOrder", caller, func(c *components) error {
		order, event, err := c.orders.Fulfill(caller, orderID, c.now)
		if err != nil {
			return err
		}
		event.EventID = eventID(TxIDFromContext(ctx), order.ID)
		c.emit(types.EventOrderFulfilled, event)
		out = order
		return nil
	})
	if err == nil {
		if m := l.monitor.Metrics(); m != nil {
			m.RecordFulfillment()
		}
		l.log.WithTxID(TxIDFromContext(ctx)).WithFields(logrus.Fields{
			"component": "orders",
			"order_id":  out.ID,
			"dispenser": caller,
			"patient":   out.Patient,
		}).Info("Medication order fulfilled")
	}
	return out, err
}

// Order returns the medication order with id
func (l *Ledger) Order(ctx context.Context, id uint64) (*types.MedicationOrder, error) {
	var out *types.MedicationOrder
	err := l.view(ctx, "Order", func(c *components) (err error) {
		out, err = c.orders.Order(id)
		return err
	})
	return out, err
}

// IsOrderActive reports whether a dispenser can still be chosen for the order
func (l *Ledger) IsOrderActive(ctx context.Context, id uint64) (bool, error) {
	var out bool
	err := l.view(ctx, "IsOrderActive", func(c *components) (err error) {
		out, err = c.orders.IsActive(id, c.now)
		return err
	})
	return out, err
}

// Pay moves amount from the caller to receiver through capability and
// records the transaction
func (l *Ledger) Pay(ctx context.Context, caller string, amount uint64, receiver, memo string, capability payments.Capability) (*types.Transaction, error) {
	var out *types.Transaction
	err := l.apply(ctx, "Pay", caller, func(c *components) (err error) {
		out, err = c.payments.Pay(caller, amount, receiver, memo, capability, c.now)
		return err
	})
	if err == nil {
		if m := l.monitor.Metrics(); m != nil {
			m.RecordPayment(amount)
		}
	}
	return out, err
}

// Transaction returns the payment transaction with id
func (l *Ledger) Transaction(ctx context.Context, id uint64) (*types.Transaction, error) {
	var out *types.Transaction
	err := l.view(ctx, "Transaction", func(c *components) (err error) {
		out, err = c.payments.Transaction(id)
		return err
	})
	return out, err
}
