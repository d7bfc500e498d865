// Package careledger exposes the care ledger as a Fabric smart contract.
// The caller of every transaction is the submitting client identity.
package careledger

import (
	"context"
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/medrex/care-ledger/internal/ledger"
	"github.com/medrex/care-ledger/pkg/config"
	"github.com/medrex/care-ledger/pkg/logger"
	"github.com/medrex/care-ledger/pkg/monitoring"
	"github.com/medrex/care-ledger/pkg/types"
)

// SmartContract provides the healthcare workflow transactions
type SmartContract struct {
	contractapi.Contract

	cfg     *config.Config
	log     *logger.Logger
	monitor *monitoring.MonitoringMiddleware
}

// NewSmartContract creates the contract. A nil cfg uses the defaults.
func NewSmartContract(cfg *config.Config, log *logger.Logger, monitor *monitoring.MonitoringMiddleware) *SmartContract {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &SmartContract{cfg: cfg, log: log, monitor: monitor}
}

// AccountView is a registered account as returned to clients
type AccountView struct {
	ID            string `json:"id"`
	Role          string `json:"role"`
	EncryptionKey string `json:"encryption_key"`
	RegisteredAt  uint64 `json:"registered_at"`
}

// OrderView is a medication order as returned to clients
type OrderView struct {
	ID         uint64 `json:"id"`
	Patient    string `json:"patient"`
	Physician  string `json:"physician"`
	Dispenser  string `json:"dispenser,omitempty" metadata:",optional"`
	Medication string `json:"medication"`
	Dosage     uint64 `json:"dosage"`
	CreatedAt  uint64 `json:"created_at"`
	Fulfilled  bool   `json:"fulfilled"`
	State      string `json:"state"`
}

func accountView(acc *types.Account) *AccountView {
	if acc == nil {
		return nil
	}
	return &AccountView{
		ID:            acc.ID,
		Role:          acc.Role.String(),
		EncryptionKey: acc.EncryptionKey,
		RegisteredAt:  acc.RegisteredAt,
	}
}

func orderView(o *types.MedicationOrder) *OrderView {
	if o == nil {
		return nil
	}
	v := &OrderView{
		ID:         o.ID,
		Patient:    o.Patient,
		Physician:  o.Physician,
		Medication: o.Medication,
		Dosage:     o.Dosage,
		CreatedAt:  o.CreatedAt,
		Fulfilled:  o.Fulfilled,
		State:      string(o.State()),
	}
	if o.Dispenser != nil {
		v.Dispenser = *o.Dispenser
	}
	return v
}

func (s *SmartContract) settings() *config.Config {
	if s.cfg == nil {
		return config.Default()
	}
	return s.cfg
}

func (s *SmartContract) auditLogger() *logger.Logger {
	if s.log == nil {
		return logger.Discard()
	}
	return s.log
}

// open binds a ledger to the transaction's world state
func (s *SmartContract) open(ctx contractapi.TransactionContextInterface) (*ledger.Ledger, context.Context) {
	stub := ctx.GetStub()
	cfg := s.settings()
	l := ledger.New(stub, cfg.Ledger, txClock{stub: stub, tickSeconds: cfg.Ledger.TickSeconds},
		ledger.WithEventSink(stubSink{stub: stub}),
		ledger.WithLogger(s.auditLogger()),
		ledger.WithMonitoring(s.monitor),
	)
	return l, ledger.WithTxID(context.Background(), stub.GetTxID())
}

// getCallerIdentity gets the identity of the transaction caller
func (s *SmartContract) getCallerIdentity(ctx contractapi.TransactionContextInterface) (string, error) {
	id, err := ctx.GetClientIdentity().GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client ID: %v", err)
	}
	return id, nil
}

// InitLedger makes the caller the owner of the ledger
func (s *SmartContract) InitLedger(ctx contractapi.TransactionContextInterface) error {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return err
	}
	l, c := s.open(ctx)
	return l.Init(c, caller)
}

// SetPaymentCapability pins the token chaincode trusted for payments
func (s *SmartContract) SetPaymentCapability(ctx contractapi.TransactionContextInterface, tokenChaincode string) error {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return err
	}
	l, c := s.open(ctx)
	return l.SetPaymentCapability(c, caller, tokenChaincode)
}

// GetAdminConfig returns the ledger owner and payment capability
func (s *SmartContract) GetAdminConfig(ctx contractapi.TransactionContextInterface) (*types.AdminConfig, error) {
	l, c := s.open(ctx)
	return l.AdminConfig(c)
}

// WhoAmI returns the identity the ledger sees for the caller
func (s *SmartContract) WhoAmI(ctx contractapi.TransactionContextInterface) (string, error) {
	return s.getCallerIdentity(ctx)
}

// Register registers the caller with a role and public encryption key
func (s *SmartContract) Register(ctx contractapi.TransactionContextInterface, role, encryptionKey string) (*AccountView, error) {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	// an unknown role name maps to the zero Role so a registered caller
	// still gets Duplicate
	r, err := types.ParseRole(role)
	if err != nil {
		r = types.Role(0)
	}
	l, c := s.open(ctx)
	acc, err := l.Register(c, caller, r, encryptionKey)
	return accountView(acc), err
}

// GetRole returns the role of a registered identity
func (s *SmartContract) GetRole(ctx contractapi.TransactionContextInterface, identity string) (string, error) {
	l, c := s.open(ctx)
	role, err := l.RoleOf(c, identity)
	if err != nil {
		return "", err
	}
	return role.String(), nil
}

// GetAccount returns a registered account
func (s *SmartContract) GetAccount(ctx contractapi.TransactionContextInterface, identity string) (*AccountView, error) {
	l, c := s.open(ctx)
	acc, err := l.Account(c, identity)
	return accountView(acc), err
}

// GrantAccess lets viewer read the calling patient's record
func (s *SmartContract) GrantAccess(ctx contractapi.TransactionContextInterface, viewer string) (*types.AccessGrant, error) {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	l, c := s.open(ctx)
	return l.GrantAccess(c, caller, viewer)
}

// RevokeAccess removes the calling patient's grant for viewer
func (s *SmartContract) RevokeAccess(ctx contractapi.TransactionContextInterface, viewer string) error {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return err
	}
	l, c := s.open(ctx)
	return l.RevokeAccess(c, caller, viewer)
}

// HasAccess reports whether viewer may read patient's record
func (s *SmartContract) HasAccess(ctx contractapi.TransactionContextInterface, patient, viewer string) (bool, error) {
	l, c := s.open(ctx)
	return l.HasAccess(c, patient, viewer)
}

// GetGrant returns the grant record for a patient and viewer
func (s *SmartContract) GetGrant(ctx contractapi.TransactionContextInterface, patient, viewer string) (*types.AccessGrant, error) {
	l, c := s.open(ctx)
	return l.Grant(c, patient, viewer)
}

// UpdateRecord replaces the calling patient's record hash
func (s *SmartContract) UpdateRecord(ctx contractapi.TransactionContextInterface, recordHash string) (*types.HealthRecord, error) {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	l, c := s.open(ctx)
	return l.UpdateRecord(c, caller, recordHash)
}

// ReadRecord returns patient's record when the caller has access
func (s *SmartContract) ReadRecord(ctx contractapi.TransactionContextInterface, patient string) (*types.HealthRecord, error) {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	l, c := s.open(ctx)
	return l.ReadRecord(c, caller, patient)
}

// BookVisit books a visit between the calling patient and physician
func (s *SmartContract) BookVisit(ctx contractapi.TransactionContextInterface, physician string) (*types.Visit, error) {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	l, c := s.open(ctx)
	return l.BookVisit(c, caller, physician)
}

// RecordSummary attaches a summary hash to the calling physician's visit
func (s *SmartContract) RecordSummary(ctx contractapi.TransactionContextInterface, visitID uint64, summaryHash string) (*types.Visit, error) {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	l, c := s.open(ctx)
	return l.RecordSummary(c, caller, visitID, summaryHash)
}

// GetVisit returns a visit
func (s *SmartContract) GetVisit(ctx contractapi.TransactionContextInterface, visitID uint64) (*types.Visit, error) {
	l, c := s.open(ctx)
	return l.Visit(c, visitID)
}

// GetFrequency returns a physician's booking counter
func (s *SmartContract) GetFrequency(ctx contractapi.TransactionContextInterface, physician string) (*types.FrequencyCounter, error) {
	l, c := s.open(ctx)
	return l.Frequency(c, physician)
}

// CreateOrder issues a medication order from the calling physician
func (s *SmartContract) CreateOrder(ctx contractapi.TransactionContextInterface, patient, medication string, dosage uint64) (*OrderView, error) {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	l, c := s.open(ctx)
	order, err := l.CreateOrder(c, caller, patient, medication, dosage)
	return orderView(order), err
}

// ChooseDispenser assigns a dispenser to the calling patient's order
func (s *SmartContract) ChooseDispenser(ctx contractapi.TransactionContextInterface, orderID uint64, dispenser string) (*OrderView, error) {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	l, c := s.open(ctx)
	order, err := l.ChooseDispenser(c, caller, orderID, dispenser)
	return orderView(order), err
}

// FulfillOrder marks an order fulfilled by the calling dispenser
func (s *SmartContract) FulfillOrder(ctx contractapi.TransactionContextInterface, orderID uint64) (*OrderView, error) {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	l, c := s.open(ctx)
	order, err := l.FulfillOrder(c, caller, orderID)
	return orderView(order), err
}

// GetOrder returns a medication order
func (s *SmartContract) GetOrder(ctx contractapi.TransactionContextInterface, orderID uint64) (*OrderView, error) {
	l, c := s.open(ctx)
	order, err := l.Order(c, orderID)
	return orderView(order), err
}

// IsOrderActive reports whether a dispenser can still be chosen for an order
func (s *SmartContract) IsOrderActive(ctx contractapi.TransactionContextInterface, orderID uint64) (bool, error) {
	l, c := s.open(ctx)
	return l.IsOrderActive(c, orderID)
}

// Pay moves amount from the caller to receiver through tokenChaincode
func (s *SmartContract) Pay(ctx contractapi.TransactionContextInterface, amount uint64, receiver, memo, tokenChaincode string) (*types.Transaction, error) {
	caller, err := s.getCallerIdentity(ctx)
	if err != nil {
		return nil, err
	}
	l, c := s.open(ctx)
	capability := tokenCapability{
		stub:      ctx.GetStub(),
		chaincode: tokenChaincode,
		channel:   s.settings().Chaincode.TokenChannel,
		log:       s.auditLogger(),
	}
	return l.Pay(c, caller, amount, receiver, memo, capability)
}

// GetTransaction returns a payment transaction
func (s *SmartContract) GetTransaction(ctx contractapi.TransactionContextInterface, txID uint64) (*types.Transaction, error) {
	l, c := s.open(ctx)
	return l.Transaction(c, txID)
}
