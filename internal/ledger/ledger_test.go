package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medrex/care-ledger/pkg/config"
	"github.com/medrex/care-ledger/pkg/logger"
	"github.com/medrex/care-ledger/pkg/monitoring"
	"github.com/medrex/care-ledger/pkg/repository"
	"github.com/medrex/care-ledger/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var (
	key     = strings.Repeat("k", 66)
	summary = strings.Repeat("deadbeef", 8)
	record  = strings.Repeat("ab", 32)
)

type MockCapability struct {
	mock.Mock
}

func (m *MockCapability) ID() string {
	return m.Called().String(0)
}

func (m *MockCapability) Transfer(amount uint64, sender, receiver, memo string) error {
	return m.Called(amount, sender, receiver, memo).Error(0)
}

type LedgerTestSuite struct {
	suite.Suite
	ctx    context.Context
	state  *repository.LevelState
	clock  *ManualClock
	sink   *RecordingSink
	logBuf *bytes.Buffer
	ledger *Ledger
}

func (s *LedgerTestSuite) SetupTest() {
	state, err := repository.NewMemLevelState()
	s.Require().NoError(err)

	s.ctx = WithTxID(context.Background(), "tx-1")
	s.state = state
	s.clock = NewManualClock(100)
	s.sink = &RecordingSink{}
	s.logBuf = &bytes.Buffer{}
	s.ledger = New(state, config.Default().Ledger, s.clock,
		WithEventSink(s.sink),
		WithLogger(logger.NewWithOutput("info", s.logBuf)),
	)
}

func (s *LedgerTestSuite) TearDownTest() {
	s.Require().NoError(s.state.Close())
}

func (s *LedgerTestSuite) register(id string, role types.Role) {
	_, err := s.ledger.Register(s.ctx, id, role, key)
	s.Require().NoError(err)
}

func (s *LedgerTestSuite) snapshot() map[string][]byte {
	snap, err := s.state.Snapshot()
	s.Require().NoError(err)
	return snap
}

// assertUnchanged runs op, expects it to fail with want and checks that the
// world state was not touched
func (s *LedgerTestSuite) assertUnchanged(want error, op func() error) {
	before := s.snapshot()
	err := op()
	s.ErrorIs(err, want)
	s.Equal(before, s.snapshot())
}

func (s *LedgerTestSuite) TestScenario() {
	s.register("A", types.RolePatient)
	s.register("B", types.RolePhysician)
	s.register("C", types.RoleDispenser)

	visit, err := s.ledger.BookVisit(s.ctx, "A", "B")
	s.Require().NoError(err)
	s.Equal(uint64(1), visit.ID)

	ok, err := s.ledger.HasAccess(s.ctx, "A", "B")
	s.Require().NoError(err)
	s.True(ok)

	_, err = s.ledger.RecordSummary(s.ctx, "B", 1, summary)
	s.Require().NoError(err)
	visit, err = s.ledger.Visit(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(summary, visit.SummaryHash)

	order, err := s.ledger.CreateOrder(s.ctx, "B", "A", "amoxicillin", 50)
	s.Require().NoError(err)
	s.Equal(uint64(1), order.ID)

	order, err = s.ledger.ChooseDispenser(s.ctx, "A", 1, "C")
	s.Require().NoError(err)
	s.Require().NotNil(order.Dispenser)
	s.Equal("C", *order.Dispenser)

	order, err = s.ledger.FulfillOrder(s.ctx, "C", 1)
	s.Require().NoError(err)
	s.True(order.Fulfilled)

	_, err = s.ledger.FulfillOrder(s.ctx, "C", 1)
	s.ErrorIs(err, types.ErrTaskFailed)

	events := s.sink.Events()
	s.Require().Len(events, 1)
	s.Equal(types.EventOrderFulfilled, events[0].Name)
	event := events[0].Payload.(*types.FulfillmentEvent)
	s.Equal(uint64(1), event.OrderID)
	s.Equal("C", event.Dispenser)
	s.Equal("A", event.Patient)
	s.Equal(uint64(100), event.Tick)
	s.Equal(eventID("tx-1", 1), event.EventID)
}

func (s *LedgerTestSuite) TestExpiredOrderKeepsNoDispenser() {
	s.register("A", types.RolePatient)
	s.register("B", types.RolePhysician)
	s.register("C", types.RoleDispenser)

	_, err := s.ledger.CreateOrder(s.ctx, "B", "A", "ibuprofen", 200)
	s.Require().NoError(err)

	s.clock.Advance(config.Default().Ledger.OrderValidity)

	active, err := s.ledger.IsOrderActive(s.ctx, 1)
	s.Require().NoError(err)
	s.False(active)

	s.assertUnchanged(types.ErrTimeout, func() error {
		_, err := s.ledger.ChooseDispenser(s.ctx, "A", 1, "C")
		return err
	})

	order, err := s.ledger.Order(s.ctx, 1)
	s.Require().NoError(err)
	s.Nil(order.Dispenser)
}

func (s *LedgerTestSuite) TestFailedCallsLeaveStateUntouched() {
	s.register("A", types.RolePatient)
	s.register("B", types.RolePhysician)

	s.assertUnchanged(types.ErrDuplicate, func() error {
		_, err := s.ledger.Register(s.ctx, "A", types.RoleDispenser, key)
		return err
	})
	s.assertUnchanged(types.ErrInvalidParameter, func() error {
		_, err := s.ledger.Register(s.ctx, "D", types.RolePatient, "short")
		return err
	})
	s.assertUnchanged(types.ErrInvalidParameter, func() error {
		_, err := s.ledger.CreateOrder(s.ctx, "B", "A", "x", 5000)
		return err
	})
	s.assertUnchanged(types.ErrInvalidPhysician, func() error {
		_, err := s.ledger.BookVisit(s.ctx, "A", "A")
		return err
	})
	s.assertUnchanged(types.ErrNotFound, func() error {
		return s.ledger.RevokeAccess(s.ctx, "A", "B")
	})
}

func (s *LedgerTestSuite) TestFrequencyExceededCreatesNoVisitOrGrant() {
	cfg := config.Default().Ledger
	cfg.MaxVisitsPerWindow = 2
	s.ledger = New(s.state, cfg, s.clock, WithEventSink(s.sink))

	s.register("A", types.RolePatient)
	s.register("E", types.RolePatient)
	s.register("F", types.RolePatient)
	s.register("B", types.RolePhysician)

	_, err := s.ledger.BookVisit(s.ctx, "A", "B")
	s.Require().NoError(err)
	_, err = s.ledger.BookVisit(s.ctx, "E", "B")
	s.Require().NoError(err)

	s.assertUnchanged(types.ErrFrequencyExceeded, func() error {
		_, err := s.ledger.BookVisit(s.ctx, "F", "B")
		return err
	})

	ok, err := s.ledger.HasAccess(s.ctx, "F", "B")
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.ledger.Visit(s.ctx, 3)
	s.ErrorIs(err, types.ErrNotFound)

	s.clock.Advance(cfg.FrequencyWindow + 1)
	visit, err := s.ledger.BookVisit(s.ctx, "F", "B")
	s.Require().NoError(err)
	s.Equal(uint64(3), visit.ID)
}

func (s *LedgerTestSuite) TestGrantRevokeAndRead() {
	s.register("A", types.RolePatient)
	s.register("B", types.RolePhysician)

	_, err := s.ledger.UpdateRecord(s.ctx, "A", record)
	s.Require().NoError(err)

	_, err = s.ledger.GrantAccess(s.ctx, "A", "B")
	s.Require().NoError(err)

	rec, err := s.ledger.ReadRecord(s.ctx, "B", "A")
	s.Require().NoError(err)
	s.Equal(record, rec.RecordHash)

	s.Require().NoError(s.ledger.RevokeAccess(s.ctx, "A", "B"))
	s.logBuf.Reset()

	_, err = s.ledger.ReadRecord(s.ctx, "B", "A")
	s.ErrorIs(err, types.ErrAccessDenied)

	var line map[string]interface{}
	s.Require().NoError(json.Unmarshal(s.logBuf.Bytes(), &line))
	s.Equal("record_read_denied", line["event"])
	s.Equal("B", line["user_id"])
}

func (s *LedgerTestSuite) TestAdminConfiguration() {
	_, err := s.ledger.AdminConfig(s.ctx)
	s.ErrorIs(err, types.ErrNotFound)

	s.Require().NoError(s.ledger.Init(s.ctx, "admin"))
	s.ErrorIs(s.ledger.Init(s.ctx, "mallory"), types.ErrDuplicate)

	s.assertUnchanged(types.ErrUnauthorized, func() error {
		return s.ledger.SetPaymentCapability(s.ctx, "mallory", "token")
	})
	s.ErrorIs(s.ledger.SetPaymentCapability(s.ctx, "admin", " "), types.ErrInvalidParameter)
	s.Require().NoError(s.ledger.SetPaymentCapability(s.ctx, "admin", "token"))

	cfg, err := s.ledger.AdminConfig(s.ctx)
	s.Require().NoError(err)
	s.Equal(&types.AdminConfig{Owner: "admin", PaymentCapability: "token"}, cfg)
}

func (s *LedgerTestSuite) TestPay() {
	s.register("A", types.RolePatient)
	s.register("C", types.RoleDispenser)
	s.Require().NoError(s.ledger.Init(s.ctx, "admin"))
	s.Require().NoError(s.ledger.SetPaymentCapability(s.ctx, "admin", "token"))

	capability := &MockCapability{}
	capability.On("ID").Return("token")
	capability.On("Transfer", uint64(30), "A", "C", "order 1").Return(nil).Once()
	capability.On("Transfer", uint64(99), "A", "C", "").Return(errors.New("insufficient funds")).Once()

	tx, err := s.ledger.Pay(s.ctx, "A", 30, "C", "order 1", capability)
	s.Require().NoError(err)
	s.Equal(uint64(1), tx.ID)
	s.Equal(uint64(100), tx.CreatedAt)

	s.assertUnchanged(types.ErrTaskFailed, func() error {
		_, err := s.ledger.Pay(s.ctx, "A", 99, "C", "", capability)
		return err
	})

	stored, err := s.ledger.Transaction(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(tx, stored)

	_, err = s.ledger.Transaction(s.ctx, 2)
	s.ErrorIs(err, types.ErrNotFound)
	capability.AssertExpectations(s.T())
}

func (s *LedgerTestSuite) TestAccountReads() {
	s.register("A", types.RolePatient)

	role, err := s.ledger.RoleOf(s.ctx, "A")
	s.Require().NoError(err)
	s.Equal(types.RolePatient, role)

	acc, err := s.ledger.Account(s.ctx, "A")
	s.Require().NoError(err)
	s.Equal(uint64(100), acc.RegisteredAt)

	_, err = s.ledger.RoleOf(s.ctx, "nobody")
	s.ErrorIs(err, types.ErrNotFound)
}

func TestLedgerTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

type failingSink struct {
	staged bool
}

func (failingSink) Emit(string, interface{}) error { return errors.New("sink closed") }

func (s failingSink) Staged() bool { return s.staged }

func fulfillWithSink(t *testing.T, sink EventSink) (*repository.LevelState, *Ledger, map[string][]byte, error) {
	t.Helper()
	state, err := repository.NewMemLevelState()
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.Close() })

	ctx := context.Background()
	l := New(state, config.Default().Ledger, NewManualClock(0), WithEventSink(sink))
	for id, role := range map[string]types.Role{"A": types.RolePatient, "B": types.RolePhysician, "C": types.RoleDispenser} {
		_, err := l.Register(ctx, id, role, key)
		require.NoError(t, err)
	}
	_, err = l.CreateOrder(ctx, "B", "A", "x", 1)
	require.NoError(t, err)
	_, err = l.ChooseDispenser(ctx, "A", 1, "C")
	require.NoError(t, err)

	before, err := state.Snapshot()
	require.NoError(t, err)
	_, err = l.FulfillOrder(ctx, "C", 1)
	return state, l, before, err
}

func TestFulfillOrder_StagedSinkFailureDiscardsWrites(t *testing.T) {
	state, l, before, err := fulfillWithSink(t, failingSink{staged: true})
	assert.ErrorIs(t, err, types.ErrInternal)

	after, err := state.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	order, err := l.Order(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, order.Fulfilled)
}

func TestFulfillOrder_SinkFailureAfterCommitSurfaces(t *testing.T) {
	_, l, _, err := fulfillWithSink(t, failingSink{})
	assert.ErrorIs(t, err, types.ErrInternal)

	order, err := l.Order(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, order.Fulfilled)
}

func TestMonitoringRecordsOperations(t *testing.T) {
	state, err := repository.NewMemLevelState()
	require.NoError(t, err)
	defer state.Close()

	metrics, err := monitoring.NewMetricsCollector(nil)
	require.NoError(t, err)

	ctx := context.Background()
	l := New(state, config.Default().Ledger, NewManualClock(0), WithMonitoring(monitoring.NewMonitoringMiddleware(metrics, nil)))

	_, err = l.Register(ctx, "A", types.RolePatient, key)
	require.NoError(t, err)
	_, err = l.Register(ctx, "A", types.RolePatient, key)
	require.Error(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `careledger_errors_total{code="DUPLICATE",operation="Register"} 1`)
	assert.Contains(t, body, `careledger_operations_total{operation="Register",outcome="success"} 1`)
	assert.Contains(t, body, `careledger_operations_total{operation="Register",outcome="failure"} 1`)
}

func TestEventIDIsDeterministic(t *testing.T) {
	assert.Equal(t, eventID("tx", 1), eventID("tx", 1))
	assert.NotEqual(t, eventID("tx", 1), eventID("tx", 2))
	assert.NotEqual(t, eventID("tx", 1), eventID("other", 1))
}

func TestManualClock(t *testing.T) {
	c := NewManualClock(5)
	c.Advance(3)
	c.Set(2)
	now, err := c.Tick()
	require.NoError(t, err)
	assert.Equal(t, uint64(8), now)
}
