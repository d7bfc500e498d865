package scheduling

import (
	"strings"
	"testing"

	"github.com/medrex/care-ledger/internal/access"
	"github.com/medrex/care-ledger/internal/registry"
	"github.com/medrex/care-ledger/pkg/config"
	"github.com/medrex/care-ledger/pkg/repository"
	"github.com/medrex/care-ledger/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var summary = strings.Repeat("de", 32)

type fixture struct {
	scheduler *Scheduler
	grants    *access.Ledger
	store     *repository.Store
}

func newFixture(t *testing.T, limit, window uint64) *fixture {
	t.Helper()
	state, err := repository.NewMemLevelState()
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.Close() })

	cfg := config.Default().Ledger
	cfg.MaxVisitsPerWindow = limit
	cfg.FrequencyWindow = window
	cfg.EncryptionKeyLength = 1

	store := repository.NewStore(state)
	reg := registry.New(store, 1)
	for id, role := range map[string]types.Role{
		"alice": types.RolePatient,
		"dave":  types.RolePatient,
		"bob":   types.RolePhysician,
		"erin":  types.RolePhysician,
		"carol": types.RoleDispenser,
	} {
		_, err := reg.Register(id, role, "k", 0)
		require.NoError(t, err)
	}
	grants := access.New(store, reg)
	return &fixture{scheduler: New(store, reg, grants, cfg), grants: grants, store: store}
}

func TestBook_CreatesVisitAndGrantsPhysician(t *testing.T) {
	f := newFixture(t, 10, 144)

	visit, err := f.scheduler.Book("alice", "bob", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), visit.ID)
	assert.Equal(t, "alice", visit.Patient)
	assert.Equal(t, "bob", visit.Physician)
	assert.Equal(t, uint64(3), visit.CreatedAt)
	assert.Empty(t, visit.SummaryHash)

	ok, err := f.grants.HasAccess("alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	second, err := f.scheduler.Book("dave", "bob", 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.ID)
}

func TestBook_RoleChecks(t *testing.T) {
	f := newFixture(t, 10, 144)

	_, err := f.scheduler.Book("bob", "erin", 1)
	assert.ErrorIs(t, err, types.ErrInvalidPatient)

	_, err = f.scheduler.Book("alice", "carol", 1)
	assert.ErrorIs(t, err, types.ErrInvalidPhysician)

	_, err = f.scheduler.Book("ghost", "bob", 1)
	assert.ErrorIs(t, err, types.ErrInvalidPatient)

	last, err := f.store.Sequence(repository.SeqVisit).Current()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), last)
}

func TestBook_OverridesRevokedGrant(t *testing.T) {
	f := newFixture(t, 10, 144)
	_, err := f.grants.Grant("alice", "bob", 1)
	require.NoError(t, err)
	require.NoError(t, f.grants.Revoke("alice", "bob"))

	_, err = f.scheduler.Book("alice", "bob", 2)
	require.NoError(t, err)

	ok, err := f.grants.HasAccess("alice", "bob")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBook_FrequencyCap(t *testing.T) {
	f := newFixture(t, 3, 10)

	for i := 0; i < 3; i++ {
		_, err := f.scheduler.Book("alice", "bob", 5)
		require.NoError(t, err)
	}

	_, err := f.scheduler.Book("dave", "bob", 6)
	assert.ErrorIs(t, err, types.ErrFrequencyExceeded)

	fc, err := f.scheduler.Frequency("bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), fc.Count)

	// another physician is unaffected
	_, err = f.scheduler.Book("dave", "erin", 6)
	require.NoError(t, err)
}

func TestBook_WindowResetsAfterElapsing(t *testing.T) {
	f := newFixture(t, 2, 10)

	// default window starts at tick 0
	_, err := f.scheduler.Book("alice", "bob", 10)
	require.NoError(t, err)
	_, err = f.scheduler.Book("alice", "bob", 10)
	require.NoError(t, err)

	// tick 10 - 0 is not beyond the window
	_, err = f.scheduler.Book("alice", "bob", 10)
	assert.ErrorIs(t, err, types.ErrFrequencyExceeded)

	_, err = f.scheduler.Book("alice", "bob", 11)
	require.NoError(t, err)

	fc, err := f.scheduler.Frequency("bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(11), fc.WindowStart)
	assert.Equal(t, uint64(1), fc.Count)
}

func TestRecordSummary(t *testing.T) {
	f := newFixture(t, 10, 144)
	_, err := f.scheduler.Book("alice", "bob", 1)
	require.NoError(t, err)

	visit, err := f.scheduler.RecordSummary("bob", 1, summary)
	require.NoError(t, err)
	assert.Equal(t, summary, visit.SummaryHash)

	// corrections are allowed
	corrected := strings.Repeat("ef", 32)
	_, err = f.scheduler.RecordSummary("bob", 1, corrected)
	require.NoError(t, err)

	stored, err := f.scheduler.Visit(1)
	require.NoError(t, err)
	assert.Equal(t, corrected, stored.SummaryHash)
}

func TestRecordSummary_Errors(t *testing.T) {
	f := newFixture(t, 10, 144)
	_, err := f.scheduler.Book("alice", "bob", 1)
	require.NoError(t, err)

	_, err = f.scheduler.RecordSummary("bob", 2, summary)
	assert.ErrorIs(t, err, types.ErrInvalidParameter)

	_, err = f.scheduler.RecordSummary("bob", 1, "short")
	assert.ErrorIs(t, err, types.ErrInvalidParameter)

	_, err = f.scheduler.RecordSummary("bob", 0, summary)
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = f.scheduler.RecordSummary("erin", 1, summary)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestVisit_NotFound(t *testing.T) {
	f := newFixture(t, 10, 144)
	_, err := f.scheduler.Visit(7)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
