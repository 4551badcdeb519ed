package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/charger-booking/internal/persistence"
	"github.com/example/charger-booking/internal/persistence/sqlite"
	"github.com/example/charger-booking/internal/testfixtures"
)

type repoFixture struct {
	pool         *sqlite.ConnectionPool
	accounts     *sqlite.AccountRepository
	residents    *sqlite.ResidentRepository
	reservations *sqlite.ReservationRepository
	sessions     *sqlite.SessionRepository
}

// newRepoFixture builds repositories over a migrated scratch database and
// seeds one account with residents alice and bob in unit 101 and carol in 202.
func newRepoFixture(t *testing.T) *repoFixture {
	t.Helper()

	pool := testfixtures.NewTestPool(t)
	f := &repoFixture{
		pool:         pool,
		accounts:     sqlite.NewAccountRepository(pool),
		residents:    sqlite.NewResidentRepository(pool),
		reservations: sqlite.NewReservationRepository(pool),
		sessions:     sqlite.NewSessionRepository(pool),
	}

	ctx := context.Background()
	require.NoError(t, f.accounts.CreateAccount(ctx, testfixtures.NewAccount("acct")))
	require.NoError(t, f.residents.CreateResident(ctx, testfixtures.NewResident("alice", "acct", "101")))
	require.NoError(t, f.residents.CreateResident(ctx, testfixtures.NewResident("bob", "acct", "101")))
	require.NoError(t, f.residents.CreateResident(ctx, testfixtures.NewResident("carol", "acct", "202")))
	return f
}

func TestReservationRoundTrip(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	reservation := testfixtures.NewReservation("r1", "acct", "alice", time.Hour)
	created, err := f.reservations.CreateReservation(ctx, reservation, []string{"alice", "bob"}, testfixtures.BaseTime)
	require.NoError(t, err)
	assert.Equal(t, "r1", created.ID)

	got, err := f.reservations.GetReservation(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.ResidentID)
	assert.True(t, got.Start.Equal(reservation.Start))
	assert.True(t, got.End.Equal(reservation.End))
	assert.True(t, got.CreatedAt.Equal(testfixtures.BaseTime),
		"created_at must be stamped from the caller's clock")
}

func TestCreateReservationConcurrentRace(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reservation := testfixtures.NewReservation(fmt.Sprintf("race-%d", i), "acct", "alice", time.Hour)
			_, errs[i] = f.reservations.CreateReservation(ctx, reservation, []string{"alice", "bob"}, testfixtures.BaseTime)
		}(i)
	}
	wg.Wait()

	admitted := 0
	for i, err := range errs {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, persistence.ErrSlotConflict), errors.Is(err, persistence.ErrUnitQuotaExceeded):
		default:
			t.Fatalf("attempt %d: unexpected error: %v", i, err)
		}
	}
	assert.Equal(t, 1, admitted, "exactly one racing request may win")

	rows, err := f.reservations.ListReservations(ctx, persistence.ReservationFilter{AccountID: "acct"})
	require.NoError(t, err)
	assert.Len(t, rows, 1, "losing attempts must leave no rows behind")
}

func TestCreateReservationRejectsSubSecond(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	reservation := testfixtures.NewReservation("r1", "acct", "alice", time.Hour)
	reservation.Start = reservation.Start.Add(200 * time.Millisecond)
	reservation.End = reservation.End.Add(200 * time.Millisecond)

	_, err := f.reservations.CreateReservation(ctx, reservation, nil, testfixtures.BaseTime)
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation,
		"sub-second bounds would be truncated by the text comparison")
}

func TestCreateReservationSlotConflict(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	first := testfixtures.NewReservation("r1", "acct", "alice", time.Hour)
	_, err := f.reservations.CreateReservation(ctx, first, []string{"alice"}, testfixtures.BaseTime)
	require.NoError(t, err)

	// Carol is in another unit, so only the charger overlap applies.
	second := testfixtures.NewReservation("r2", "acct", "carol", 90*time.Minute)
	_, err = f.reservations.CreateReservation(ctx, second, []string{"carol"}, testfixtures.BaseTime)
	assert.ErrorIs(t, err, persistence.ErrSlotConflict)

	_, err = f.reservations.GetReservation(ctx, "r2")
	assert.ErrorIs(t, err, persistence.ErrNotFound, "losing insert must leave no row behind")
}

func TestCreateReservationAbuttingAllowed(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	first := testfixtures.NewReservation("r1", "acct", "alice", time.Hour)
	_, err := f.reservations.CreateReservation(ctx, first, []string{"alice"}, testfixtures.BaseTime)
	require.NoError(t, err)

	second := testfixtures.NewReservation("r2", "acct", "carol", 2*time.Hour)
	_, err = f.reservations.CreateReservation(ctx, second, []string{"carol"}, testfixtures.BaseTime)
	assert.NoError(t, err, "back-to-back slots on the same charger must be accepted")
}

func TestCreateReservationUnitQuota(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	first := testfixtures.NewReservation("r1", "acct", "bob", time.Hour)
	_, err := f.reservations.CreateReservation(ctx, first, []string{"alice", "bob"}, testfixtures.BaseTime)
	require.NoError(t, err)

	// Alice shares bob's unit; a different charger does not help.
	second := testfixtures.NewReservation("r2", "acct", "alice", 4*time.Hour)
	second.ChargerID = 2
	_, err = f.reservations.CreateReservation(ctx, second, []string{"alice", "bob"}, testfixtures.BaseTime)
	assert.ErrorIs(t, err, persistence.ErrUnitQuotaExceeded)
}

func TestCreateReservationQuotaIgnoresEnded(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	past := testfixtures.NewReservation("r1", "acct", "bob", -3*time.Hour)
	_, err := f.reservations.CreateReservation(ctx, past, nil, testfixtures.BaseTime.Add(-4*time.Hour))
	require.NoError(t, err)

	next := testfixtures.NewReservation("r2", "acct", "alice", time.Hour)
	_, err = f.reservations.CreateReservation(ctx, next, []string{"alice", "bob"}, testfixtures.BaseTime)
	assert.NoError(t, err, "a reservation that already ended must not hold the unit quota")
}

func TestCreateReservationInvalidRows(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	inverted := testfixtures.NewReservation("r1", "acct", "alice", time.Hour)
	inverted.End = inverted.Start.Add(-time.Hour)
	_, err := f.reservations.CreateReservation(ctx, inverted, nil, testfixtures.BaseTime)
	assert.ErrorIs(t, err, persistence.ErrConstraintViolation)

	orphan := testfixtures.NewReservation("r2", "acct", "nobody", time.Hour)
	_, err = f.reservations.CreateReservation(ctx, orphan, nil, testfixtures.BaseTime)
	assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)
}

func TestDeleteReservation(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	reservation := testfixtures.NewReservation("r1", "acct", "alice", time.Hour)
	_, err := f.reservations.CreateReservation(ctx, reservation, nil, testfixtures.BaseTime)
	require.NoError(t, err)

	require.NoError(t, f.reservations.DeleteReservation(ctx, "r1"))
	assert.ErrorIs(t, f.reservations.DeleteReservation(ctx, "r1"), persistence.ErrNotFound)
}

func TestListReservationsOrderAndFilter(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	later := testfixtures.NewReservation("later", "acct", "alice", 5*time.Hour)
	earlier := testfixtures.NewReservation("earlier", "acct", "carol", time.Hour)
	ended := testfixtures.NewReservation("ended", "acct", "bob", -5*time.Hour)

	for _, r := range []persistence.Reservation{ended, later, earlier} {
		_, err := f.reservations.CreateReservation(ctx, r, nil, testfixtures.BaseTime.Add(-6*time.Hour))
		require.NoError(t, err)
	}

	all, err := f.reservations.ListReservations(ctx, persistence.ReservationFilter{AccountID: "acct"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ended", all[0].ID)
	assert.Equal(t, "earlier", all[1].ID)
	assert.Equal(t, "later", all[2].ID)

	now := testfixtures.BaseTime
	upcoming, err := f.reservations.ListReservations(ctx, persistence.ReservationFilter{
		AccountID: "acct",
		EndsAfter: &now,
	})
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "earlier", upcoming[0].ID)
}

func TestFindOverlapping(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	reservation := testfixtures.NewReservation("r1", "acct", "alice", time.Hour)
	_, err := f.reservations.CreateReservation(ctx, reservation, nil, testfixtures.BaseTime)
	require.NoError(t, err)

	hits, err := f.reservations.FindOverlapping(ctx, "acct", 1,
		reservation.Start.Add(30*time.Minute), reservation.End.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	abutting, err := f.reservations.FindOverlapping(ctx, "acct", 1,
		reservation.End, reservation.End.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, abutting)

	otherCharger, err := f.reservations.FindOverlapping(ctx, "acct", 2,
		reservation.Start, reservation.End)
	require.NoError(t, err)
	assert.Empty(t, otherCharger)
}

func TestHasCurrentReservation(t *testing.T) {
	f := newRepoFixture(t)
	ctx := context.Background()

	reservation := testfixtures.NewReservation("r1", "acct", "bob", time.Hour)
	_, err := f.reservations.CreateReservation(ctx, reservation, nil, testfixtures.BaseTime)
	require.NoError(t, err)

	held, err := f.reservations.HasCurrentReservation(ctx, []string{"alice", "bob"}, testfixtures.BaseTime)
	require.NoError(t, err)
	assert.True(t, held)

	held, err = f.reservations.HasCurrentReservation(ctx, []string{"carol"}, testfixtures.BaseTime)
	require.NoError(t, err)
	assert.False(t, held)

	held, err = f.reservations.HasCurrentReservation(ctx, []string{"alice", "bob"}, reservation.End.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, held)

	held, err = f.reservations.HasCurrentReservation(ctx, nil, testfixtures.BaseTime)
	require.NoError(t, err)
	assert.False(t, held)
}
