package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/charger-booking/internal/booking"
	"github.com/example/charger-booking/internal/persistence"
	"github.com/example/charger-booking/internal/testfixtures"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

type stubReservationStore struct {
	reservations []persistence.Reservation
	createErr    error
	created      []persistence.Reservation
}

func (s *stubReservationStore) CreateReservation(_ context.Context, reservation persistence.Reservation, _ []string, _ time.Time) (persistence.Reservation, error) {
	if s.createErr != nil {
		return persistence.Reservation{}, s.createErr
	}
	s.created = append(s.created, reservation)
	return reservation, nil
}

func (s *stubReservationStore) GetReservation(_ context.Context, id string) (persistence.Reservation, error) {
	for _, r := range s.reservations {
		if r.ID == id {
			return r, nil
		}
	}
	return persistence.Reservation{}, persistence.ErrNotFound
}

func (s *stubReservationStore) DeleteReservation(_ context.Context, id string) error {
	for i, r := range s.reservations {
		if r.ID == id {
			s.reservations = append(s.reservations[:i], s.reservations[i+1:]...)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (s *stubReservationStore) ListReservations(_ context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var out []persistence.Reservation
	for _, r := range s.reservations {
		if r.AccountID != filter.AccountID {
			continue
		}
		if filter.EndsAfter != nil && r.End.Before(*filter.EndsAfter) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *stubReservationStore) FindOverlapping(_ context.Context, accountID string, chargerID int, start, end time.Time) ([]persistence.Reservation, error) {
	var out []persistence.Reservation
	for _, r := range s.reservations {
		if r.AccountID != accountID || r.ChargerID != chargerID {
			continue
		}
		if booking.Overlaps(start, end, r.Start, r.End) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubReservationStore) HasCurrentReservation(_ context.Context, residentIDs []string, now time.Time) (bool, error) {
	members := make(map[string]bool, len(residentIDs))
	for _, id := range residentIDs {
		members[id] = true
	}
	for _, r := range s.reservations {
		if members[r.ResidentID] && !r.End.Before(now) {
			return true, nil
		}
	}
	return false, nil
}

type stubResidentDirectory struct {
	residents map[string]persistence.Resident
}

func (s *stubResidentDirectory) GetResident(_ context.Context, id string) (persistence.Resident, error) {
	resident, ok := s.residents[id]
	if !ok {
		return persistence.Resident{}, persistence.ErrNotFound
	}
	return resident, nil
}

func (s *stubResidentDirectory) FindUnitMembers(_ context.Context, accountID, unitLabel, selfID string) ([]string, error) {
	if unitLabel == "" || accountID == "" {
		return []string{selfID}, nil
	}
	ids := []string{}
	for _, r := range s.residents {
		if r.AccountID == accountID && r.UnitLabel == unitLabel {
			ids = append(ids, r.ID)
		}
	}
	found := false
	for _, id := range ids {
		if id == selfID {
			found = true
		}
	}
	if !found {
		ids = append(ids, selfID)
	}
	return ids, nil
}

type stubAccountDirectory struct {
	accounts map[string]persistence.Account
}

func (s *stubAccountDirectory) GetAccount(_ context.Context, id string) (persistence.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return persistence.Account{}, persistence.ErrNotFound
	}
	return account, nil
}

type reservationFixture struct {
	store     *stubReservationStore
	residents *stubResidentDirectory
	accounts  *stubAccountDirectory
	service   *ReservationService
}

func newReservationFixture(t *testing.T) *reservationFixture {
	t.Helper()

	store := &stubReservationStore{}
	residents := &stubResidentDirectory{residents: map[string]persistence.Resident{
		"alice": {ID: "alice", AccountID: "acct", UnitLabel: "101"},
		"bob":   {ID: "bob", AccountID: "acct", UnitLabel: "101"},
		"carol": {ID: "carol", AccountID: "acct", UnitLabel: "202"},
		"dave":  {ID: "dave", AccountID: "acct", UnitLabel: ""},
	}}
	accounts := &stubAccountDirectory{accounts: map[string]persistence.Account{
		"acct": {ID: "acct", Status: persistence.AccountStatusActive, ChargerCount: 2},
	}}

	return &reservationFixture{
		store:     store,
		residents: residents,
		accounts:  accounts,
		service: NewReservationService(store, residents, accounts,
			testfixtures.NewIDGenerator("res").Next, func() time.Time { return testNow }),
	}
}

func (f *reservationFixture) principal(residentID string) Principal {
	resident := f.residents.residents[residentID]
	return Principal{ResidentID: resident.ID, AccountID: resident.AccountID, IsAdmin: resident.IsAdmin}
}

func TestCreateReservationAdmits(t *testing.T) {
	f := newReservationFixture(t)

	start := testNow.Add(2 * time.Hour)
	got, err := f.service.Create(context.Background(), CreateReservationParams{
		Principal: f.principal("alice"),
		Input:     ReservationInput{ChargerID: 1, Start: start, End: start.Add(time.Hour)},
	})

	require.NoError(t, err)
	assert.Equal(t, "alice", got.ResidentID)
	assert.Equal(t, "acct", got.AccountID)
	assert.Len(t, f.store.created, 1)
}

func TestCreateReservationRejectsOverlap(t *testing.T) {
	f := newReservationFixture(t)
	base := testNow.Add(2 * time.Hour)
	f.store.reservations = []persistence.Reservation{{
		ID: "existing", AccountID: "acct", ResidentID: "carol", ChargerID: 1,
		Start: base, End: base.Add(time.Hour),
	}}

	_, err := f.service.Create(context.Background(), CreateReservationParams{
		Principal: f.principal("alice"),
		Input:     ReservationInput{ChargerID: 1, Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)},
	})

	var rejection *booking.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, booking.ReasonSlotConflict, rejection.Reason)
	assert.Empty(t, f.store.created, "rejected requests must not persist anything")
}

func TestCreateReservationAcceptsAbutting(t *testing.T) {
	f := newReservationFixture(t)
	base := testNow.Add(2 * time.Hour)
	f.store.reservations = []persistence.Reservation{{
		ID: "existing", AccountID: "acct", ResidentID: "carol", ChargerID: 1,
		Start: base, End: base.Add(time.Hour),
	}}
	// Carol's unit holds the existing slot; alice's unit does not, so only
	// the shared charger matters. Back-to-back is allowed.
	_, err := f.service.Create(context.Background(), CreateReservationParams{
		Principal: f.principal("alice"),
		Input:     ReservationInput{ChargerID: 1, Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)},
	})

	require.NoError(t, err)
	assert.Len(t, f.store.created, 1)
}

func TestCreateReservationPoolsUnitQuota(t *testing.T) {
	f := newReservationFixture(t)
	base := testNow.Add(2 * time.Hour)
	// Bob shares unit 101 with alice and already holds a future slot.
	f.store.reservations = []persistence.Reservation{{
		ID: "existing", AccountID: "acct", ResidentID: "bob", ChargerID: 1,
		Start: base, End: base.Add(time.Hour),
	}}

	_, err := f.service.Create(context.Background(), CreateReservationParams{
		Principal: f.principal("alice"),
		Input:     ReservationInput{ChargerID: 2, Start: base.Add(3 * time.Hour), End: base.Add(4 * time.Hour)},
	})

	var rejection *booking.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, booking.ReasonUnitQuotaExceeded, rejection.Reason)
	assert.Contains(t, rejection.Detail, "101")
}

func TestCreateReservationUnlabeledUnitsNotPooled(t *testing.T) {
	f := newReservationFixture(t)
	base := testNow.Add(2 * time.Hour)
	// Dave has no unit label; another labelless resident's slot must not
	// count against him.
	f.residents.residents["erin"] = persistence.Resident{ID: "erin", AccountID: "acct", UnitLabel: ""}
	f.store.reservations = []persistence.Reservation{{
		ID: "existing", AccountID: "acct", ResidentID: "erin", ChargerID: 1,
		Start: base, End: base.Add(time.Hour),
	}}

	_, err := f.service.Create(context.Background(), CreateReservationParams{
		Principal: f.principal("dave"),
		Input:     ReservationInput{ChargerID: 2, Start: base, End: base.Add(time.Hour)},
	})

	require.NoError(t, err)
}

func TestCreateReservationRejectsLongWindow(t *testing.T) {
	f := newReservationFixture(t)
	start := testNow.Add(time.Hour)

	_, err := f.service.Create(context.Background(), CreateReservationParams{
		Principal: f.principal("alice"),
		Input:     ReservationInput{ChargerID: 1, Start: start, End: start.Add(3 * time.Hour)},
	})

	var rejection *booking.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, booking.ReasonDurationExceeded, rejection.Reason)
}

func TestCreateReservationRejectsPastStart(t *testing.T) {
	f := newReservationFixture(t)
	start := testNow.Add(-time.Hour)

	_, err := f.service.Create(context.Background(), CreateReservationParams{
		Principal: f.principal("alice"),
		Input:     ReservationInput{ChargerID: 1, Start: start, End: start.Add(time.Hour)},
	})

	var rejection *booking.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, booking.ReasonPastStart, rejection.Reason)
}

func TestCreateReservationRejectsUnknownCharger(t *testing.T) {
	f := newReservationFixture(t)
	start := testNow.Add(time.Hour)

	_, err := f.service.Create(context.Background(), CreateReservationParams{
		Principal: f.principal("alice"),
		Input:     ReservationInput{ChargerID: 3, Start: start, End: start.Add(time.Hour)},
	})

	var rejection *booking.Rejection
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, booking.ReasonUnknownCharger, rejection.Reason)
}

func TestCreateReservationMapsStoreRaceToSameRejection(t *testing.T) {
	// A request that passes the fast-path checks but loses the insert race
	// must surface exactly like a pre-check conflict.
	tests := []struct {
		name     string
		storeErr error
		want     booking.Reason
	}{
		{"slot conflict", persistence.ErrSlotConflict, booking.ReasonSlotConflict},
		{"unit quota", persistence.ErrUnitQuotaExceeded, booking.ReasonUnitQuotaExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReservationFixture(t)
			f.store.createErr = tt.storeErr
			start := testNow.Add(time.Hour)

			_, err := f.service.Create(context.Background(), CreateReservationParams{
				Principal: f.principal("alice"),
				Input:     ReservationInput{ChargerID: 1, Start: start, End: start.Add(time.Hour)},
			})

			var rejection *booking.Rejection
			require.ErrorAs(t, err, &rejection)
			assert.Equal(t, tt.want, rejection.Reason)
		})
	}
}

func TestCreateReservationStoreOutageIsNotARejection(t *testing.T) {
	f := newReservationFixture(t)
	f.store.createErr = errors.New("disk I/O error")
	start := testNow.Add(time.Hour)

	_, err := f.service.Create(context.Background(), CreateReservationParams{
		Principal: f.principal("alice"),
		Input:     ReservationInput{ChargerID: 1, Start: start, End: start.Add(time.Hour)},
	})

	require.Error(t, err)
	var rejection *booking.Rejection
	assert.False(t, errors.As(err, &rejection))
}

func TestCreateReservationRefusesSuspendedAccount(t *testing.T) {
	f := newReservationFixture(t)
	f.accounts.accounts["acct"] = persistence.Account{
		ID: "acct", Status: persistence.AccountStatusSuspended, ChargerCount: 2,
	}
	start := testNow.Add(time.Hour)

	_, err := f.service.Create(context.Background(), CreateReservationParams{
		Principal: f.principal("alice"),
		Input:     ReservationInput{ChargerID: 1, Start: start, End: start.Add(time.Hour)},
	})

	assert.ErrorIs(t, err, ErrAccountSuspended)
}

func TestCreateReservationRefusesDetachedResident(t *testing.T) {
	f := newReservationFixture(t)
	f.residents.residents["ghost"] = persistence.Resident{ID: "ghost", AccountID: ""}
	start := testNow.Add(time.Hour)

	_, err := f.service.Create(context.Background(), CreateReservationParams{
		Principal: Principal{ResidentID: "ghost"},
		Input:     ReservationInput{ChargerID: 1, Start: start, End: start.Add(time.Hour)},
	})

	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCancelReservation(t *testing.T) {
	tests := []struct {
		name      string
		actor     string
		admin     bool
		wantErr   error
		remaining int
	}{
		{"owner cancels", "alice", false, nil, 0},
		{"account admin cancels", "carol", true, nil, 0},
		{"other resident refused", "carol", false, ErrUnauthorized, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReservationFixture(t)
			f.store.reservations = []persistence.Reservation{{
				ID: "r1", AccountID: "acct", ResidentID: "alice", ChargerID: 1,
				Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour),
			}}

			principal := f.principal(tt.actor)
			principal.IsAdmin = tt.admin
			err := f.service.Cancel(context.Background(), principal, "r1")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, f.store.reservations, tt.remaining)
		})
	}
}

func TestCancelReservationNotFound(t *testing.T) {
	f := newReservationFixture(t)
	err := f.service.Cancel(context.Background(), f.principal("alice"), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUpcomingFiltersPast(t *testing.T) {
	f := newReservationFixture(t)
	f.store.reservations = []persistence.Reservation{
		{ID: "past", AccountID: "acct", ResidentID: "alice", ChargerID: 1,
			Start: testNow.Add(-3 * time.Hour), End: testNow.Add(-2 * time.Hour)},
		{ID: "current", AccountID: "acct", ResidentID: "bob", ChargerID: 1,
			Start: testNow.Add(-30 * time.Minute), End: testNow.Add(30 * time.Minute)},
		{ID: "future", AccountID: "acct", ResidentID: "carol", ChargerID: 2,
			Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour)},
	}

	got, err := f.service.ListUpcoming(context.Background(), f.principal("alice"))

	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"current", "future"}, ids)
}

func TestListUpcomingAllowsSuspendedAccount(t *testing.T) {
	f := newReservationFixture(t)
	f.accounts.accounts["acct"] = persistence.Account{
		ID: "acct", Status: persistence.AccountStatusSuspended, ChargerCount: 2,
	}
	f.store.reservations = []persistence.Reservation{
		{ID: "future", AccountID: "acct", ResidentID: "alice", ChargerID: 1,
			Start: testNow.Add(time.Hour), End: testNow.Add(2 * time.Hour)},
	}

	got, err := f.service.ListUpcoming(context.Background(), f.principal("alice"))

	require.NoError(t, err)
	assert.Len(t, got, 1)
}
