package testfixtures

import (
	"time"

	"github.com/example/charger-booking/internal/persistence"
)

// BaseTime is an arbitrary fixed instant tests build schedules around.
var BaseTime = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// NewAccount returns an active account with one charger.
func NewAccount(id string) persistence.Account {
	return persistence.Account{
		ID:           id,
		Name:         "Edificio Aurora",
		InviteCode:   "invite-" + id,
		Status:       persistence.AccountStatusActive,
		ChargerCount: 1,
		CreatedAt:    BaseTime,
		UpdatedAt:    BaseTime,
	}
}

// NewResident returns a non-admin resident attached to the given account
// and unit.
func NewResident(id, accountID, unitLabel string) persistence.Resident {
	return persistence.Resident{
		ID:           id,
		AccountID:    accountID,
		Email:        id + "@example.com",
		PasswordHash: "fixture-hash",
		DisplayName:  "Resident " + id,
		UnitLabel:    unitLabel,
		IsAdmin:      false,
		CreatedAt:    BaseTime,
		UpdatedAt:    BaseTime,
	}
}

// NewReservation returns a reservation on charger 1 starting at the given
// offset from BaseTime and lasting one hour.
func NewReservation(id, accountID, residentID string, startOffset time.Duration) persistence.Reservation {
	start := BaseTime.Add(startOffset)
	return persistence.Reservation{
		ID:         id,
		AccountID:  accountID,
		ResidentID: residentID,
		ChargerID:  1,
		Start:      start,
		End:        start.Add(time.Hour),
		CreatedAt:  BaseTime,
	}
}
