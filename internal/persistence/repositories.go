package persistence

import (
	"context"
	"time"
)

// AccountRepository exposes CRUD operations for tenant accounts.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, id string) (Account, error)
	GetAccountByInviteCode(ctx context.Context, code string) (Account, error)
	UpdateAccountStatus(ctx context.Context, id string, status AccountStatus, subscriptionID string) error
	UpdateAccountChargerCount(ctx context.Context, id string, chargerCount int) error
}

// ResidentRepository exposes CRUD operations for residents.
type ResidentRepository interface {
	CreateResident(ctx context.Context, resident Resident) error
	UpdateResident(ctx context.Context, resident Resident) error
	GetResident(ctx context.Context, id string) (Resident, error)
	GetResidentByEmail(ctx context.Context, email string) (Resident, error)
	ListResidents(ctx context.Context, accountID string) ([]Resident, error)
	// DetachResident clears the account and unit linkage without deleting
	// the row; administrator removal never hard-deletes.
	DetachResident(ctx context.Context, id string) error
	// FindUnitMembers resolves the resident ids pooled with the given
	// (account, unit) pair. An empty unit label yields only the resident
	// identified by selfID, never a shared pool of label-less residents.
	FindUnitMembers(ctx context.Context, accountID, unitLabel, selfID string) ([]string, error)
}

// ReservationRepository stores charging reservations.
//
// CreateReservation must re-validate the overlap and unit-quota invariants
// atomically with the insert and report violations as ErrSlotConflict or
// ErrUnitQuotaExceeded; the service-level pre-checks are advisory only.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation, unitMemberIDs []string, now time.Time) (Reservation, error)
	GetReservation(ctx context.Context, id string) (Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	FindOverlapping(ctx context.Context, accountID string, chargerID int, start, end time.Time) ([]Reservation, error)
	HasCurrentReservation(ctx context.Context, residentIDs []string, now time.Time) (bool, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
