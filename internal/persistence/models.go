package persistence

import "time"

// AccountStatus mirrors the billing subsystem's view of a tenant account.
type AccountStatus string

const (
	AccountStatusPendingPayment AccountStatus = "pending_payment"
	AccountStatusActive         AccountStatus = "active"
	AccountStatusSuspended      AccountStatus = "suspended"
)

// Account is one condominium's isolated data partition.
type Account struct {
	ID             string
	Name           string
	InviteCode     string
	Status         AccountStatus
	ChargerCount   int
	SubscriptionID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Resident is a registered member of an account. AccountID and UnitLabel are
// empty for residents an administrator has removed from their account.
type Resident struct {
	ID           string
	AccountID    string
	Email        string
	PasswordHash string
	DisplayName  string
	UnitLabel    string
	CarModel     string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reservation is one charging slot on a charger. Intervals are half-open:
// [Start, End).
type Reservation struct {
	ID         string
	AccountID  string
	ResidentID string
	ChargerID  int
	Start      time.Time
	End        time.Time
	CreatedAt  time.Time
}

// ReservationFilter narrows reservation list queries.
type ReservationFilter struct {
	AccountID string
	ChargerID *int
	EndsAfter *time.Time
}

// Session stores authentication session state.
type Session struct {
	Token      string
	ResidentID string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}
