package application

import "time"

// Principal identifies the authenticated resident performing an operation.
type Principal struct {
	ResidentID string
	AccountID  string
	IsAdmin    bool
}

// Reservation is one charging slot as exposed to callers.
type Reservation struct {
	ID         string
	AccountID  string
	ResidentID string
	ChargerID  int
	Start      time.Time
	End        time.Time
	CreatedAt  time.Time
}

// ReservationInput is the strictly validated booking request body.
type ReservationInput struct {
	ChargerID int
	Start     time.Time
	End       time.Time
}

// CreateReservationParams bundles the acting principal with the request.
type CreateReservationParams struct {
	Principal Principal
	Input     ReservationInput
}

// AccountStatus mirrors the billing subsystem's view of a tenant account.
type AccountStatus string

const (
	AccountStatusPendingPayment AccountStatus = "pending_payment"
	AccountStatusActive         AccountStatus = "active"
	AccountStatusSuspended      AccountStatus = "suspended"
)

// Account is one condominium tenant.
type Account struct {
	ID           string
	Name         string
	InviteCode   string
	Status       AccountStatus
	ChargerCount int
	CreatedAt    time.Time
}

// CreateAccountInput registers a new condominium together with its first
// administrator.
type CreateAccountInput struct {
	Name          string
	ChargerCount  int
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// CreateAccountResult carries the created account and administrator.
type CreateAccountResult struct {
	Account Account
	Admin   Resident
}

// Resident is a registered member of an account.
type Resident struct {
	ID          string
	AccountID   string
	Email       string
	DisplayName string
	UnitLabel   string
	CarModel    string
	IsAdmin     bool
	CreatedAt   time.Time
}

// RegisterResidentInput joins a resident to an account via invite code.
type RegisterResidentInput struct {
	InviteCode  string
	Email       string
	Password    string
	DisplayName string
	UnitLabel   string
	CarModel    string
}

// UpdateProfileInput mutates a resident's own profile fields.
type UpdateProfileInput struct {
	DisplayName string
	UnitLabel   string
	CarModel    string
}

// Session is an authenticated session token with expiry metadata.
type Session struct {
	Token      string
	ResidentID string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// AuthenticateParams carries login credentials.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult carries the session issued for a successful login.
type AuthenticateResult struct {
	Session  Session
	Resident Resident
}
