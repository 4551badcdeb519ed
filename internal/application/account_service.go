package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/charger-booking/internal/persistence"
)

// AccountRepository captures the persistence interactions needed for tenant
// account management.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account persistence.Account) error
	GetAccount(ctx context.Context, id string) (persistence.Account, error)
	GetAccountByInviteCode(ctx context.Context, code string) (persistence.Account, error)
	UpdateAccountStatus(ctx context.Context, id string, status persistence.AccountStatus, subscriptionID string) error
	UpdateAccountChargerCount(ctx context.Context, id string, chargerCount int) error
}

// AccountService manages tenant accounts: creation with their first
// administrator, invite resolution, billing status, and charger count.
type AccountService struct {
	accounts    AccountRepository
	residents   ResidentRepository
	idGenerator func() string
	now         func() time.Time
	maxChargers int
	logger      *slog.Logger
}

// NewAccountService wires dependencies for account operations. maxChargers
// caps the per-account charger count an administrator may subscribe for.
func NewAccountService(accounts AccountRepository, residents ResidentRepository, idGenerator func() string, now func() time.Time, maxChargers int) *AccountService {
	return NewAccountServiceWithLogger(accounts, residents, idGenerator, now, maxChargers, nil)
}

// NewAccountServiceWithLogger wires dependencies plus a base logger.
func NewAccountServiceWithLogger(accounts AccountRepository, residents ResidentRepository, idGenerator func() string, now func() time.Time, maxChargers int, logger *slog.Logger) *AccountService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if maxChargers <= 0 {
		maxChargers = 2
	}
	return &AccountService{
		accounts:    accounts,
		residents:   residents,
		idGenerator: idGenerator,
		now:         now,
		maxChargers: maxChargers,
		logger:      defaultLogger(logger),
	}
}

// Create registers a condominium and its first administrator. The account
// starts in pending_payment until the billing subsystem activates it.
func (s *AccountService) Create(ctx context.Context, input CreateAccountInput) (CreateAccountResult, error) {
	if s == nil || s.accounts == nil || s.residents == nil {
		return CreateAccountResult{}, fmt.Errorf("account repositories not configured")
	}

	logger := serviceLogger(ctx, s.logger, "account", "create")

	vErr := &ValidationError{}
	input.Name = strings.TrimSpace(input.Name)
	input.AdminEmail = strings.TrimSpace(input.AdminEmail)
	input.AdminName = strings.TrimSpace(input.AdminName)

	if input.Name == "" {
		vErr.add("name", "condominium name is required")
	}
	if input.AdminEmail == "" {
		vErr.add("admin_email", "email is required")
	} else if _, err := mail.ParseAddress(input.AdminEmail); err != nil {
		vErr.add("admin_email", "email is invalid")
	}
	if len(input.AdminPassword) < 8 {
		vErr.add("admin_password", "password must be at least 8 characters")
	}
	if input.AdminName == "" {
		vErr.add("admin_name", "display name is required")
	}
	if input.ChargerCount < 0 || input.ChargerCount > s.maxChargers {
		vErr.add("charger_count", fmt.Sprintf("charger count must be between 1 and %d", s.maxChargers))
	}
	if vErr.HasErrors() {
		return CreateAccountResult{}, vErr
	}

	chargerCount := input.ChargerCount
	if chargerCount == 0 {
		chargerCount = 1
	}

	account := persistence.Account{
		ID:           s.idGenerator(),
		Name:         input.Name,
		InviteCode:   s.idGenerator(),
		Status:       persistence.AccountStatusPendingPayment,
		ChargerCount: chargerCount,
	}

	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return CreateAccountResult{}, ErrAlreadyExists
		}
		return CreateAccountResult{}, err
	}

	hash, err := CreatePasswordHash(input.AdminPassword, DefaultArgon2idParams)
	if err != nil {
		return CreateAccountResult{}, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := persistence.Resident{
		ID:           s.idGenerator(),
		AccountID:    account.ID,
		Email:        input.AdminEmail,
		PasswordHash: hash,
		DisplayName:  input.AdminName,
		IsAdmin:      true,
	}

	if err := s.residents.CreateResident(ctx, admin); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return CreateAccountResult{}, ErrAlreadyExists
		}
		return CreateAccountResult{}, err
	}

	logger.InfoContext(ctx, "account created", "account_id", account.ID)
	return CreateAccountResult{
		Account: toAccount(account),
		Admin:   toResident(admin),
	}, nil
}

// Get returns the account visible to the requesting principal.
func (s *AccountService) Get(ctx context.Context, principal Principal) (Account, error) {
	if s == nil || s.accounts == nil {
		return Account{}, fmt.Errorf("account repository not configured")
	}

	account, err := s.accounts.GetAccount(ctx, principal.AccountID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return toAccount(account), nil
}

// ResolveInvite maps an invite code to the account it joins, for the
// unauthenticated registration page.
func (s *AccountService) ResolveInvite(ctx context.Context, code string) (Account, error) {
	if s == nil || s.accounts == nil {
		return Account{}, fmt.Errorf("account repository not configured")
	}

	account, err := s.accounts.GetAccountByInviteCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Account{}, ErrInvalidInvite
		}
		return Account{}, err
	}
	return toAccount(account), nil
}

// SetBillingStatus records the billing subsystem's decision for an account.
// It is called by the webhook glue, not by residents.
func (s *AccountService) SetBillingStatus(ctx context.Context, accountID string, status AccountStatus, subscriptionID string) error {
	if s == nil || s.accounts == nil {
		return fmt.Errorf("account repository not configured")
	}

	switch status {
	case AccountStatusActive, AccountStatusSuspended, AccountStatusPendingPayment:
	default:
		vErr := &ValidationError{}
		vErr.add("status", "unknown account status")
		return vErr
	}

	err := s.accounts.UpdateAccountStatus(ctx, accountID, persistence.AccountStatus(status), subscriptionID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	serviceLogger(ctx, s.logger, "account", "set_billing_status",
		"account_id", accountID).InfoContext(ctx, "billing status updated", "status", string(status))
	return nil
}

// SetChargerCount changes the account's subscribed charger count.
// Administrators only; the count is capped by the service ceiling.
func (s *AccountService) SetChargerCount(ctx context.Context, principal Principal, chargerCount int) error {
	if s == nil || s.accounts == nil {
		return fmt.Errorf("account repository not configured")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if chargerCount < 1 || chargerCount > s.maxChargers {
		vErr := &ValidationError{}
		vErr.add("charger_count", fmt.Sprintf("charger count must be between 1 and %d", s.maxChargers))
		return vErr
	}

	err := s.accounts.UpdateAccountChargerCount(ctx, principal.AccountID, chargerCount)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func toAccount(model persistence.Account) Account {
	return Account{
		ID:           model.ID,
		Name:         model.Name,
		InviteCode:   model.InviteCode,
		Status:       AccountStatus(model.Status),
		ChargerCount: model.ChargerCount,
		CreatedAt:    model.CreatedAt,
	}
}
