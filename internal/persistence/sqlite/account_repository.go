package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/charger-booking/internal/persistence"
)

// AccountRepository implements persistence.AccountRepository using SQLite.
type AccountRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAccountRepository creates a new SQLite account repository.
func NewAccountRepository(pool *ConnectionPool) *AccountRepository {
	return &AccountRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateAccount inserts a new tenant account.
func (r *AccountRepository) CreateAccount(ctx context.Context, account persistence.Account) error {
	if account.ID == "" || account.InviteCode == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	if account.Status == "" {
		account.Status = persistence.AccountStatusPendingPayment
	}
	if account.ChargerCount <= 0 {
		account.ChargerCount = 1
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO accounts (id, name, invite_code, status, charger_count, subscription_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Name,
		account.InviteCode,
		string(account.Status),
		account.ChargerCount,
		account.SubscriptionID,
		formatTime(account.CreatedAt),
		formatTime(account.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetAccount retrieves an account by ID.
func (r *AccountRepository) GetAccount(ctx context.Context, id string) (persistence.Account, error) {
	if id == "" {
		return persistence.Account{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, accountSelect+" WHERE id = ?", id)
	return r.scanAccount(row)
}

// GetAccountByInviteCode retrieves an account by its invite code.
func (r *AccountRepository) GetAccountByInviteCode(ctx context.Context, code string) (persistence.Account, error) {
	if code == "" {
		return persistence.Account{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, accountSelect+" WHERE invite_code = ?", code)
	return r.scanAccount(row)
}

// UpdateAccountStatus records the billing subsystem's status for an account.
func (r *AccountRepository) UpdateAccountStatus(ctx context.Context, id string, status persistence.AccountStatus, subscriptionID string) error {
	result, err := r.helper.Exec(ctx, `
		UPDATE accounts
		SET status = ?, subscription_id = ?, updated_at = ?
		WHERE id = ?`,
		string(status), subscriptionID, formatTime(time.Now().UTC()), id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return r.requireAffected(result)
}

// UpdateAccountChargerCount changes the number of chargers the account has
// subscribed for.
func (r *AccountRepository) UpdateAccountChargerCount(ctx context.Context, id string, chargerCount int) error {
	if chargerCount <= 0 {
		return persistence.ErrConstraintViolation
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE accounts
		SET charger_count = ?, updated_at = ?
		WHERE id = ?`,
		chargerCount, formatTime(time.Now().UTC()), id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return r.requireAffected(result)
}

func (r *AccountRepository) requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

const accountSelect = `
	SELECT id, name, invite_code, status, charger_count, subscription_id, created_at, updated_at
	FROM accounts`

func (r *AccountRepository) scanAccount(row rowScanner) (persistence.Account, error) {
	var account persistence.Account
	var status string
	var createdStr, updatedStr string

	err := row.Scan(
		&account.ID,
		&account.Name,
		&account.InviteCode,
		&status,
		&account.ChargerCount,
		&account.SubscriptionID,
		&createdStr,
		&updatedStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Account{}, persistence.ErrNotFound
		}
		return persistence.Account{}, r.mapper.MapError(err)
	}

	account.Status = persistence.AccountStatus(status)

	if account.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Account{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if account.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.Account{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return account, nil
}
