package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/charger-booking/internal/persistence"
)

// ResidentRepository implements persistence.ResidentRepository using SQLite.
type ResidentRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewResidentRepository creates a new SQLite resident repository.
func NewResidentRepository(pool *ConnectionPool) *ResidentRepository {
	return &ResidentRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateResident inserts a new resident.
func (r *ResidentRepository) CreateResident(ctx context.Context, resident persistence.Resident) error {
	if resident.ID == "" || resident.Email == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	resident.CreatedAt = now
	resident.UpdatedAt = now

	_, err := r.helper.Exec(ctx, `
		INSERT INTO residents (id, account_id, email, password_hash, display_name, unit_label, car_model, is_admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		resident.ID,
		nullableString(resident.AccountID),
		resident.Email,
		resident.PasswordHash,
		resident.DisplayName,
		resident.UnitLabel,
		resident.CarModel,
		boolToInt(resident.IsAdmin),
		formatTime(resident.CreatedAt),
		formatTime(resident.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateResident updates profile fields for an existing resident.
func (r *ResidentRepository) UpdateResident(ctx context.Context, resident persistence.Resident) error {
	if resident.ID == "" {
		return persistence.ErrNotFound
	}

	resident.UpdatedAt = time.Now().UTC()

	result, err := r.helper.Exec(ctx, `
		UPDATE residents
		SET email = ?, password_hash = ?, display_name = ?, unit_label = ?, car_model = ?, is_admin = ?, updated_at = ?
		WHERE id = ?`,
		resident.Email,
		resident.PasswordHash,
		resident.DisplayName,
		resident.UnitLabel,
		resident.CarModel,
		boolToInt(resident.IsAdmin),
		formatTime(resident.UpdatedAt),
		resident.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetResident retrieves a resident by ID.
func (r *ResidentRepository) GetResident(ctx context.Context, id string) (persistence.Resident, error) {
	if id == "" {
		return persistence.Resident{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, residentSelect+" WHERE id = ?", id)
	return r.scanResident(row)
}

// GetResidentByEmail retrieves a resident by email address.
func (r *ResidentRepository) GetResidentByEmail(ctx context.Context, email string) (persistence.Resident, error) {
	if email == "" {
		return persistence.Resident{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, residentSelect+" WHERE email = ?", email)
	return r.scanResident(row)
}

// ListResidents lists the members of an account ordered by unit then name.
func (r *ResidentRepository) ListResidents(ctx context.Context, accountID string) ([]persistence.Resident, error) {
	rows, err := r.helper.Query(ctx,
		residentSelect+" WHERE account_id = ? ORDER BY unit_label ASC, display_name ASC, id ASC", accountID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var residents []persistence.Resident
	for rows.Next() {
		resident, err := r.scanResident(rows)
		if err != nil {
			return nil, err
		}
		residents = append(residents, resident)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return residents, nil
}

// DetachResident clears the account and unit linkage without deleting the
// row. The resident keeps their login but loses membership.
func (r *ResidentRepository) DetachResident(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE residents
		SET account_id = NULL, unit_label = '', updated_at = ?
		WHERE id = ?`,
		formatTime(time.Now().UTC()), id)
	if err != nil {
		return r.mapper.MapError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// FindUnitMembers resolves the resident ids pooled with the (account, unit)
// pair. A resident without a unit label is a singleton unit: label-less
// residents are never pooled with each other.
func (r *ResidentRepository) FindUnitMembers(ctx context.Context, accountID, unitLabel, selfID string) ([]string, error) {
	if unitLabel == "" || accountID == "" {
		if selfID == "" {
			return nil, nil
		}
		return []string{selfID}, nil
	}

	rows, err := r.helper.Query(ctx, `
		SELECT id FROM residents
		WHERE account_id = ? AND unit_label = ?
		ORDER BY id ASC`, accountID, unitLabel)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var ids []string
	seenSelf := false
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if id == selfID {
			seenSelf = true
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	if !seenSelf && selfID != "" {
		ids = append(ids, selfID)
	}
	return ids, nil
}

const residentSelect = `
	SELECT id, account_id, email, password_hash, display_name, unit_label, car_model, is_admin, created_at, updated_at
	FROM residents`

func (r *ResidentRepository) scanResident(row rowScanner) (persistence.Resident, error) {
	var resident persistence.Resident
	var accountID sql.NullString
	var isAdmin int
	var createdStr, updatedStr string

	err := row.Scan(
		&resident.ID,
		&accountID,
		&resident.Email,
		&resident.PasswordHash,
		&resident.DisplayName,
		&resident.UnitLabel,
		&resident.CarModel,
		&isAdmin,
		&createdStr,
		&updatedStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Resident{}, persistence.ErrNotFound
		}
		return persistence.Resident{}, r.mapper.MapError(err)
	}

	if accountID.Valid {
		resident.AccountID = accountID.String
	}
	resident.IsAdmin = isAdmin != 0

	if resident.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Resident{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if resident.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return persistence.Resident{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return resident, nil
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
