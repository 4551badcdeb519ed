package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/charger-booking/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository using SQLite.
type ReservationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  RetryConfig
}

// NewReservationRepository creates a new SQLite reservation repository.
func NewReservationRepository(pool *ConnectionPool) *ReservationRepository {
	return &ReservationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  DefaultRetryConfig(),
	}
}

// CreateReservation inserts a reservation after re-validating the overlap and
// unit-quota invariants inside the same write transaction. The transaction is
// the serialization point between racing admissions: the first committer wins
// and the loser observes ErrSlotConflict or ErrUnitQuotaExceeded, identical
// to a fast-path rejection.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation, unitMemberIDs []string, now time.Time) (persistence.Reservation, error) {
	if reservation.ID == "" || reservation.AccountID == "" || reservation.ResidentID == "" {
		return persistence.Reservation{}, persistence.ErrConstraintViolation
	}
	if !reservation.End.After(reservation.Start) {
		return persistence.Reservation{}, persistence.ErrConstraintViolation
	}
	// The overlap comparison runs on second-resolution text; sub-second
	// intervals would be truncated into apparent abutments.
	if reservation.Start.Nanosecond() != 0 || reservation.End.Nanosecond() != 0 {
		return persistence.Reservation{}, persistence.ErrConstraintViolation
	}

	reservation.CreatedAt = now.UTC().Truncate(time.Second)

	err := WithRetry(ctx, r.retry, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			occupied, err := r.slotOccupiedTx(tx, reservation)
			if err != nil {
				return err
			}
			if occupied {
				return persistence.ErrSlotConflict
			}

			held, err := r.unitHoldsCurrentTx(tx, unitMemberIDs, now, reservation.ID)
			if err != nil {
				return err
			}
			if held {
				return persistence.ErrUnitQuotaExceeded
			}

			_, err = r.helper.ExecTx(tx, `
				INSERT INTO reservations (id, account_id, resident_id, charger_id, start_time, end_time, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				reservation.ID,
				reservation.AccountID,
				reservation.ResidentID,
				reservation.ChargerID,
				formatTime(reservation.Start),
				formatTime(reservation.End),
				formatTime(reservation.CreatedAt),
			)
			if err != nil {
				return r.mapper.MapError(err)
			}
			return nil
		})
	})
	if err != nil {
		return persistence.Reservation{}, err
	}

	return reservation, nil
}

// GetReservation retrieves a reservation by ID.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	row := r.helper.QueryRow(ctx, `
		SELECT id, account_id, resident_id, charger_id, start_time, end_time, created_at
		FROM reservations
		WHERE id = ?`, id)

	reservation, err := scanReservation(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return persistence.Reservation{}, persistence.ErrNotFound
		}
		return persistence.Reservation{}, r.mapper.MapError(err)
	}
	return reservation, nil
}

// DeleteReservation removes a reservation by ID. Cancellation has no
// cascading side effects on other reservations.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM reservations WHERE id = ?", id)
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

// ListReservations lists reservations matching the filter, ordered by start
// time ascending then ID for a stable, re-queryable sequence.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	query := `
		SELECT id, account_id, resident_id, charger_id, start_time, end_time, created_at
		FROM reservations`

	var conditions []string
	var args []any

	if filter.AccountID != "" {
		conditions = append(conditions, "account_id = ?")
		args = append(args, filter.AccountID)
	}
	if filter.ChargerID != nil {
		conditions = append(conditions, "charger_id = ?")
		args = append(args, *filter.ChargerID)
	}
	if filter.EndsAfter != nil {
		conditions = append(conditions, "end_time >= ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return reservations, nil
}

// FindOverlapping returns reservations on the same (account, charger) whose
// half-open intervals intersect [start, end). Exact abutment does not match.
func (r *ReservationRepository) FindOverlapping(ctx context.Context, accountID string, chargerID int, start, end time.Time) ([]persistence.Reservation, error) {
	rows, err := r.helper.Query(ctx, `
		SELECT id, account_id, resident_id, charger_id, start_time, end_time, created_at
		FROM reservations
		WHERE account_id = ? AND charger_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time ASC, id ASC`,
		accountID, chargerID, formatTime(end), formatTime(start))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return reservations, nil
}

// HasCurrentReservation reports whether any of the residents holds a
// reservation that has not yet ended. Past reservations never count.
func (r *ReservationRepository) HasCurrentReservation(ctx context.Context, residentIDs []string, now time.Time) (bool, error) {
	if len(residentIDs) == 0 {
		return false, nil
	}

	placeholders := make([]string, len(residentIDs))
	args := make([]any, 0, len(residentIDs)+1)
	for i, id := range residentIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, formatTime(now))

	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM reservations
		WHERE resident_id IN (%s) AND end_time >= ?`,
		strings.Join(placeholders, ","))

	var count int
	if err := r.helper.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return false, r.mapper.MapError(err)
	}
	return count > 0, nil
}

func (r *ReservationRepository) slotOccupiedTx(tx *sql.Tx, reservation persistence.Reservation) (bool, error) {
	var count int
	err := r.helper.QueryRowTx(tx, `
		SELECT COUNT(*)
		FROM reservations
		WHERE account_id = ? AND charger_id = ? AND start_time < ? AND end_time > ?`,
		reservation.AccountID,
		reservation.ChargerID,
		formatTime(reservation.End),
		formatTime(reservation.Start),
	).Scan(&count)
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return count > 0, nil
}

func (r *ReservationRepository) unitHoldsCurrentTx(tx *sql.Tx, unitMemberIDs []string, now time.Time, excludeID string) (bool, error) {
	if len(unitMemberIDs) == 0 {
		return false, nil
	}

	placeholders := make([]string, len(unitMemberIDs))
	args := make([]any, 0, len(unitMemberIDs)+2)
	for i, id := range unitMemberIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	args = append(args, formatTime(now), excludeID)

	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM reservations
		WHERE resident_id IN (%s) AND end_time >= ? AND id != ?`,
		strings.Join(placeholders, ","))

	var count int
	if err := r.helper.QueryRowTx(tx, query, args...).Scan(&count); err != nil {
		return false, r.mapper.MapError(err)
	}
	return count > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var reservation persistence.Reservation
	var startStr, endStr, createdStr string

	err := row.Scan(
		&reservation.ID,
		&reservation.AccountID,
		&reservation.ResidentID,
		&reservation.ChargerID,
		&startStr,
		&endStr,
		&createdStr,
	)
	if err != nil {
		return persistence.Reservation{}, err
	}

	if reservation.Start, err = parseTime(startStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if reservation.End, err = parseTime(endStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse end_time: %w", err)
	}
	if reservation.CreatedAt, err = parseTime(createdStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return reservation, nil
}

// formatTime normalizes to UTC RFC3339 so that lexicographic comparison in
// SQL matches chronological order. Reservation intervals are validated to
// whole seconds before they reach the store, so the second-resolution text
// loses nothing.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}
