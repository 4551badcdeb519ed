package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a CHECK constraint rejects a write.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrSlotConflict is returned when the store-level overlap check rejects
	// an insert because the charger interval is already taken.
	ErrSlotConflict = errors.New("persistence: slot conflict")
	// ErrUnitQuotaExceeded is returned when the store-level fairness check
	// finds a current reservation for the requesting unit.
	ErrUnitQuotaExceeded = errors.New("persistence: unit quota exceeded")
)
