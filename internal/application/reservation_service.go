package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/charger-booking/internal/booking"
	"github.com/example/charger-booking/internal/persistence"
)

// ReservationStore captures the persistence interactions the admission
// pipeline needs. The store is the authoritative guard: CreateReservation
// re-validates overlap and unit quota atomically with the insert, so the
// pre-checks in this service only exist for early exits and better messages.
type ReservationStore interface {
	CreateReservation(ctx context.Context, reservation persistence.Reservation, unitMemberIDs []string, now time.Time) (persistence.Reservation, error)
	GetReservation(ctx context.Context, id string) (persistence.Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
	ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error)
	FindOverlapping(ctx context.Context, accountID string, chargerID int, start, end time.Time) ([]persistence.Reservation, error)
	HasCurrentReservation(ctx context.Context, residentIDs []string, now time.Time) (bool, error)
}

// ResidentDirectory resolves resident profiles and unit membership.
type ResidentDirectory interface {
	GetResident(ctx context.Context, id string) (persistence.Resident, error)
	FindUnitMembers(ctx context.Context, accountID, unitLabel, selfID string) ([]string, error)
}

// AccountDirectory resolves tenant account state.
type AccountDirectory interface {
	GetAccount(ctx context.Context, id string) (persistence.Account, error)
}

// ReservationService runs the booking admission pipeline: window validation,
// per-unit fairness limiting, per-charger overlap detection, then the atomic
// insert. Any failure short-circuits; nothing partial is written.
type ReservationService struct {
	reservations ReservationStore
	residents    ResidentDirectory
	accounts     AccountDirectory
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewReservationService wires dependencies for reservation operations.
func NewReservationService(reservations ReservationStore, residents ResidentDirectory, accounts AccountDirectory, idGenerator func() string, now func() time.Time) *ReservationService {
	return NewReservationServiceWithLogger(reservations, residents, accounts, idGenerator, now, nil)
}

// NewReservationServiceWithLogger wires dependencies plus a base logger.
func NewReservationServiceWithLogger(reservations ReservationStore, residents ResidentDirectory, accounts AccountDirectory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ReservationService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationService{
		reservations: reservations,
		residents:    residents,
		accounts:     accounts,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

// Create admits a booking request or rejects it with a terminal reason.
// Rejections are never retried internally; the caller surfaces the reason
// and may resubmit with corrected input.
func (s *ReservationService) Create(ctx context.Context, params CreateReservationParams) (Reservation, error) {
	if s == nil || s.reservations == nil {
		return Reservation{}, fmt.Errorf("reservation store not configured")
	}

	logger := serviceLogger(ctx, s.logger, "reservation", "create",
		"resident_id", params.Principal.ResidentID,
		"charger_id", params.Input.ChargerID,
	)

	requester, account, err := s.resolveRequester(ctx, params.Principal)
	if err != nil {
		logger.InfoContext(ctx, "admission refused", "error_kind", ErrorKind(err))
		return Reservation{}, err
	}

	now := s.now()
	input := params.Input

	if rejection := booking.ValidateWindow(booking.Window{Start: input.Start, End: input.End}, now); rejection != nil {
		logger.InfoContext(ctx, "admission rejected", "reason", rejection.Reason)
		return Reservation{}, rejection
	}

	if input.ChargerID < 1 || input.ChargerID > account.ChargerCount {
		rejection := booking.Reject(booking.ReasonUnknownCharger,
			"charger %d does not exist; this account has %d charger(s)", input.ChargerID, account.ChargerCount)
		logger.InfoContext(ctx, "admission rejected", "reason", rejection.Reason)
		return Reservation{}, rejection
	}

	unitMembers, err := s.residents.FindUnitMembers(ctx, requester.AccountID, requester.UnitLabel, requester.ID)
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to resolve unit members: %w", err)
	}

	// Advisory fast-path checks. The store repeats both inside the insert
	// transaction, which is what actually defends against races.
	held, err := s.reservations.HasCurrentReservation(ctx, unitMembers, now)
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to check unit quota: %w", err)
	}
	if held {
		rejection := s.unitQuotaRejection(requester)
		logger.InfoContext(ctx, "admission rejected", "reason", rejection.Reason)
		return Reservation{}, rejection
	}

	overlapping, err := s.reservations.FindOverlapping(ctx, requester.AccountID, input.ChargerID, input.Start, input.End)
	if err != nil {
		return Reservation{}, fmt.Errorf("failed to check charger availability: %w", err)
	}
	if len(overlapping) > 0 {
		rejection := slotConflictRejection(input.ChargerID)
		logger.InfoContext(ctx, "admission rejected", "reason", rejection.Reason)
		return Reservation{}, rejection
	}

	candidate := persistence.Reservation{
		ID:         s.idGenerator(),
		AccountID:  requester.AccountID,
		ResidentID: requester.ID,
		ChargerID:  input.ChargerID,
		Start:      input.Start,
		End:        input.End,
	}

	persisted, err := s.reservations.CreateReservation(ctx, candidate, unitMembers, now)
	if err != nil {
		mapped := s.mapStoreError(err, requester, input.ChargerID)
		logger.InfoContext(ctx, "admission failed at store", "error_kind", ErrorKind(mapped))
		return Reservation{}, mapped
	}

	logger.InfoContext(ctx, "reservation admitted", "reservation_id", persisted.ID)
	return toReservation(persisted), nil
}

// Cancel removes a reservation. Only the owning resident or an administrator
// of the same account may cancel; the delete is a single atomic removal.
func (s *ReservationService) Cancel(ctx context.Context, principal Principal, reservationID string) error {
	if s == nil || s.reservations == nil {
		return fmt.Errorf("reservation store not configured")
	}

	logger := serviceLogger(ctx, s.logger, "reservation", "cancel",
		"resident_id", principal.ResidentID,
		"reservation_id", reservationID,
	)

	existing, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	isOwner := existing.ResidentID == principal.ResidentID
	isAccountAdmin := principal.IsAdmin && existing.AccountID == principal.AccountID
	if !isOwner && !isAccountAdmin {
		logger.InfoContext(ctx, "cancellation refused", "error_kind", "unauthorized")
		return ErrUnauthorized
	}

	if err := s.reservations.DeleteReservation(ctx, reservationID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	logger.InfoContext(ctx, "reservation cancelled")
	return nil
}

// ListUpcoming enumerates the account's current and future reservations,
// ascending by start time then ID. The sequence is finite and re-queryable.
func (s *ReservationService) ListUpcoming(ctx context.Context, principal Principal) ([]Reservation, error) {
	if s == nil || s.reservations == nil {
		return nil, fmt.Errorf("reservation store not configured")
	}

	requester, _, err := s.resolveRequester(ctx, principal)
	if err != nil && !errors.Is(err, ErrAccountSuspended) {
		return nil, err
	}

	now := s.now()
	models, err := s.reservations.ListReservations(ctx, persistence.ReservationFilter{
		AccountID: requester.AccountID,
		EndsAfter: &now,
	})
	if err != nil {
		return nil, err
	}

	reservations := make([]Reservation, 0, len(models))
	for _, model := range models {
		reservations = append(reservations, toReservation(model))
	}
	return reservations, nil
}

// resolveRequester loads the requesting resident and their account, refusing
// detached residents and accounts the billing subsystem has not activated.
func (s *ReservationService) resolveRequester(ctx context.Context, principal Principal) (persistence.Resident, persistence.Account, error) {
	if s.residents == nil || s.accounts == nil {
		return persistence.Resident{}, persistence.Account{}, fmt.Errorf("directories not configured")
	}

	requester, err := s.residents.GetResident(ctx, principal.ResidentID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Resident{}, persistence.Account{}, ErrUnauthorized
		}
		return persistence.Resident{}, persistence.Account{}, err
	}
	if requester.AccountID == "" {
		return persistence.Resident{}, persistence.Account{}, ErrUnauthorized
	}

	account, err := s.accounts.GetAccount(ctx, requester.AccountID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return persistence.Resident{}, persistence.Account{}, ErrUnauthorized
		}
		return persistence.Resident{}, persistence.Account{}, err
	}
	if account.Status != persistence.AccountStatusActive {
		return requester, account, ErrAccountSuspended
	}

	return requester, account, nil
}

// mapStoreError converts constraint-level rejections from the store into the
// same rejections the fast-path checks produce, so a race loser is
// indistinguishable from a pre-check failure. Infrastructure errors pass
// through wrapped and are never reported as domain rejections.
func (s *ReservationService) mapStoreError(err error, requester persistence.Resident, chargerID int) error {
	switch {
	case errors.Is(err, persistence.ErrSlotConflict):
		return slotConflictRejection(chargerID)
	case errors.Is(err, persistence.ErrUnitQuotaExceeded):
		return s.unitQuotaRejection(requester)
	case errors.Is(err, persistence.ErrConstraintViolation):
		return booking.Reject(booking.ReasonInvalidWindow, "end must be after start")
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrUnauthorized
	default:
		return fmt.Errorf("reservation store failed: %w", err)
	}
}

func (s *ReservationService) unitQuotaRejection(requester persistence.Resident) *booking.Rejection {
	if requester.UnitLabel == "" {
		return booking.Reject(booking.ReasonUnitQuotaExceeded,
			"you already hold an active reservation; one at a time per unit")
	}
	return booking.Reject(booking.ReasonUnitQuotaExceeded,
		"unit %s already holds an active reservation; one at a time per unit", requester.UnitLabel)
}

func slotConflictRejection(chargerID int) *booking.Rejection {
	return booking.Reject(booking.ReasonSlotConflict,
		"charger %d is already reserved for that time", chargerID)
}

func toReservation(model persistence.Reservation) Reservation {
	return Reservation{
		ID:         model.ID,
		AccountID:  model.AccountID,
		ResidentID: model.ResidentID,
		ChargerID:  model.ChargerID,
		Start:      model.Start,
		End:        model.End,
		CreatedAt:  model.CreatedAt,
	}
}
