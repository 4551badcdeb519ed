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

// ResidentRepository captures the persistence interactions needed for
// membership management.
type ResidentRepository interface {
	CreateResident(ctx context.Context, resident persistence.Resident) error
	UpdateResident(ctx context.Context, resident persistence.Resident) error
	GetResident(ctx context.Context, id string) (persistence.Resident, error)
	ListResidents(ctx context.Context, accountID string) ([]persistence.Resident, error)
	DetachResident(ctx context.Context, id string) error
}

// InviteResolver resolves registration invite codes to accounts.
type InviteResolver interface {
	GetAccountByInviteCode(ctx context.Context, code string) (persistence.Account, error)
}

// ResidentService manages registration and membership for an account.
type ResidentService struct {
	residents   ResidentRepository
	invites     InviteResolver
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewResidentService wires dependencies for membership operations.
func NewResidentService(residents ResidentRepository, invites InviteResolver, idGenerator func() string, now func() time.Time) *ResidentService {
	return NewResidentServiceWithLogger(residents, invites, idGenerator, now, nil)
}

// NewResidentServiceWithLogger wires dependencies plus a base logger.
func NewResidentServiceWithLogger(residents ResidentRepository, invites InviteResolver, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ResidentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &ResidentService{
		residents:   residents,
		invites:     invites,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Register joins a new resident to the account named by the invite code.
func (s *ResidentService) Register(ctx context.Context, input RegisterResidentInput) (Resident, error) {
	if s == nil || s.residents == nil || s.invites == nil {
		return Resident{}, fmt.Errorf("resident repositories not configured")
	}

	logger := serviceLogger(ctx, s.logger, "resident", "register")

	vErr := &ValidationError{}
	input.Email = strings.TrimSpace(input.Email)
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	input.UnitLabel = strings.TrimSpace(input.UnitLabel)

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}
	if len(input.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}
	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}
	if strings.TrimSpace(input.InviteCode) == "" {
		vErr.add("invite_code", "invite code is required")
	}
	if vErr.HasErrors() {
		return Resident{}, vErr
	}

	account, err := s.invites.GetAccountByInviteCode(ctx, strings.TrimSpace(input.InviteCode))
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Resident{}, ErrInvalidInvite
		}
		return Resident{}, err
	}

	hash, err := CreatePasswordHash(input.Password, DefaultArgon2idParams)
	if err != nil {
		return Resident{}, fmt.Errorf("failed to hash password: %w", err)
	}

	resident := persistence.Resident{
		ID:           s.idGenerator(),
		AccountID:    account.ID,
		Email:        input.Email,
		PasswordHash: hash,
		DisplayName:  input.DisplayName,
		UnitLabel:    input.UnitLabel,
		CarModel:     strings.TrimSpace(input.CarModel),
		IsAdmin:      false,
	}

	if err := s.residents.CreateResident(ctx, resident); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return Resident{}, ErrAlreadyExists
		}
		return Resident{}, err
	}

	logger.InfoContext(ctx, "resident registered", "resident_id", resident.ID, "account_id", account.ID)
	return toResident(resident), nil
}

// GetProfile returns the requesting resident's own profile.
func (s *ResidentService) GetProfile(ctx context.Context, principal Principal) (Resident, error) {
	if s == nil || s.residents == nil {
		return Resident{}, fmt.Errorf("resident repository not configured")
	}

	resident, err := s.residents.GetResident(ctx, principal.ResidentID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Resident{}, ErrNotFound
		}
		return Resident{}, err
	}
	return toResident(resident), nil
}

// UpdateProfile mutates the requesting resident's own profile fields.
func (s *ResidentService) UpdateProfile(ctx context.Context, principal Principal, input UpdateProfileInput) (Resident, error) {
	if s == nil || s.residents == nil {
		return Resident{}, fmt.Errorf("resident repository not configured")
	}

	vErr := &ValidationError{}
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}
	if vErr.HasErrors() {
		return Resident{}, vErr
	}

	resident, err := s.residents.GetResident(ctx, principal.ResidentID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Resident{}, ErrNotFound
		}
		return Resident{}, err
	}

	resident.DisplayName = input.DisplayName
	resident.UnitLabel = strings.TrimSpace(input.UnitLabel)
	resident.CarModel = strings.TrimSpace(input.CarModel)

	if err := s.residents.UpdateResident(ctx, resident); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Resident{}, ErrNotFound
		}
		return Resident{}, err
	}

	return toResident(resident), nil
}

// ListMembers enumerates the members of the administrator's account.
func (s *ResidentService) ListMembers(ctx context.Context, principal Principal) ([]Resident, error) {
	if s == nil || s.residents == nil {
		return nil, fmt.Errorf("resident repository not configured")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	models, err := s.residents.ListResidents(ctx, principal.AccountID)
	if err != nil {
		return nil, err
	}

	residents := make([]Resident, 0, len(models))
	for _, model := range models {
		residents = append(residents, toResident(model))
	}
	return residents, nil
}

// RemoveMember detaches a resident from the administrator's account. The
// resident row is kept; only the account and unit linkage is cleared.
func (s *ResidentService) RemoveMember(ctx context.Context, principal Principal, residentID string) error {
	if s == nil || s.residents == nil {
		return fmt.Errorf("resident repository not configured")
	}

	logger := serviceLogger(ctx, s.logger, "resident", "remove_member",
		"admin_id", principal.ResidentID,
		"resident_id", residentID,
	)

	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if residentID == principal.ResidentID {
		return ErrUnauthorized
	}

	target, err := s.residents.GetResident(ctx, residentID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if target.AccountID != principal.AccountID || target.IsAdmin {
		return ErrUnauthorized
	}

	if err := s.residents.DetachResident(ctx, residentID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	logger.InfoContext(ctx, "resident removed from account")
	return nil
}

func toResident(model persistence.Resident) Resident {
	return Resident{
		ID:          model.ID,
		AccountID:   model.AccountID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		UnitLabel:   model.UnitLabel,
		CarModel:    model.CarModel,
		IsAdmin:     model.IsAdmin,
		CreatedAt:   model.CreatedAt,
	}
}
