package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/charger-booking/internal/persistence"
)

// CredentialStore exposes the lookups authentication needs.
type CredentialStore interface {
	GetResident(ctx context.Context, id string) (persistence.Resident, error)
	GetResidentByEmail(ctx context.Context, email string) (persistence.Resident, error)
}

// AuthSessionRepository stores authentication session state.
type AuthSessionRepository interface {
	CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error)
	GetSession(ctx context.Context, token string) (persistence.Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// PasswordVerifier checks a password against a stored hash.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService issues and validates opaque session tokens for residents.
type AuthService struct {
	credentials    CredentialStore
	sessions       AuthSessionRepository
	verify         PasswordVerifier
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService wires dependencies for authentication operations.
func NewAuthService(credentials CredentialStore, sessions AuthSessionRepository, verify PasswordVerifier, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(credentials, sessions, verify, tokenGenerator, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger wires dependencies plus a base logger.
func NewAuthServiceWithLogger(credentials CredentialStore, sessions AuthSessionRepository, verify PasswordVerifier, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		credentials:    credentials,
		sessions:       sessions,
		verify:         verify,
		tokenGenerator: tokenGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

// Authenticate verifies credentials and issues a session token. Unknown
// emails and wrong passwords both yield ErrInvalidCredentials so login
// failures do not leak which residents exist.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (AuthenticateResult, error) {
	if s == nil || s.credentials == nil || s.sessions == nil {
		return AuthenticateResult{}, fmt.Errorf("auth repositories not configured")
	}

	logger := serviceLogger(ctx, s.logger, "auth", "authenticate")

	email := strings.TrimSpace(params.Email)
	if email == "" || params.Password == "" {
		return AuthenticateResult{}, ErrInvalidCredentials
	}

	resident, err := s.credentials.GetResidentByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return AuthenticateResult{}, ErrInvalidCredentials
		}
		return AuthenticateResult{}, err
	}

	if err := s.verify(resident.PasswordHash, params.Password); err != nil {
		logger.InfoContext(ctx, "authentication rejected", "error_kind", "invalid_credentials")
		return AuthenticateResult{}, ErrInvalidCredentials
	}

	now := s.now()
	session := persistence.Session{
		Token:      s.tokenGenerator(),
		ResidentID: resident.ID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.sessionTTL),
	}

	created, err := s.sessions.CreateSession(ctx, session)
	if err != nil {
		return AuthenticateResult{}, fmt.Errorf("failed to create session: %w", err)
	}

	logger.InfoContext(ctx, "session issued", "resident_id", resident.ID)
	return AuthenticateResult{
		Session:  toSession(created),
		Resident: toResident(resident),
	}, nil
}

// RevokeSession invalidates a session token.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil || s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}
	if token == "" {
		return ErrNotFound
	}

	if _, err := s.sessions.RevokeSession(ctx, token, s.now()); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// ValidateSession resolves a session token to the acting principal. Expired
// and revoked sessions are rejected; expired sessions are also pruned
// opportunistically.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (Principal, error) {
	if s == nil || s.sessions == nil || s.credentials == nil {
		return Principal{}, fmt.Errorf("auth repositories not configured")
	}
	if token == "" {
		return Principal{}, ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, err
	}

	now := s.now()
	if session.RevokedAt != nil {
		return Principal{}, ErrSessionRevoked
	}
	if !session.ExpiresAt.After(now) {
		if err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
			serviceLogger(ctx, s.logger, "auth", "validate_session").
				WarnContext(ctx, "failed to prune expired sessions", "error", err)
		}
		return Principal{}, ErrSessionExpired
	}

	resident, err := s.credentials.GetResident(ctx, session.ResidentID)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Principal{}, ErrUnauthorized
		}
		return Principal{}, err
	}

	return Principal{
		ResidentID: resident.ID,
		AccountID:  resident.AccountID,
		IsAdmin:    resident.IsAdmin,
	}, nil
}

func toSession(model persistence.Session) Session {
	return Session{
		Token:      model.Token,
		ResidentID: model.ResidentID,
		CreatedAt:  model.CreatedAt,
		ExpiresAt:  model.ExpiresAt,
		RevokedAt:  model.RevokedAt,
	}
}
