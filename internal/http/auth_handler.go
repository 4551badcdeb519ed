package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/charger-booking/internal/application"
)

// Authenticator is the session surface the handler depends on.
type Authenticator interface {
	Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	RevokeSession(ctx context.Context, token string) error
}

// AuthHandler exposes login and logout over HTTP.
type AuthHandler struct {
	service Authenticator
	respond responder
}

// NewAuthHandler builds a handler around the auth service.
func NewAuthHandler(service Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: service, respond: newResponder(logger)}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token     string           `json:"token"`
	ExpiresAt string           `json:"expires_at"`
	Resident  residentResponse `json:"resident"`
}

// Login handles POST /sessions.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if !h.respond.decodeJSON(ctx, w, r.Body, &req) {
		return
	}

	result, err := h.service.Authenticate(ctx, application.AuthenticateParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	h.respond.writeJSON(ctx, w, http.StatusCreated, sessionResponse{
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt.UTC().Format(time.RFC3339),
		Resident:  toResidentResponse(result.Resident),
	})
}

// Logout handles DELETE /sessions/current, revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := bearerToken(r)
	if token == "" {
		h.respond.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			Message: errMissingSessionToken.Error(),
		})
		return
	}

	if err := h.service.RevokeSession(ctx, token); err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	h.respond.writeJSON(ctx, w, http.StatusNoContent, nil)
}
