package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/charger-booking/internal/application"
)

// SessionValidator resolves a bearer token to the acting principal.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (application.Principal, error)
}

// RequireSession authenticates requests with an opaque bearer token and puts
// the resolved principal on the request context. Requests without a valid
// session are refused before reaching the handler.
func RequireSession(sessions SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	respond := newResponder(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				respond.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					Message: errMissingSessionToken.Error(),
				})
				return
			}

			principal, err := sessions.ValidateSession(r.Context(), token)
			if err != nil {
				respond.handleSessionError(r.Context(), w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// handleSessionError keeps token lookups from leaking: unknown, expired and
// revoked tokens all surface as 401.
func (r responder) handleSessionError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case isAuthFailure(err):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			Message: "the session token is invalid or expired",
		})
	default:
		r.handleServiceError(ctx, w, err)
	}
}

func isAuthFailure(err error) bool {
	for _, sentinel := range []error{
		application.ErrNotFound,
		application.ErrUnauthorized,
		application.ErrSessionExpired,
		application.ErrSessionRevoked,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// RequestLogger attaches a request scoped logger carrying a request id and
// logs one line per completed request.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := base.With(
				"request_id", uuid.NewString(),
				"method", r.Method,
				"path", r.URL.Path,
			)

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(ContextWithLogger(r.Context(), logger)))

			logger.InfoContext(r.Context(), "request completed",
				"status", recorder.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
