package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/charger-booking/internal/application"
	"github.com/example/charger-booking/internal/booking"
)

var (
	errBadRequestBody      = errors.New("the request body could not be parsed")
	errInvalidReservation  = errors.New("invalid reservation id")
	errInvalidResidentID   = errors.New("invalid resident id")
	errMissingSessionToken = errors.New("a session token is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application errors to stable HTTP codes. Admission
// rejections keep their reason as a machine readable error_code; store
// outages fall through to a generic 500 and are never disguised as domain
// rejections.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var rejection *booking.Rejection
	if errors.As(err, &rejection) {
		r.writeJSON(ctx, w, rejectionStatus(rejection.Reason), errorResponse{
			ErrorCode: strings.ToUpper(string(rejection.Reason)),
			Message:   rejection.Detail,
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "FORBIDDEN",
			Message:   "you do not have permission to perform this operation",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "the requested resource was not found"})
	case errors.Is(err, application.ErrAccountSuspended):
		r.writeJSON(ctx, w, http.StatusPaymentRequired, errorResponse{
			ErrorCode: "ACCOUNT_SUSPENDED",
			Message:   "this account is not active; contact your building administrator",
		})
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Message: "invalid email or password"})
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{Message: "your session is no longer valid; please sign in again"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   "a record with that identifier already exists",
		})
	case errors.Is(err, application.ErrInvalidInvite):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: "INVALID_INVITE",
			Message:   "the invite code is invalid or has expired",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "the submitted input is invalid",
				Errors:  vErr.FieldErrors,
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "internal error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "an internal error occurred"})
	}
}

// rejectionStatus distinguishes malformed requests (unprocessable) from
// requests that lost to existing state (conflict).
func rejectionStatus(reason booking.Reason) int {
	switch reason {
	case booking.ReasonSlotConflict, booking.ReasonUnitQuotaExceeded:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
