package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/charger-booking/internal/application"
)

// ReservationBooker is the reservation surface the handler depends on.
type ReservationBooker interface {
	Create(ctx context.Context, params application.CreateReservationParams) (application.Reservation, error)
	Cancel(ctx context.Context, principal application.Principal, reservationID string) error
	ListUpcoming(ctx context.Context, principal application.Principal) ([]application.Reservation, error)
}

// ReservationHandler exposes booking admission over HTTP.
type ReservationHandler struct {
	service ReservationBooker
	respond responder
}

// NewReservationHandler builds a handler around the reservation service.
func NewReservationHandler(service ReservationBooker, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{service: service, respond: newResponder(logger)}
}

type createReservationRequest struct {
	ChargerID int       `json:"charger_id" validate:"required,min=1"`
	Start     time.Time `json:"start" validate:"required"`
	End       time.Time `json:"end" validate:"required"`
}

type reservationResponse struct {
	ID         string `json:"id"`
	ResidentID string `json:"resident_id"`
	ChargerID  int    `json:"charger_id"`
	Start      string `json:"start"`
	End        string `json:"end"`
	CreatedAt  string `json:"created_at"`
}

// Create handles POST /reservations.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		h.respond.handleServiceError(ctx, w, application.ErrUnauthorized)
		return
	}

	var req createReservationRequest
	if !h.respond.decodeJSON(ctx, w, r.Body, &req) {
		return
	}

	reservation, err := h.service.Create(ctx, application.CreateReservationParams{
		Principal: principal,
		Input: application.ReservationInput{
			ChargerID: req.ChargerID,
			Start:     req.Start,
			End:       req.End,
		},
	})
	if err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	h.respond.writeJSON(ctx, w, http.StatusCreated, toReservationResponse(reservation))
}

// List handles GET /reservations, returning current and future slots.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		h.respond.handleServiceError(ctx, w, application.ErrUnauthorized)
		return
	}

	reservations, err := h.service.ListUpcoming(ctx, principal)
	if err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	payload := make([]reservationResponse, 0, len(reservations))
	for _, reservation := range reservations {
		payload = append(payload, toReservationResponse(reservation))
	}
	h.respond.writeJSON(ctx, w, http.StatusOK, payload)
}

// Delete handles DELETE /reservations/{id}.
func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		h.respond.handleServiceError(ctx, w, application.ErrUnauthorized)
		return
	}

	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		h.respond.writeError(ctx, w, http.StatusBadRequest, errInvalidReservation)
		return
	}

	if err := h.service.Cancel(ctx, principal, id); err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	h.respond.writeJSON(ctx, w, http.StatusNoContent, nil)
}

func toReservationResponse(reservation application.Reservation) reservationResponse {
	return reservationResponse{
		ID:         reservation.ID,
		ResidentID: reservation.ResidentID,
		ChargerID:  reservation.ChargerID,
		Start:      reservation.Start.UTC().Format(time.RFC3339),
		End:        reservation.End.UTC().Format(time.RFC3339),
		CreatedAt:  reservation.CreatedAt.UTC().Format(time.RFC3339),
	}
}
