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

// ResidentDirectory is the membership surface the handler depends on.
type ResidentDirectory interface {
	Register(ctx context.Context, input application.RegisterResidentInput) (application.Resident, error)
	GetProfile(ctx context.Context, principal application.Principal) (application.Resident, error)
	UpdateProfile(ctx context.Context, principal application.Principal, input application.UpdateProfileInput) (application.Resident, error)
	ListMembers(ctx context.Context, principal application.Principal) ([]application.Resident, error)
	RemoveMember(ctx context.Context, principal application.Principal, residentID string) error
}

// ResidentHandler exposes registration and membership over HTTP.
type ResidentHandler struct {
	service ResidentDirectory
	respond responder
}

// NewResidentHandler builds a handler around the resident service.
func NewResidentHandler(service ResidentDirectory, logger *slog.Logger) *ResidentHandler {
	return &ResidentHandler{service: service, respond: newResponder(logger)}
}

type registerResidentRequest struct {
	InviteCode  string `json:"invite_code" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"required"`
	UnitLabel   string `json:"unit_label"`
	CarModel    string `json:"car_model"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name" validate:"required"`
	UnitLabel   string `json:"unit_label"`
	CarModel    string `json:"car_model"`
}

type residentResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	UnitLabel   string `json:"unit_label,omitempty"`
	CarModel    string `json:"car_model,omitempty"`
	IsAdmin     bool   `json:"is_admin"`
	CreatedAt   string `json:"created_at"`
}

// Register handles POST /residents, the invite-code signup.
func (h *ResidentHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerResidentRequest
	if !h.respond.decodeJSON(ctx, w, r.Body, &req) {
		return
	}

	resident, err := h.service.Register(ctx, application.RegisterResidentInput{
		InviteCode:  req.InviteCode,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		UnitLabel:   req.UnitLabel,
		CarModel:    req.CarModel,
	})
	if err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	h.respond.writeJSON(ctx, w, http.StatusCreated, toResidentResponse(resident))
}

// GetProfile handles GET /residents/me.
func (h *ResidentHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		h.respond.handleServiceError(ctx, w, application.ErrUnauthorized)
		return
	}

	resident, err := h.service.GetProfile(ctx, principal)
	if err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	h.respond.writeJSON(ctx, w, http.StatusOK, toResidentResponse(resident))
}

// UpdateProfile handles PUT /residents/me.
func (h *ResidentHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		h.respond.handleServiceError(ctx, w, application.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if !h.respond.decodeJSON(ctx, w, r.Body, &req) {
		return
	}

	resident, err := h.service.UpdateProfile(ctx, principal, application.UpdateProfileInput{
		DisplayName: req.DisplayName,
		UnitLabel:   req.UnitLabel,
		CarModel:    req.CarModel,
	})
	if err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	h.respond.writeJSON(ctx, w, http.StatusOK, toResidentResponse(resident))
}

// ListMembers handles GET /residents, for account administrators.
func (h *ResidentHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		h.respond.handleServiceError(ctx, w, application.ErrUnauthorized)
		return
	}

	residents, err := h.service.ListMembers(ctx, principal)
	if err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	payload := make([]residentResponse, 0, len(residents))
	for _, resident := range residents {
		payload = append(payload, toResidentResponse(resident))
	}
	h.respond.writeJSON(ctx, w, http.StatusOK, payload)
}

// RemoveMember handles DELETE /residents/{id}, for account administrators.
func (h *ResidentHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		h.respond.handleServiceError(ctx, w, application.ErrUnauthorized)
		return
	}

	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		h.respond.writeError(ctx, w, http.StatusBadRequest, errInvalidResidentID)
		return
	}

	if err := h.service.RemoveMember(ctx, principal, id); err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	h.respond.writeJSON(ctx, w, http.StatusNoContent, nil)
}

func toResidentResponse(resident application.Resident) residentResponse {
	return residentResponse{
		ID:          resident.ID,
		Email:       resident.Email,
		DisplayName: resident.DisplayName,
		UnitLabel:   resident.UnitLabel,
		CarModel:    resident.CarModel,
		IsAdmin:     resident.IsAdmin,
		CreatedAt:   resident.CreatedAt.UTC().Format(time.RFC3339),
	}
}
