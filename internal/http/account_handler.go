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

// AccountDirectory is the account surface the handler depends on.
type AccountDirectory interface {
	Create(ctx context.Context, input application.CreateAccountInput) (application.CreateAccountResult, error)
	Get(ctx context.Context, principal application.Principal) (application.Account, error)
	ResolveInvite(ctx context.Context, code string) (application.Account, error)
	SetChargerCount(ctx context.Context, principal application.Principal, chargerCount int) error
}

// AccountHandler exposes condominium account management over HTTP.
type AccountHandler struct {
	service AccountDirectory
	respond responder
}

// NewAccountHandler builds a handler around the account service.
func NewAccountHandler(service AccountDirectory, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{service: service, respond: newResponder(logger)}
}

type createAccountRequest struct {
	Name          string `json:"name" validate:"required"`
	ChargerCount  int    `json:"charger_count" validate:"min=0,max=16"`
	AdminEmail    string `json:"admin_email" validate:"required,email"`
	AdminPassword string `json:"admin_password" validate:"required,min=8"`
	AdminName     string `json:"admin_name" validate:"required"`
}

type setChargerCountRequest struct {
	ChargerCount int `json:"charger_count" validate:"required,min=1"`
}

type accountResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	InviteCode   string `json:"invite_code,omitempty"`
	Status       string `json:"status"`
	ChargerCount int    `json:"charger_count"`
	CreatedAt    string `json:"created_at"`
}

type createAccountResponse struct {
	Account accountResponse  `json:"account"`
	Admin   residentResponse `json:"admin"`
}

type inviteResponse struct {
	AccountName string `json:"account_name"`
}

// Create handles POST /accounts: a new condominium plus its first
// administrator.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createAccountRequest
	if !h.respond.decodeJSON(ctx, w, r.Body, &req) {
		return
	}

	result, err := h.service.Create(ctx, application.CreateAccountInput{
		Name:          req.Name,
		ChargerCount:  req.ChargerCount,
		AdminEmail:    req.AdminEmail,
		AdminPassword: req.AdminPassword,
		AdminName:     req.AdminName,
	})
	if err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	h.respond.writeJSON(ctx, w, http.StatusCreated, createAccountResponse{
		Account: toAccountResponse(result.Account),
		Admin:   toResidentResponse(result.Admin),
	})
}

// Get handles GET /accounts/current.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		h.respond.handleServiceError(ctx, w, application.ErrUnauthorized)
		return
	}

	account, err := h.service.Get(ctx, principal)
	if err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	response := toAccountResponse(account)
	if !principal.IsAdmin {
		// The invite code is an admin credential; members never see it.
		response.InviteCode = ""
	}
	h.respond.writeJSON(ctx, w, http.StatusOK, response)
}

// ResolveInvite handles GET /invites/{code}, used by the unauthenticated
// registration page to show which condominium the code joins.
func (h *AccountHandler) ResolveInvite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := strings.TrimSpace(mux.Vars(r)["code"])
	account, err := h.service.ResolveInvite(ctx, code)
	if err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	h.respond.writeJSON(ctx, w, http.StatusOK, inviteResponse{AccountName: account.Name})
}

// SetChargerCount handles PUT /accounts/current/chargers.
func (h *AccountHandler) SetChargerCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		h.respond.handleServiceError(ctx, w, application.ErrUnauthorized)
		return
	}

	var req setChargerCountRequest
	if !h.respond.decodeJSON(ctx, w, r.Body, &req) {
		return
	}

	if err := h.service.SetChargerCount(ctx, principal, req.ChargerCount); err != nil {
		h.respond.handleServiceError(ctx, w, err)
		return
	}

	h.respond.writeJSON(ctx, w, http.StatusNoContent, nil)
}

func toAccountResponse(account application.Account) accountResponse {
	return accountResponse{
		ID:           account.ID,
		Name:         account.Name,
		InviteCode:   account.InviteCode,
		Status:       string(account.Status),
		ChargerCount: account.ChargerCount,
		CreatedAt:    account.CreatedAt.UTC().Format(time.RFC3339),
	}
}
