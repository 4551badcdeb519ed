package http

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// RouterConfig bundles the handlers and middleware dependencies the HTTP
// surface needs.
type RouterConfig struct {
	Auth         *AuthHandler
	Accounts     *AccountHandler
	Residents    *ResidentHandler
	Reservations *ReservationHandler
	Sessions     SessionValidator
	Logger       *slog.Logger

	// AllowedOrigins configures CORS for the browser frontend. Empty means
	// same-origin only.
	AllowedOrigins []string
}

// NewRouter assembles the route table. Login, account signup, invite lookup
// and resident registration are public; everything else requires a session.
func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = notFound(cfg.Logger)
	router.MethodNotAllowedHandler = methodNotAllowed(cfg.Logger)

	router.HandleFunc("/sessions", cfg.Auth.Login).Methods(http.MethodPost)
	router.HandleFunc("/accounts", cfg.Accounts.Create).Methods(http.MethodPost)
	router.HandleFunc("/invites/{code}", cfg.Accounts.ResolveInvite).Methods(http.MethodGet)
	router.HandleFunc("/residents", cfg.Residents.Register).Methods(http.MethodPost)

	authed := router.NewRoute().Subrouter()
	// The subrouter matches every remaining request; it needs its own
	// fallback handlers because those are not inherited.
	authed.NotFoundHandler = router.NotFoundHandler
	authed.MethodNotAllowedHandler = router.MethodNotAllowedHandler
	authed.Use(RequireSession(cfg.Sessions, cfg.Logger))

	authed.HandleFunc("/sessions/current", cfg.Auth.Logout).Methods(http.MethodDelete)
	authed.HandleFunc("/accounts/current", cfg.Accounts.Get).Methods(http.MethodGet)
	authed.HandleFunc("/accounts/current/chargers", cfg.Accounts.SetChargerCount).Methods(http.MethodPut)
	authed.HandleFunc("/residents/me", cfg.Residents.GetProfile).Methods(http.MethodGet)
	authed.HandleFunc("/residents/me", cfg.Residents.UpdateProfile).Methods(http.MethodPut)
	authed.HandleFunc("/residents", cfg.Residents.ListMembers).Methods(http.MethodGet)
	authed.HandleFunc("/residents/{id}", cfg.Residents.RemoveMember).Methods(http.MethodDelete)
	authed.HandleFunc("/reservations", cfg.Reservations.Create).Methods(http.MethodPost)
	authed.HandleFunc("/reservations", cfg.Reservations.List).Methods(http.MethodGet)
	authed.HandleFunc("/reservations/{id}", cfg.Reservations.Delete).Methods(http.MethodDelete)

	var handler http.Handler = router
	if len(cfg.AllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
			},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}).Handler(handler)
	}

	return RequestLogger(cfg.Logger)(handler)
}

func notFound(logger *slog.Logger) http.Handler {
	respond := newResponder(logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.writeJSON(r.Context(), w, http.StatusNotFound, errorResponse{
			Message: "the requested resource was not found",
		})
	})
}

func methodNotAllowed(logger *slog.Logger) http.Handler {
	respond := newResponder(logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.writeJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{
			Message: "method not allowed",
		})
	})
}
