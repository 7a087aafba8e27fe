package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"example.com/footprint/internal/auth"
	"example.com/footprint/internal/logging"
)

// Router wires every endpoint. identity resolves the caller before any route runs.
func (h *Handler) Router(identity auth.Middleware) http.Handler {
	r := mux.NewRouter()
	r.Use(logging.Middleware(h.logger, routeName))
	r.Use(identity.Wrap)

	page := auth.RequirePage(h.opts.RequireLogin, "/login")
	api := auth.RequireAPI(h.opts.RequireLogin)

	r.Handle("/", page(http.HandlerFunc(h.index))).Methods(http.MethodGet).Name("index")
	r.Handle("/calculate", page(http.HandlerFunc(h.calculate))).Methods(http.MethodPost).Name("calculate")
	r.Handle("/history", page(http.HandlerFunc(h.history))).Methods(http.MethodGet).Name("history")

	r.HandleFunc("/register", h.registerForm).Methods(http.MethodGet).Name("register_form")
	r.HandleFunc("/register", h.register).Methods(http.MethodPost).Name("register")
	r.HandleFunc("/login", h.loginForm).Methods(http.MethodGet).Name("login_form")
	r.HandleFunc("/login", h.login).Methods(http.MethodPost).Name("login")
	r.HandleFunc("/logout", h.logout).Methods(http.MethodGet).Name("logout")

	r.Handle("/api/calculate", api(http.HandlerFunc(h.apiCalculate))).Methods(http.MethodPost).Name("api_calculate")
	r.Handle("/api/activities", api(http.HandlerFunc(h.listActivities))).Methods(http.MethodGet).Name("api_activities")
	r.HandleFunc("/api/token", h.issueToken).Methods(http.MethodPost).Name("api_token")

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet).Name("healthz")
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	})
	return r
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}

// NewRouter builds the handler and its identity middleware in one step.
func NewRouter(h *Handler, sessions *auth.Sessions, users auth.UserResolver, logger zerolog.Logger) http.Handler {
	return h.Router(auth.NewMiddleware(sessions, h.opts.Tokens, users, logger))
}
