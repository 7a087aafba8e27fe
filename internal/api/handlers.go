// Package api exposes HTTP handlers for the footprint service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"example.com/footprint/internal/auth"
	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
	"example.com/footprint/internal/observability"
	"example.com/footprint/internal/persistence"
)

const (
	maxListLimit = 100
	maxBodyBytes = 1 << 20
)

// Flash messages shown on the register and login pages.
const (
	flashDuplicateIdentity  = "Username or email already exists."
	flashMissingFields      = "Username, email and password are required."
	flashRegistered         = "Registration successful. Please log in."
	flashInvalidCredentials = "Invalid email or password."
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes handler behaviour.
type Options struct {
	RecentLimit  int
	RequireLogin bool
	Tokens       auth.TokenConfig
	// Health is checked by /healthz when set.
	Health Pinger
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	service  *domain.Service
	accounts *domain.AuthService
	sessions *auth.Sessions
	views    *views
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, accounts *domain.AuthService, sessions *auth.Sessions, opts Options, logger zerolog.Logger) (*Handler, error) {
	v, err := loadViews()
	if err != nil {
		return nil, err
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 5
	}
	return &Handler{
		service:  service,
		accounts: accounts,
		sessions: sessions,
		views:    v,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// healthz reports a simple OK status for container health checks.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.opts.Health.Ping(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("health check failed")
			writeError(w, http.StatusServiceUnavailable, "unavailable", "store unreachable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) basePage(w http.ResponseWriter, r *http.Request, title string) page {
	id, _ := auth.IdentityFromContext(r.Context())
	return page{
		Title:    title,
		Username: id.Username,
		Flashes:  h.sessions.Flashes(w, r),
	}
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, r, http.StatusOK, nil, nil)
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "unable to parse form", http.StatusBadRequest)
		return
	}

	input := make(map[string]any, len(r.PostForm))
	echo := make(map[string]string, len(r.PostForm))
	for key := range r.PostForm {
		value := r.PostForm.Get(key)
		input[key] = value
		echo[key] = value
	}

	calc, err := h.service.Record(r.Context(), auth.OwnerID(r.Context()), input)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.renderIndex(w, r, http.StatusOK, echo, &resultView{
		Total:          calc.Activity.TotalEmission,
		Recommendation: calc.Recommendation,
		Tier:           calc.Tier,
		Breakdown:      calc.Breakdown,
	})
}

func (h *Handler) renderIndex(w http.ResponseWriter, r *http.Request, status int, echo map[string]string, result *resultView) {
	recent, _, err := h.service.Recent(r.Context(), auth.OwnerID(r.Context()), nil, h.opts.RecentLimit)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	data := indexPage{
		page:   h.basePage(w, r, "Calculator"),
		Fields: formFields(echo),
		Result: result,
		Recent: activityRows(recent),
	}
	if err := h.views.render(w, status, "index.html", data); err != nil {
		h.serverError(w, r, err)
	}
}

func (h *Handler) apiCalculate(w http.ResponseWriter, r *http.Request) {
	input, err := decodeObject(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must be a JSON object")
		return
	}

	calc, err := h.service.Record(r.Context(), auth.OwnerID(r.Context()), input)
	if err != nil {
		h.logger.Error().Err(err).Msg("record calculation")
		writeError(w, http.StatusInternalServerError, "server_error", "unable to record calculation")
		return
	}

	writeJSON(w, http.StatusOK, CalculateResponse{
		Input:          input,
		TotalEmission:  calc.Activity.TotalEmission,
		Recommendation: calc.Recommendation,
		Tier:           calc.Tier,
		ActivityID:     calc.Activity.ID,
		Breakdown:      calc.Breakdown,
	})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	limit := h.opts.RecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		if parsed > maxListLimit {
			parsed = maxListLimit
		}
		limit = parsed
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.service.Recent(r.Context(), auth.OwnerID(r.Context()), cursor, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("list activities")
		writeError(w, http.StatusInternalServerError, "server_error", "unable to list activities")
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), auth.OwnerID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("load history")
		writeError(w, http.StatusInternalServerError, "server_error", "unable to load history")
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) registerForm(w http.ResponseWriter, r *http.Request) {
	if err := h.views.render(w, http.StatusOK, "register.html", h.basePage(w, r, "Register")); err != nil {
		h.serverError(w, r, err)
	}
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "unable to parse form", http.StatusBadRequest)
		return
	}

	_, err := h.accounts.Register(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("email"), r.PostForm.Get("password"))
	switch {
	case err == nil:
		observability.RecordRegistration("created")
		h.flashAndRedirect(w, r, flashRegistered, "/login")
	case errors.Is(err, domain.ErrDuplicateIdentity):
		observability.RecordRegistration("duplicate")
		h.flashAndRedirect(w, r, flashDuplicateIdentity, "/register")
	case errors.Is(err, domain.ErrInvalidInput):
		observability.RecordRegistration("invalid")
		h.flashAndRedirect(w, r, flashMissingFields, "/register")
	default:
		observability.RecordRegistration("error")
		h.serverError(w, r, err)
	}
}

func (h *Handler) loginForm(w http.ResponseWriter, r *http.Request) {
	if err := h.views.render(w, http.StatusOK, "login.html", h.basePage(w, r, "Log in")); err != nil {
		h.serverError(w, r, err)
	}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "unable to parse form", http.StatusBadRequest)
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			observability.RecordLogin("rejected")
			h.flashAndRedirect(w, r, flashInvalidCredentials, "/login")
			return
		}
		observability.RecordLogin("error")
		h.serverError(w, r, err)
		return
	}

	if err := h.sessions.Login(w, r, user.ID); err != nil {
		h.serverError(w, r, err)
		return
	}
	observability.RecordLogin("accepted")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		h.logger.Warn().Err(err).Msg("clear session")
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			observability.RecordLogin("rejected")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", flashInvalidCredentials)
			return
		}
		h.logger.Error().Err(err).Msg("authenticate token request")
		writeError(w, http.StatusInternalServerError, "server_error", "unable to authenticate")
		return
	}

	token, expires, err := auth.IssueToken(user.ID, user.Username, h.opts.Tokens, h.now())
	if err != nil {
		h.logger.Error().Err(err).Msg("issue token")
		writeError(w, http.StatusInternalServerError, "server_error", "unable to issue token")
		return
	}
	observability.RecordLogin("accepted")
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expires,
	})
}

func (h *Handler) flashAndRedirect(w http.ResponseWriter, r *http.Request, message, location string) {
	if err := h.sessions.AddFlash(w, r, message); err != nil {
		h.logger.Warn().Err(err).Msg("save flash")
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// decodeObject reads a JSON object body. Numbers stay json.Number so the echoed
// input matches what the client sent.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var input map[string]any
	if err := dec.Decode(&input); err != nil {
		return nil, err
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, nil
}

// CalculateResponse is the body returned by POST /api/calculate.
type CalculateResponse struct {
	Input          map[string]any           `json:"input"`
	TotalEmission  float64                  `json:"total_emission_kgCO2"`
	Recommendation string                   `json:"recommendation"`
	Tier           string                   `json:"tier"`
	ActivityID     string                   `json:"activity_id"`
	Breakdown      []emissions.Contribution `json:"breakdown"`
}

// ActivityView is the JSON shape of a stored activity.
type ActivityView struct {
	ActivityID    string             `json:"activity_id"`
	OwnerID       string             `json:"owner_id,omitempty"`
	Quantities    map[string]float64 `json:"quantities"`
	TotalEmission float64            `json:"total_emission_kgCO2"`
	CreatedAt     time.Time          `json:"created_at"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// TokenRequest is the payload for POST /api/token.
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(a domain.Activity) ActivityView {
	quantities := make(map[string]float64, len(emissions.Categories))
	for _, category := range emissions.Categories {
		quantities[category] = a.Quantities.Get(category)
	}
	return ActivityView{
		ActivityID:    a.ID,
		OwnerID:       a.OwnerID,
		Quantities:    quantities,
		TotalEmission: a.TotalEmission,
		CreatedAt:     a.CreatedAt,
	}
}
