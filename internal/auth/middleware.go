package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"example.com/footprint/internal/domain"
)

// UserResolver loads a user by id.
type UserResolver interface {
	User(ctx context.Context, id string) (*domain.User, error)
}

// Middleware resolves the request identity once and stores it on the context.
type Middleware struct {
	sessions *Sessions
	tokens   TokenConfig
	users    UserResolver
	logger   zerolog.Logger
}

// NewMiddleware constructs Middleware.
func NewMiddleware(sessions *Sessions, tokens TokenConfig, users UserResolver, logger zerolog.Logger) Middleware {
	return Middleware{sessions: sessions, tokens: tokens, users: users, logger: logger}
}

// Wrap attaches identity resolution to an http.Handler. Requests without credentials pass
// through anonymously; a bearer token that fails validation or names an unknown user is
// rejected with 401.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := m.fromSession(r); ok {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, err := bearerToken(header)
		if err != nil {
			writeUnauthorized(w, err.Error())
			return
		}
		claims, err := ParseToken(token, m.tokens)
		if err != nil {
			m.logger.Debug().Err(err).Msg("bearer token rejected")
			writeUnauthorized(w, ErrInvalidToken.Error())
			return
		}
		user, err := m.users.User(r.Context(), claims.Subject)
		if err != nil {
			if !errors.Is(err, domain.ErrUserNotFound) {
				m.logger.Error().Err(err).Str("user_id", claims.Subject).Msg("token user lookup failed")
				writeProblem(w, http.StatusInternalServerError, "server_error", "unable to resolve token subject")
				return
			}
			writeUnauthorized(w, ErrInvalidToken.Error())
			return
		}
		id := Identity{UserID: user.ID, Username: user.Username, Method: "token"}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (m Middleware) fromSession(r *http.Request) (Identity, bool) {
	if m.sessions == nil {
		return Identity{}, false
	}
	userID := m.sessions.UserID(r)
	if userID == "" {
		return Identity{}, false
	}
	user, err := m.users.User(r.Context(), userID)
	if err != nil {
		// Stale cookie for a user that no longer resolves.
		if !errors.Is(err, domain.ErrUserNotFound) {
			m.logger.Warn().Err(err).Str("user_id", userID).Msg("session user lookup failed")
		}
		return Identity{}, false
	}
	return Identity{UserID: user.ID, Username: user.Username, Method: "session"}, true
}

// RequirePage redirects anonymous requests to the login page.
func RequirePage(enabled bool, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPI rejects anonymous requests with a 401 JSON body.
func RequireAPI(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				writeUnauthorized(w, "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="footprint"`)
	writeProblem(w, http.StatusUnauthorized, "unauthorized", detail)
}

func writeProblem(w http.ResponseWriter, status int, kind, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"type":   kind,
		"detail": detail,
	})
}
