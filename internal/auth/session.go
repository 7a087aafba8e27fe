package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName   = "footprint_session"
	sessionUserID = "user_id"
)

// Sessions manages the signed browser session cookie.
type Sessions struct {
	store *sessions.CookieStore
}

// NewSessions creates a cookie store signed with secret.
func NewSessions(secret string, secure bool) *Sessions {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store}
}

// get never returns a nil session; a cookie that fails verification yields a fresh one.
func (s *Sessions) get(r *http.Request) *sessions.Session {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		session, _ = s.store.New(r, sessionName)
	}
	return session
}

// UserID returns the user id held by the session, if any.
func (s *Sessions) UserID(r *http.Request) string {
	id, _ := s.get(r).Values[sessionUserID].(string)
	return id
}

// Login binds the session to userID.
func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, userID string) error {
	session := s.get(r)
	session.Values[sessionUserID] = userID
	return session.Save(r, w)
}

// Logout clears the session cookie.
func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) error {
	session := s.get(r)
	delete(session.Values, sessionUserID)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// AddFlash queues a one-shot message for the next rendered page.
func (s *Sessions) AddFlash(w http.ResponseWriter, r *http.Request, message string) error {
	session := s.get(r)
	session.AddFlash(message)
	return session.Save(r, w)
}

// Flashes pops pending flash messages.
func (s *Sessions) Flashes(w http.ResponseWriter, r *http.Request) []string {
	session := s.get(r)
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = session.Save(r, w)

	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}
