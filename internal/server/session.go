package server

import (
	"net/http"

	"github.com/google/uuid"
)

const (
	sessionCookie = "session_id"
	sessionMaxAge = 7 * 24 * 60 * 60
)

// sessionID returns the caller's session id, issuing a new cookie when the
// request carries none or a malformed one.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
