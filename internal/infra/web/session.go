package web

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CheckoutSession reads the per-browser checkout cookie. With create set, a
// missing cookie is minted and written to w.
func CheckoutSession(w http.ResponseWriter, r *http.Request, name string, ttl time.Duration, secure, create bool) string {
	if c, err := r.Cookie(name); err == nil && c.Value != "" {
		return c.Value
	}
	if !create {
		return ""
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
