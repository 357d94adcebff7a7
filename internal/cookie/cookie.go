package cookie

import (
	"net/http"

	"github.com/dgellow/tglogin-front/internal/log"
)

// SessionCookie is the default session cookie name.
const SessionCookie = "session"

// Attributes describes how a session cookie travels.
type Attributes struct {
	Name     string
	Path     string
	HTTPOnly bool
	SameSite http.SameSite
	MaxAge   int
	Secure   bool
}

// SessionAttributes returns the session cookie attributes: HttpOnly,
// SameSite=Lax, Path=/.
func SessionAttributes(maxAgeSeconds int, secure bool) Attributes {
	return Attributes{
		Name:     SessionCookie,
		Path:     "/",
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAgeSeconds,
		Secure:   secure,
	}
}

// SetSession writes the session cookie.
func SetSession(w http.ResponseWriter, value string, attrs Attributes) {
	http.SetCookie(w, &http.Cookie{
		Name:     attrs.Name,
		Value:    value,
		Path:     attrs.Path,
		HttpOnly: attrs.HTTPOnly,
		Secure:   attrs.Secure,
		SameSite: attrs.SameSite,
		MaxAge:   attrs.MaxAge,
	})

	log.LogTraceWithFields("cookie", "Session cookie set", map[string]any{
		"maxAge": attrs.MaxAge,
		"secure": attrs.Secure,
	})
}

// ClearSession removes the session cookie by setting MaxAge to -1
func ClearSession(w http.ResponseWriter, attrs Attributes) {
	http.SetCookie(w, &http.Cookie{
		Name:     attrs.Name,
		Value:    "",
		Path:     attrs.Path,
		HttpOnly: attrs.HTTPOnly,
		Secure:   attrs.Secure,
		SameSite: attrs.SameSite,
		MaxAge:   -1,
	})
	log.LogTraceWithFields("cookie", "Session cookie cleared", nil)
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}
