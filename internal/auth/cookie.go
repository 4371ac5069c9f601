package auth

import (
	"net/http"
	"strings"
	"time"
)

// CookieName is the cookie holding the session token.
const CookieName = "jwt"

// SetTokenCookie stores token in an HTTP-only cookie that lives as long as
// the token.
func SetTokenCookie(w http.ResponseWriter, r *http.Request, token string, validity time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(validity.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// TokenFromRequest reads the token from the cookie, then from an
// "Authorization: Bearer" header, then from the "token" query parameter.
// Browsers cannot set headers on websocket handshakes, hence the last one.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
