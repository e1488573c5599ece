package token

import (
	"net/http"
)

// CookieSetter writes and clears the token cookies on login and logout
// responses.
type CookieSetter struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

// NewCookieSetter creates a new cookie setter
func NewCookieSetter(httpOnly, secure bool) *CookieSetter {
	return &CookieSetter{
		Path:     "/",
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetTokenCookies writes one cookie per issued token
func (c *CookieSetter) SetTokenCookies(w http.ResponseWriter, pair Pair) {
	c.set(w, pair.AccessToken)
	if pair.RefreshToken != nil {
		c.set(w, *pair.RefreshToken)
	}
}

// ClearTokenCookies expires both token cookies
func (c *CookieSetter) ClearTokenCookies(w http.ResponseWriter) {
	c.clear(w, AccessTokenName)
	c.clear(w, RefreshTokenName)
}

func (c *CookieSetter) set(w http.ResponseWriter, tv TokenValue) {
	http.SetCookie(w, &http.Cookie{
		Name:     tv.Name,
		Path:     c.Path,
		Value:    tv.Token,
		Expires:  tv.Expiry,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func (c *CookieSetter) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     c.Path,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: c.HttpOnly,
		Secure:   c.Secure,
	})
}
