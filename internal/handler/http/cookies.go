package http

import (
	"net/http"
	"time"

	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/domain"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/middleware"
)

// RefreshTokenCookie is the cookie carrying the refresh token. The access
// token cookie name is owned by the auth middleware.
const RefreshTokenCookie = "refresh_token"

// CookieConfig controls the attributes of the auth cookies. Secure and
// Domain are only applied in production so local development over plain HTTP
// keeps working.
type CookieConfig struct {
	Domain        string
	Secure        bool
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

// setAuthCookies writes the access and refresh token cookies. Max-age is
// derived from the same duration grammar as the token expiries so cookie and
// token lifetimes cannot silently diverge.
func setAuthCookies(w http.ResponseWriter, cfg CookieConfig, tokens *domain.TokenPair) {
	setCookie(w, cfg, middleware.AccessTokenCookie, tokens.AccessToken, int(cfg.AccessMaxAge.Seconds()))
	setCookie(w, cfg, RefreshTokenCookie, tokens.RefreshToken, int(cfg.RefreshMaxAge.Seconds()))
}

// clearAuthCookies expires both auth cookies on the client.
func clearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	setCookie(w, cfg, middleware.AccessTokenCookie, "", -1)
	setCookie(w, cfg, RefreshTokenCookie, "", -1)
}

func setCookie(w http.ResponseWriter, cfg CookieConfig, name, value string, maxAge int) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	if cfg.Secure {
		c.Secure = true
		c.Domain = cfg.Domain
	}
	http.SetCookie(w, c)
}
