package core

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionCookieName is the single cookie holding the session token.
const SessionCookieName = "plainpost_session"

const (
	sessionMaxAge = int(SessionTTL / time.Second)
	identityKey   = "identity"
)

// AuthContext resolves the request identity from the session cookie before any
// route logic runs. A missing or invalid token leaves the request anonymous;
// that is not an error and nothing is reported to the client.
func AuthContext(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(SessionCookieName)
		if err == nil {
			if claims, ok := tokens.Verify(raw); ok {
				c.Set(identityKey, claims)
			}
		}
		c.Next()
	}
}

// IdentityFrom returns the verified claims of the request, if any.
func IdentityFrom(c *gin.Context) (SessionClaims, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return SessionClaims{}, false
	}
	claims, ok := v.(SessionClaims)
	return claims, ok
}

// setSessionCookie writes the token with http-only, secure, same-site strict and a 24h max-age.
func setSessionCookie(c *gin.Context, cfg Config, token string) {
	writeSessionCookie(c, cfg, token, sessionMaxAge)
}

// clearSessionCookie overwrites the cookie with an empty value and Max-Age=0.
func clearSessionCookie(c *gin.Context, cfg Config) {
	writeSessionCookie(c, cfg, "", -1)
}

func writeSessionCookie(c *gin.Context, cfg Config, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(SessionCookieName, value, maxAge, "/", "", cfg.CookieSecure, true)
}
