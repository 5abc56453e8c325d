package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// SetAccessCookie writes the httpOnly access-token cookie.
func SetAccessCookie(c *gin.Context, value string, ttl time.Duration, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieAccessToken, value, int(ttl.Seconds()), "/", "", secure, true)
}

// SetRefreshCookie writes the httpOnly refresh-token cookie.
func SetRefreshCookie(c *gin.Context, value string, ttl time.Duration, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieRefreshToken, value, int(ttl.Seconds()), "/", "", secure, true)
}

// ClearAuthCookies expires both auth cookies on the response.
func ClearAuthCookies(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieAccessToken, "", -1, "/", "", secure, true)
	c.SetCookie(CookieRefreshToken, "", -1, "/", "", secure, true)
}
