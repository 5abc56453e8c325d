package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CsrfOptions configures the double-submit guard. One configured instance
// covers the whole router; exemptions are data, not copies of the
// middleware.
type CsrfOptions struct {
	CookieName        string
	HeaderName        string
	ExemptPaths       map[string]struct{}
	ReissuePerRequest bool
	Secure            bool
}

// DefaultCsrfOptions exempts the bootstrap and credential-presenting
// endpoints: a caller without a session has no token to echo yet.
func DefaultCsrfOptions(secure bool) CsrfOptions {
	return CsrfOptions{
		CookieName: "XSRF-TOKEN",
		HeaderName: "X-CSRF-Token",
		ExemptPaths: map[string]struct{}{
			"/health":             {},
			"/metrics":            {},
			"/auth/signup":        {},
			"/auth/login":         {},
			"/auth/refresh-token": {},
		},
		ReissuePerRequest: true,
		Secure:            secure,
	}
}

// CsrfGuard implements the double-submit pattern: a random token lives in a
// script-readable cookie and must be echoed back in a request header on
// every mutating call. The token has no server-side state; validity is
// cookie-scoped, not single-use.
func CsrfGuard(opts CsrfOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, exempt := opts.ExemptPaths[path]; exempt {
			issueCsrfToken(c, opts)
			c.Next()
			return
		}

		if isMutating(c.Request.Method) {
			header := c.GetHeader(opts.HeaderName)
			cookie, err := c.Cookie(opts.CookieName)
			if err != nil || header == "" ||
				subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) != 1 {
				log.Println("[CSRF] [ERROR] token mismatch on", c.Request.Method, path)
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid CSRF token"})
				return
			}
		}

		if opts.ReissuePerRequest {
			issueCsrfToken(c, opts)
		}
		c.Next()
	}
}

func issueCsrfToken(c *gin.Context, opts CsrfOptions) {
	value, err := newCsrfToken()
	if err != nil {
		log.Println("[CSRF] [ERROR] token generation failed:", err)
		return
	}
	// readable by the client script so it can mirror the value; httpOnly
	// here would break the double-submit pattern
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(opts.CookieName, value, 0, "/", "", opts.Secure, false)
	c.Header(opts.HeaderName, value)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func newCsrfToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
