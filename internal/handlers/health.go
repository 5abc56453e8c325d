package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health is the public bootstrap endpoint: always 200, exempt from auth
// and CSRF verification, and the first place a fresh client obtains its
// CSRF token from.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
