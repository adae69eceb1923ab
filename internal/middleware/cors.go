package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS defaults. The quiz is embedded on marketing pages whose origins are
// not known at deploy time, so the default allows any origin.
const (
	defaultAllowedOrigin = "*"
	defaultMaxAge        = 12 * 60 * 60 // seconds
)

var defaultAllowedMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodOptions,
}

var defaultAllowedHeaders = []string{
	"Content-Type", "Accept", "Origin",
}

// CORS handles cross-origin requests, answering preflights with 204.
func CORS() gin.HandlerFunc {
	allowedMethods := strings.Join(defaultAllowedMethods, ", ")
	allowedHeaders := strings.Join(defaultAllowedHeaders, ", ")
	maxAge := strconv.Itoa(defaultMaxAge)

	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Set("Access-Control-Allow-Origin", defaultAllowedOrigin)
		header.Set("Access-Control-Allow-Methods", allowedMethods)
		header.Set("Access-Control-Allow-Headers", allowedHeaders)
		header.Set("Access-Control-Max-Age", maxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
