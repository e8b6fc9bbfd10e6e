package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS lets the LMS front end call the report API from its own origin.
// allowedOrigins is "*" or a comma-separated list such as "https://lms.example.com,http://localhost:3000".
// Content-Disposition and Retry-After are exposed for CSV downloads and rate-limited exports.
func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := make(map[string]bool)
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}
	anyOrigin := len(origins) == 0 || origins["*"]

	return func(c *gin.Context) {
		allow := ""
		switch origin := c.GetHeader("Origin"); {
		case anyOrigin:
			allow = "*"
		case origins[origin]:
			allow = origin
			c.Header("Vary", "Origin")
		}
		if allow != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Expose-Headers", "Content-Disposition, Retry-After")
			h.Set("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
