package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/webcast/internal/models"
	"github.com/aura-webinar/webcast/pkg/response"
)

// RequireRole returns a middleware that allows only the given site roles.
// Course-level roles are checked by webcasts.RequireManager instead.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[models.Role(role)]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
