package tenant

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireOrganization enforces the multi-tenant invariant: a verified
// organization must be on the request before any handler runs.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := FromContext(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
