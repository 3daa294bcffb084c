package rbac

import (
	"net/http"

	"hr-platform/internal/tenant"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole allows access if the caller's verified role is one of
// allowed. Tenant presence is checked first, so a request without a scoped
// identity gets 401 rather than 403.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		scope, err := tenant.FromContext(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if _, ok := allowedSet[scope.Role()]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
