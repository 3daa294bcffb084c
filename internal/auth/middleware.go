package auth

import (
	"net/http"
	"time"

	"hr-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RejectionCounter is notified once per rejected token.
type RejectionCounter interface {
	AuthRejected()
}

// RequireIdentity verifies the bearer token and injects the identity into the
// request context. It does not perform role or tenant checks; those belong to
// internal/rbac and internal/tenant.
func RequireIdentity(a *Authority, rejections RejectionCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := a.Verify(c.GetHeader(authorizationHeader), time.Now())
		if err != nil {
			logger.FromGin(c).Debug("token rejected", "err", err, "path", c.FullPath())
			if rejections != nil {
				rejections.AuthRejected()
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))

		c.Set("user_id", id.UserID)
		c.Set("organization_id", id.OrganizationID)
		logger.Enrich(c, "user_id", id.UserID, "organization_id", id.OrganizationID)

		c.Next()
	}
}

// OptionalIdentity behaves like RequireIdentity but lets unauthenticated
// requests through without an identity.
func OptionalIdentity(a *Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := a.Verify(c.GetHeader(authorizationHeader), time.Now()); err == nil {
			c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		}
		c.Next()
	}
}
