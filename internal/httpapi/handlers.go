package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"hr-platform/internal/accounts"
	"hr-platform/internal/audit"
	"hr-platform/internal/auth"
	"hr-platform/internal/hr"
	"hr-platform/internal/reporting"
	"hr-platform/internal/tenant"
	"hr-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse input, take the scope from the verified identity,
// call internal services, return JSON.
type Handlers struct {
	Accounts  *accounts.Service
	HR        *hr.Service
	Audit     *audit.Service
	Reporting *reporting.Service
}

// scope returns the caller's tenant scope. Routes behind
// tenant.RequireOrganization always have one; the check here covers
// misrouted handlers.
func scope(c *gin.Context) (tenant.Scope, bool) {
	s, err := tenant.FromContext(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return tenant.Scope{}, false
	}
	return s, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	return true
}

// queryInt reads a positive integer query parameter; anything else is 0 and
// the service applies its default.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, tenant.ErrNoTenant),
		errors.Is(err, accounts.ErrInvalidCredentials),
		errors.Is(err, accounts.ErrAccountDisabled):
		return http.StatusUnauthorized
	case errors.Is(err, accounts.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, tenant.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, hr.ErrInvalidArgument),
		errors.Is(err, accounts.ErrInvalidArgument),
		errors.Is(err, audit.ErrInvalidArgument),
		errors.Is(err, auth.ErrPasswordTooLong):
		return http.StatusBadRequest
	case errors.Is(err, hr.ErrConflict),
		errors.Is(err, accounts.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// publicMessage is the client-facing text for err. Token and scope failures
// get a fixed message so the response does not say which check failed.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		return "not found"
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, tenant.ErrNoTenant):
		return "unauthorized"
	}
	return err.Error()
}

// fail writes err as a JSON error. Internal errors are logged with the request
// logger and never echoed to the client.
func fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		logger.FromGin(c).Error("request failed", "err", err, "path", c.FullPath())
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": publicMessage(err)})
}
