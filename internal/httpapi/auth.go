package httpapi

import (
	"net/http"

	"hr-platform/internal/accounts"
	"hr-platform/internal/tenant"

	"github.com/gin-gonic/gin"
)

func (h Handlers) Register(c *gin.Context) {
	var req accounts.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.Accounts.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h Handlers) Login(c *gin.Context) {
	var req accounts.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.Accounts.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Logout always succeeds. Tokens are stateless, so there is nothing to
// revoke; a valid token only makes the logout attributable.
func (h Handlers) Logout(c *gin.Context) {
	s, _ := tenant.FromContext(c.Request.Context())
	h.Accounts.Logout(c.Request.Context(), s)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h Handlers) Me(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	u, err := h.Accounts.Me(c.Request.Context(), s)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
