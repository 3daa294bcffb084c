package audit

import (
	"context"

	"github.com/gin-gonic/gin"
)

// MetaClientIP is the Meta key holding the address the request came from.
const MetaClientIP = "ip"

type clientIPKey struct{}

// WithClientIP attaches the request's client address. Records written with
// the returned context carry it under MetaClientIP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIPFrom(ctx context.Context) string {
	if s, ok := ctx.Value(clientIPKey{}).(string); ok {
		return s
	}
	return ""
}

// CaptureClientIP resolves the client address with gin's trusted-proxy rules
// and stores it on the request context.
func CaptureClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}
