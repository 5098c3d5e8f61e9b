package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
)

// Limiter decides whether a client may issue another request.
type Limiter interface {
	Allow(ctx context.Context, clientKey string) bool
}

// RateLimit rejects clients over their quota with 429, keyed by client IP.
func RateLimit(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.Request.Context(), c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, pkg.ErrorResponse{
				Code:  pkg.ErrRateLimitedCode.Code,
				Error: pkg.ErrRateLimitedCode.Message,
			})
			return
		}
		c.Next()
	}
}

// BodyLimit caps the request body size; reads past the limit fail and binding returns an error.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
