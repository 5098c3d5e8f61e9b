package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/nimeshabuddhika/storefront-orders/pkg"
)

// CORS admits credentialed cross-origin calls from the listed storefront origins only.
// Requests from any other origin are rejected with 403; requests without an Origin header pass.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", pkg.HeaderTraceId)
	cfg.ExposeHeaders = []string{pkg.HeaderTraceId}
	cfg.MaxAge = 12 * time.Hour
	return cors.New(cfg)
}

// SecureHeaders sets the browser hardening headers on every response.
// TLS terminates at the load balancer, so no redirect happens here and HSTS is only sent on https requests.
func SecureHeaders() gin.HandlerFunc {
	return secure.New(secure.Config{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		STSSeconds:            15552000,
		STSIncludeSubdomains:  true,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		ContentSecurityPolicy: "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'",
	})
}
