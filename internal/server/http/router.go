package http

import (
	"github.com/dmitrijs2005/bookauth/internal/logging"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter wires routes and middleware. A nil limiter disables rate
// limiting.
func NewRouter(serviceName string, h *Handler, limiter RateLimiter, log logging.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(otelgin.Middleware(serviceName))

	throttle := func(c *gin.Context) { c.Next() }
	if limiter != nil {
		throttle = RateLimit(limiter, log)
	}

	accounts := r.Group("/api/accounts")
	{
		accounts.POST("/signup", h.SignUp)
		accounts.POST("/signin", throttle, h.SignIn)
		accounts.POST("/renewToken", throttle, h.RenewToken)
		accounts.POST("/revoke", h.Revoke)
		accounts.POST("/revokeAll", BearerAuth(h.accounts), h.RevokeAll)
		accounts.GET("/me", BearerAuth(h.accounts), h.Me)
	}

	r.GET("/healthz", h.Healthz)

	return r
}
