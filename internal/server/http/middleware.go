package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookauth/internal/common"
	"github.com/dmitrijs2005/bookauth/internal/logging"
	"github.com/dmitrijs2005/bookauth/internal/server/auth"
	"github.com/dmitrijs2005/bookauth/internal/server/ratelimit"
	"github.com/gin-gonic/gin"
)

const claimsKey = "accessClaims"

// RateLimiter counts a hit for key and returns ratelimit.ErrRateLimited
// when the budget is spent.
type RateLimiter interface {
	Allow(ctx context.Context, key string) error
}

// RequestLogger logs one line per request.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// RateLimit throttles requests per client IP and route. When the limiter
// itself fails the request is let through.
func RateLimit(l RateLimiter, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + ":" + c.FullPath()
		err := l.Allow(c.Request.Context(), key)
		switch {
		case err == nil:
		case errors.Is(err, ratelimit.ErrRateLimited):
			c.Header("Retry-After", "60")
			fail(c, http.StatusTooManyRequests, "too many requests")
			return
		default:
			log.Warn(c.Request.Context(), "rate limiter unavailable", "error", err)
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// BearerAuth requires a valid, unexpired access token and stores its claims.
func BearerAuth(accounts Accounts) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			fail(c, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		claims, err := accounts.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				fail(c, http.StatusUnauthorized, common.ErrTokenExpired.Error())
				return
			}
			fail(c, http.StatusUnauthorized, common.ErrInvalidToken.Error())
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFromContext returns the claims stored by BearerAuth.
func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
