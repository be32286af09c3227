package middleware

import (
	"time"

	"gamezipserver/internal/gamezip/service"
	"gamezipserver/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// RateLimitPolicy caps requests per client IP and per route within a
// fixed window. A zero max disables that dimension.
type RateLimitPolicy struct {
	Window   time.Duration
	IPMax    int
	RouteMax int
}

// RateLimitMiddleware guards a management route with the Redis-backed
// limiter. With no limiter configured it is a no-op.
func RateLimitMiddleware(limiter *service.RateLimitService, routeKey string, policy RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		if policy.IPMax > 0 {
			ipKey := "gamezip:rate:ip:" + c.ClientIP() + ":" + routeKey
			if err := limiter.Allow(ctx, ipKey, policy.IPMax, policy.Window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}
		if policy.RouteMax > 0 {
			routeKeyFull := "gamezip:rate:route:" + routeKey
			if err := limiter.Allow(ctx, routeKeyFull, policy.RouteMax, policy.Window); err != nil {
				response.AbortWithError(c, err)
				return
			}
		}

		c.Next()
	}
}
