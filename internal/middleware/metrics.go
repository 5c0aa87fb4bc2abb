package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/primes-api/internal/service"
)

// Metrics records latency and status per route. Unmatched paths share one label so scanners
// cannot blow up the series count.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(APISurface(c), c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
