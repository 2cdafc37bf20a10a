package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/presensia/presensia-core/internal/logging"
)

// RateLimit rejects requests beyond a shared token bucket of rps requests per
// second with the given burst.
func RateLimit(rps float64, burst int, log logging.Sink) gin.HandlerFunc {
	if log == nil {
		log = logging.Nop()
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			log.Warn(logging.TagHTTP, "too many requests", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "too many requests"})
			return
		}
		c.Next()
	}
}
