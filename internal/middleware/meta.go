package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/primes-api/pkg/isoweek"
	"github.com/noah-isme/primes-api/pkg/middleware/requestid"
)

const (
	metaContextKey = "primes.response_meta"
	metaStartKey   = "primes.response_start"

	metaCacheHit   = "cache_hit"
	metaWeek       = "week"
	metaRequestID  = "request_id"
	metaElapsedKey = "processing_time_ms"
)

// WithResponseMeta collects the envelope "meta" object for the request. Handlers add to it
// and read it back with ExtractMeta right before writing the response.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		meta := map[string]interface{}{}
		if id := requestid.FromContext(c.Request.Context()); id != "" {
			meta[metaRequestID] = id
		}
		c.Set(metaContextKey, meta)
		c.Set(metaStartKey, start)
		c.Next()
		if _, ok := meta[metaElapsedKey]; !ok {
			meta[metaElapsedKey] = time.Since(start).Milliseconds()
		}
	}
}

// SetCacheHit records whether the payload came from redis.
func SetCacheHit(c *gin.Context, hit bool) {
	metaFor(c)[metaCacheHit] = hit
}

// SetWeek records the ISO week the payload describes.
func SetWeek(c *gin.Context, key isoweek.WeekKey) {
	metaFor(c)[metaWeek] = key.String()
}

// ExtractMeta stamps the elapsed time and returns the metadata collected so far, or nil when
// WithResponseMeta is not installed.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(metaContextKey)
	if !ok {
		return nil
	}
	meta, _ := raw.(map[string]interface{})
	if start, ok := c.Get(metaStartKey); ok && meta != nil {
		meta[metaElapsedKey] = time.Since(start.(time.Time)).Milliseconds()
	}
	return meta
}

func metaFor(c *gin.Context) map[string]interface{} {
	if c != nil {
		if raw, ok := c.Get(metaContextKey); ok {
			if meta, ok := raw.(map[string]interface{}); ok {
				return meta
			}
		}
	}
	meta := map[string]interface{}{}
	if c != nil {
		c.Set(metaContextKey, meta)
	}
	return meta
}
