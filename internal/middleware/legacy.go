package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/primes-api/pkg/errors"
	"github.com/noah-isme/primes-api/pkg/response"
)

const (
	apiSurfaceContextKey = "api_surface"

	// SurfaceLegacy marks requests served by the macro-compatible endpoint.
	SurfaceLegacy = "legacy"
	// SurfaceREST marks requests served by the REST API.
	SurfaceREST = "rest"
)

// LegacyMacro gates the macro-compatible endpoint and flags its responses as deprecated,
// pointing clients at the REST API documented under successor.
func LegacyMacro(enabled bool, successor string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			response.LegacyError(c, appErrors.Clone(appErrors.ErrFeatureDisabled, "legacy macro endpoint is disabled"))
			c.Abort()
			return
		}
		applyHeader(c, "Deprecation", "true")
		if successor != "" {
			applyHeader(c, "Link", "<"+successor+`>; rel="successor-version"`)
		}
		c.Set(apiSurfaceContextKey, SurfaceLegacy)
		c.Next()
	}
}

// APISurface returns which surface served the request.
func APISurface(c *gin.Context) string {
	if value, exists := c.Get(apiSurfaceContextKey); exists {
		if typed, ok := value.(string); ok {
			return typed
		}
	}
	return SurfaceREST
}

func applyHeader(c *gin.Context, key, value string) {
	if c == nil || key == "" || value == "" {
		return
	}
	c.Writer.Header().Set(key, value)
}
