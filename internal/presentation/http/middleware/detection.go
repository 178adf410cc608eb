package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/arzani/roledetect-go/internal/application/services"
	"github.com/arzani/roledetect-go/internal/domain/roles"
)

// ContextResolution is the context key for the attached role resolution.
const ContextResolution = "roleResolution"

// DetectionMiddleware runs role resolution for every request and
// attaches the outcome. Cacheable outcomes are propagated in the
// background so the request never waits on a durable write.
func DetectionMiddleware(resolver *services.ResolverService, writer *services.WriterService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identityID, sessionID := IdentityFrom(c)

		resolution := resolver.Resolve(c.Request.Context(), identityID, sessionID, c.Request.URL.Path)
		c.Set(ContextResolution, resolution)

		if resolution.ShouldCache {
			writer.PropagateAsync(resolution)
		}

		c.Next()
	}
}

// ResolutionFrom returns the resolution attached by DetectionMiddleware.
func ResolutionFrom(c *gin.Context) (*roles.Resolution, bool) {
	value, exists := c.Get(ContextResolution)
	if !exists {
		return nil, false
	}
	resolution, ok := value.(*roles.Resolution)
	return resolution, ok
}
