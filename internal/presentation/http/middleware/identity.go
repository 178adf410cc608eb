package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arzani/roledetect-go/internal/infrastructure/observability/logging"
	"github.com/arzani/roledetect-go/internal/infrastructure/security"
	"github.com/arzani/roledetect-go/pkg/config"
)

const (
	// SessionHeader carries the client-generated session identifier.
	SessionHeader = "X-Session-ID"

	// Context keys set for downstream handlers.
	ContextIdentityID = "identityId"
	ContextSessionID  = "sessionId"
)

// IdentityMiddleware extracts the actor's identity from the request.
// The session ID comes from a header; the stable identity comes from an
// optional Bearer token. An invalid token degrades to anonymous rather
// than rejecting the request, since role detection must never block.
func IdentityMiddleware(logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionHeader)
		c.Set(ContextSessionID, sessionID)

		identityID := ""
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token := strings.TrimPrefix(auth, "Bearer ")
			claims, err := security.ValidateJWT(token, config.JWTSecret)
			if err != nil {
				if logger != nil {
					logger.System().Debug("Bearer token rejected, continuing as anonymous", "error", err.Error())
				}
			} else {
				identityID = security.IdentityFromClaims(claims)
			}
		}
		c.Set(ContextIdentityID, identityID)

		c.Next()
	}
}

// IdentityFrom returns the identity and session IDs set by IdentityMiddleware.
func IdentityFrom(c *gin.Context) (identityID, sessionID string) {
	return c.GetString(ContextIdentityID), c.GetString(ContextSessionID)
}
