package access

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"primevault/pkg/response"
)

// ContextAccountKey is the gin context key holding the authenticated account UUID.
const ContextAccountKey = "account_uuid"

// AuthMiddleware parses the Bearer token and stores the account UUID in the
// request context. Requests without a valid token are rejected.
func AuthMiddleware(svc AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.SendError(c, http.StatusUnauthorized, "missing bearer token")
			c.Abort()
			return
		}

		uuid, err := svc.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.SendError(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}

		c.Set(ContextAccountKey, uuid)
		c.Next()
	}
}

// CallerUUID returns the authenticated account UUID set by AuthMiddleware.
func CallerUUID(c *gin.Context) string {
	uuid, _ := c.Get(ContextAccountKey)
	s, _ := uuid.(string)
	return s
}
