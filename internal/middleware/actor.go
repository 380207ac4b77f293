package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	appErrors "github.com/campusops/enrollment-api/pkg/errors"
	"github.com/campusops/enrollment-api/pkg/response"
)

// ContextActorKey is the gin context key storing the authenticated actor ID.
const ContextActorKey = "currentActor"

// Actor requires a bearer token from the identity service and extracts the
// actor ID from its subject claim. The token is trusted as already
// authenticated; no authorization decisions happen here.
func Actor(secret string) gin.HandlerFunc {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], keyFunc)
		if err != nil || !token.Valid {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid actor token"))
			c.Abort()
			return
		}
		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "actor token missing subject"))
			c.Abort()
			return
		}

		c.Set(ContextActorKey, subject)
		c.Next()
	}
}

// ActorID returns the actor stored in the Gin context.
func ActorID(c *gin.Context) string {
	if v, exists := c.Get(ContextActorKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
