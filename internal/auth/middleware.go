package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskhub/internal/models"
)

// principalKey is the gin context key the middleware stores the
// authenticated user under.
const principalKey = "taskhub.principal"

// UserLoader resolves a user id asserted by a token to an account.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (models.User, error)
}

// Middleware returns a gin handler that requires a valid bearer token and
// resolves it to an existing user. Requests without one get a 401 with a
// WWW-Authenticate header.
func Middleware(issuer *TokenIssuer, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "missing bearer token")
			return
		}

		userID, err := issuer.Verify(raw)
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			unauthorized(c, "could not validate credentials")
			return
		}

		c.Set(principalKey, user)
		c.Next()
	}
}

// Principal returns the authenticated user stored by the middleware.
func Principal(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
