package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"hospital-booking-api/internal/auth"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "uid"

var ErrUnauthorized = errors.New("unauthorized")

// RequireUser rejects requests without a valid bearer token.
func RequireUser(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// token from Authorization: Bearer <jwt>
		raw := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if raw == "" {
			abortWith(c, ErrUnauthorized)
			return
		}

		claims, err := auth.ParseToken(raw, secret)
		if err != nil {
			abortWith(c, ErrUnauthorized)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// UserID returns the id set by RequireUser, or "".
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func abortWith(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
