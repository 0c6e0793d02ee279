package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"quicktask/backend/internal/models"
	"quicktask/backend/internal/services"
)

const currentUserKey = "user"

// AuthMiddleware resolves the session token from the cookie, falling back
// to the Authorization header, and binds the owning user to the request.
func AuthMiddleware(auth services.AuthService, cookieName string, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "auth_middleware").Logger()

	return func(c *gin.Context) {
		tokenStr := extractToken(c, cookieName)
		if tokenStr == "" {
			abortUnauthorized(c, "Not authorized, no token")
			return
		}

		userID, err := auth.VerifyToken(tokenStr)
		if err != nil {
			log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("token verification failed")
			abortUnauthorized(c, "Not authorized, token failed")
			return
		}

		user, err := auth.ResolveUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, services.ErrUserNotFound) {
				abortUnauthorized(c, "Not authorized, user not found")
				return
			}
			log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to resolve user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Server error",
			})
			return
		}

		c.Set(currentUserKey, user)
		c.Request = c.Request.WithContext(services.WithIdentity(c.Request.Context(), user))
		c.Next()
	}
}

// CurrentUser returns the user bound by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(currentUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

func extractToken(c *gin.Context, cookieName string) string {
	if cookieName != "" {
		if token, err := c.Cookie(cookieName); err == nil && token != "" {
			return token
		}
	}

	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
	})
}
