package middlewares

import (
	"net/http"

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionMiddleware resolves the opaque session token from the `token`
// header against Redis and hydrates the request context with the calling
// user. Requests without a token pass through anonymous; role gates further
// down decide what they may do. Every request also gets a correlation id
// that follows it into entry_events and log lines.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		correlationId := c.Request.Header.Get("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx = utils.SetCorrelationIdInContext(ctx, correlationId)
		c.Header("X-Correlation-Id", correlationId)

		token := c.Request.Header.Get("token")
		if token == "" {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}

		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		user, err := models.GetUserByUsername(ctx, username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetUsernameInContext(ctx, user.Username)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetDisplayNameInContext(ctx, user.DisplayName)
		ctx = utils.SetRoleInContext(ctx, string(user.Role))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireSession rejects anonymous requests. Placed after SessionMiddleware
// on routes that must know who is calling.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
