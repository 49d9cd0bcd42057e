package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/scijournal/internal/response"
	"github.com/weiwangfds/scijournal/internal/service/backend"
)

// UserIDKey 认证通过后用户ID在gin上下文中的键
const UserIDKey = "userID"

// Auth 校验 Authorization: Bearer <token>，通过后写入用户ID
func Auth(tokens backend.TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "Authorization header required")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Unauthorized(c, "Invalid authorization header")
			return
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// UserID 当前请求的用户ID，未认证时为0
func UserID(c *gin.Context) uint {
	if v, ok := c.Get(UserIDKey); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
