package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/free99/pkg/response"
)

const userIDKey = "user_id"

// TokenParser 校验访问令牌并返回用户 id
type TokenParser interface {
	Parse(token string) (string, error)
}

// Auth 要求 Authorization: Bearer <token>，通过后把用户 id 写入上下文
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}
		userID, err := parser.Parse(strings.TrimSpace(token))
		if err != nil {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID 取出 Auth 写入的用户 id
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
