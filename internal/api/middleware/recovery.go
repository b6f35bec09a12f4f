package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/free99/pkg/logger"
	"github.com/d60-Lab/free99/pkg/response"
)

// Sentry 为每个请求挂一个 hub；panic 上报后交给 Recovery 处理
func Sentry() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true})
}

// Recovery 捕获 panic 并返回统一的 500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.String("path", c.Request.URL.Path), zap.Stack("stack"))
				if c.Writer.Written() {
					c.AbortWithStatus(http.StatusInternalServerError)
					return
				}
				response.InternalError(c, fmt.Errorf("panic: %v", r))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// ReportErrors 把 5xx 请求上挂的错误发给 sentry
func ReportErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() < http.StatusInternalServerError || len(c.Errors) == 0 {
			return
		}
		hub := sentrygin.GetHubFromContext(c)
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		for _, e := range c.Errors {
			hub.CaptureException(e.Err)
		}
	}
}
