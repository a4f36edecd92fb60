package middleware

import (
	"tenantdb/pkg/logger"
	"tenantdb/pkg/response"

	"github.com/gin-gonic/gin"
)

// ErrorHandler turns panics into a 500 response. Deferred tenant
// deactivation further down the chain has already run by then.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.GetLogger().WithField("path", c.Request.URL.Path).Errorf("Panic recovered: %v", err)
				response.ServerError(c, "Internal server error")
				c.Abort()
			}
		}()

		c.Next()
	}
}
