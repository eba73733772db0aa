package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/libstats-api/internal/service"
)

// ClientInfo stores the caller's address and user agent on the request
// context so audit records written deeper in the stack can carry them.
func ClientInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithClientInfo(c.Request.Context(), service.ClientInfo{
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
